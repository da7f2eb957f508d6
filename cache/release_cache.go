package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"musedb/model"

	"github.com/go-redis/redis/v8"
)

const (
	releaseTTL = 10 * time.Minute
	previewTTL = 5 * time.Minute
)

// GetReleaseKey 根据专辑版本ID生成缓存键
func GetReleaseKey(releaseID int64) string {
	return fmt.Sprintf("release:%d", releaseID)
}

// GetMergePreviewKey 根据合并请求参数生成缓存键
// 候选集合排序后参与键值，同一组参数命中同一条预览
func GetMergePreviewKey(strategy model.MergeStrategy, targetID int64, ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("merge:preview:%s:%d:%s", strategy, targetID, strings.Join(parts, ","))
}

// GetReleaseView 读取缓存的专辑版本视图，未命中返回nil
func GetReleaseView(ctx context.Context, releaseID int64) (*model.ReleaseView, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, GetReleaseKey(releaseID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached release: %w", err)
	}

	var view model.ReleaseView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached release: %w", err)
	}
	return &view, nil
}

// SetReleaseView 缓存专辑版本视图
func SetReleaseView(ctx context.Context, view *model.ReleaseView) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal release view: %w", err)
	}
	return RedisClient.Set(ctx, GetReleaseKey(view.ID), data, releaseTTL).Err()
}

// getPreviewIndexKey 记录引用某专辑版本的预览键集合
func getPreviewIndexKey(releaseID int64) string {
	return fmt.Sprintf("merge:preview:release:%d", releaseID)
}

// InvalidateReleases 删除指定专辑版本的缓存，编辑被采纳后调用。
// 连同引用这些版本的合并预览一起失效，预览不能指向已消失的版本
func InvalidateReleases(ctx context.Context, releaseIDs ...int64) error {
	if RedisClient == nil || len(releaseIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(releaseIDs)*2)
	for _, id := range releaseIDs {
		keys = append(keys, GetReleaseKey(id))

		indexKey := getPreviewIndexKey(id)
		previews, err := RedisClient.SMembers(ctx, indexKey).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("failed to list preview keys for release %d: %w", id, err)
		}
		keys = append(keys, previews...)
		keys = append(keys, indexKey)
	}
	return RedisClient.Del(ctx, keys...).Err()
}

// GetMergePreview 读取缓存的合并预览，未命中返回nil
func GetMergePreview(ctx context.Context, key string) (*model.MergePreview, error) {
	if RedisClient == nil {
		return nil, nil
	}

	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached merge preview: %w", err)
	}

	var preview model.MergePreview
	if err := json.Unmarshal([]byte(data), &preview); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached merge preview: %w", err)
	}
	return &preview, nil
}

// SetMergePreview 缓存合并预览，并把预览键登记到每个候选版本的索引集合，
// 供InvalidateReleases按版本清理
func SetMergePreview(ctx context.Context, key string, releaseIDs []int64, preview *model.MergePreview) error {
	if RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(preview)
	if err != nil {
		return fmt.Errorf("failed to marshal merge preview: %w", err)
	}

	pipe := RedisClient.TxPipeline()
	pipe.Set(ctx, key, data, previewTTL)
	for _, id := range releaseIDs {
		indexKey := getPreviewIndexKey(id)
		pipe.SAdd(ctx, indexKey, key)
		pipe.Expire(ctx, indexKey, previewTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}
