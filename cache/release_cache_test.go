package cache

import (
	"context"
	"testing"

	"musedb/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	Init(client)
	t.Cleanup(func() {
		client.Close()
		Init(nil)
	})
}

func TestReleaseViewRoundTrip(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	view := &model.ReleaseView{ID: 1, GID: "gid-1", Title: "Album", Status: "official"}
	require.NoError(t, SetReleaseView(ctx, view))

	got, err := GetReleaseView(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Album", got.Title)

	require.NoError(t, InvalidateReleases(ctx, 1))
	got, err = GetReleaseView(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvalidateReleasesDropsMergePreviews(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	key := GetMergePreviewKey(model.MergeStrategyMerge, 1, []int64{2, 1})
	preview := &model.MergePreview{
		Strategy:        model.MergeStrategyMerge,
		TargetReleaseID: 1,
	}
	require.NoError(t, SetMergePreview(ctx, key, []int64{1, 2}, preview))

	got, err := GetMergePreview(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.TargetReleaseID)

	// 合并被采纳后源版本消失，引用它的预览必须随之失效
	require.NoError(t, InvalidateReleases(ctx, 2))

	got, err = GetMergePreview(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "preview referencing an invalidated release must be dropped")
}

func TestInvalidateReleasesKeepsUnrelatedPreviews(t *testing.T) {
	setupTestRedis(t)
	ctx := context.Background()

	key := GetMergePreviewKey(model.MergeStrategyAppend, 3, []int64{3, 4})
	preview := &model.MergePreview{
		Strategy:        model.MergeStrategyAppend,
		TargetReleaseID: 3,
	}
	require.NoError(t, SetMergePreview(ctx, key, []int64{3, 4}, preview))

	require.NoError(t, InvalidateReleases(ctx, 99))

	got, err := GetMergePreview(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestGetMergePreviewKeyIsOrderInsensitive(t *testing.T) {
	a := GetMergePreviewKey(model.MergeStrategyMerge, 1, []int64{1, 2, 3})
	b := GetMergePreviewKey(model.MergeStrategyMerge, 1, []int64{3, 1, 2})
	assert.Equal(t, a, b)
}

func TestCacheIsNilSafe(t *testing.T) {
	Init(nil)
	ctx := context.Background()

	got, err := GetReleaseView(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, SetReleaseView(ctx, &model.ReleaseView{ID: 1}))
	require.NoError(t, InvalidateReleases(ctx, 1))
	require.NoError(t, SetMergePreview(ctx, "k", []int64{1}, &model.MergePreview{}))

	preview, err := GetMergePreview(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, preview)
}
