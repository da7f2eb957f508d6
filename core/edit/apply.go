package edit

import (
	"context"
	"database/sql"
	"fmt"

	"musedb/model"
)

// 临时位置偏移：源介质先移出占用区间，再落到最终位置，
// 避免 (release_id, position) 唯一约束在逐行更新时误报
const positionShift = 10000

// applyMergeReleases 在tx内将合并指令落到目录库。调用方负责提交或回滚。
func applyMergeReleases(ctx context.Context, tx *sql.Tx, d *model.MergeDirective) error {
	if err := verifyReleasesExist(ctx, tx, d); err != nil {
		return err
	}

	switch d.Strategy {
	case model.MergeStrategyAppend:
		if err := moveMediums(ctx, tx, d); err != nil {
			return err
		}
	case model.MergeStrategyMerge:
		if err := mergeRecordings(ctx, tx, d); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown merge strategy %q", d.Strategy)
	}

	// 删除源版本；append已把介质移走，merge的介质/曲目随级联删除
	for _, id := range d.SourceReleaseIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete source release %d: %w", id, err)
		}
	}
	return nil
}

// verifyReleasesExist 采纳时目标与所有源必须仍然存在，
// 缺失视为内部错误，整个编辑采纳失败
func verifyReleasesExist(ctx context.Context, tx *sql.Tx, d *model.MergeDirective) error {
	ids := append([]int64{d.TargetReleaseID}, d.SourceReleaseIDs...)
	for _, id := range ids {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM releases WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("release %d no longer exists", id)
		}
		if err != nil {
			return fmt.Errorf("failed to check release %d: %w", id, err)
		}
	}
	return nil
}

// moveMediums 按指令将源介质挂到目标版本并落到新位置
func moveMediums(ctx context.Context, tx *sql.Tx, d *model.MergeDirective) error {
	// 第一阶段：涉及的介质全部移出正常位置区间
	for _, ch := range d.MediumChanges {
		_, err := tx.ExecContext(ctx,
			`UPDATE mediums SET position = ? WHERE id = ?`,
			ch.NewPosition+positionShift, ch.MediumID,
		)
		if err != nil {
			return fmt.Errorf("failed to stage medium %d: %w", ch.MediumID, err)
		}
	}

	// 第二阶段：落到目标版本的最终位置
	for _, ch := range d.MediumChanges {
		var name interface{}
		if ch.NewName != "" {
			name = ch.NewName
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE mediums SET release_id = ?, position = ?, name = ? WHERE id = ?`,
			d.TargetReleaseID, ch.NewPosition, name, ch.MediumID,
		)
		if err != nil {
			return fmt.Errorf("failed to move medium %d: %w", ch.MediumID, err)
		}
	}
	return nil
}

// mergeRecordings 将每组源录音全局并入目标录音后删除源录音
func mergeRecordings(ctx context.Context, tx *sql.Tx, d *model.MergeDirective) error {
	for _, group := range d.RecordingMerges {
		for _, src := range group.Sources {
			// 全局重指向：任何版本引用了源录音的曲目都指向目标录音
			_, err := tx.ExecContext(ctx,
				`UPDATE tracks SET recording_id = ? WHERE recording_id = ?`,
				group.Destination.ID, src.ID,
			)
			if err != nil {
				return fmt.Errorf("failed to repoint tracks from recording %d: %w", src.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, src.ID); err != nil {
				return fmt.Errorf("failed to delete recording %d: %w", src.ID, err)
			}
		}
	}
	return nil
}
