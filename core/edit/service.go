// Package edit implements the moderation workflow: every catalog mutation is
// wrapped into an Edit record that stays open for review and is only applied
// to the catalog, inside a single transaction, when a moderator accepts it.
package edit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"musedb/cache"
	"musedb/core/feed"
	"musedb/logger"
	"musedb/model"
	"musedb/repository"

	"github.com/google/uuid"
)

// ErrEditClosed 对已关闭的编辑执行投票/采纳/驳回时返回
var ErrEditClosed = errors.New("edit is not open")

// ErrEditNotFound 编辑不存在
var ErrEditNotFound = errors.New("edit not found")

// Service 编辑生命周期服务
type Service struct {
	edits repository.EditRepository
	db    *sql.DB // 目录库连接，采纳编辑时的事务边界
	hub   *feed.Hub
}

// NewService 创建编辑服务
func NewService(edits repository.EditRepository, db *sql.DB, hub *feed.Hub) *Service {
	return &Service{edits: edits, db: db, hub: hub}
}

// OpenMergeEdit 将合并指令包装为一条待审核编辑并持久化
func (s *Service) OpenMergeEdit(ctx context.Context, editorID int64, directive *model.MergeDirective) (*model.Edit, error) {
	payload, err := json.Marshal(directive)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal merge directive: %w", err)
	}

	e := &model.Edit{
		GID:      uuid.NewString(),
		Type:     model.EditTypeMergeReleases,
		Status:   model.EditStatusOpen,
		EditorID: editorID,
		Payload:  string(payload),
	}
	if err := s.edits.CreateEdit(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create edit: %w", err)
	}

	s.publish(feed.EventEditOpened, e)
	logger.Info("merge edit opened",
		logger.Int64("editId", e.ID),
		logger.Int64("editorId", editorID),
		logger.String("strategy", string(directive.Strategy)),
		logger.Int64("targetReleaseId", directive.TargetReleaseID))
	return e, nil
}

// Vote 对打开的编辑投票，重复投票覆盖之前的
func (s *Service) Vote(ctx context.Context, editID, editorID int64, approve bool) error {
	e, err := s.requireOpen(ctx, editID)
	if err != nil {
		return err
	}

	if err := s.edits.CastVote(ctx, &model.EditVote{
		EditID:   editID,
		EditorID: editorID,
		Approve:  approve,
	}); err != nil {
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	s.publish(feed.EventEditVote, e)
	return nil
}

// AddNote 在打开的编辑下留言
func (s *Service) AddNote(ctx context.Context, editID, editorID int64, body string) (*model.EditNote, error) {
	e, err := s.requireOpen(ctx, editID)
	if err != nil {
		return nil, err
	}

	note := &model.EditNote{EditID: editID, EditorID: editorID, Body: body}
	if err := s.edits.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}

	s.publish(feed.EventEditNote, e)
	return note, nil
}

// Accept 采纳编辑：在一个事务内将指令落到目录库，全部成功后关闭编辑。
// 任何一步失败都会回滚，编辑保持打开
func (s *Service) Accept(ctx context.Context, editID int64) (*model.Edit, error) {
	e, err := s.requireOpen(ctx, editID)
	if err != nil {
		return nil, err
	}

	var directive model.MergeDirective
	if err := json.Unmarshal([]byte(e.Payload), &directive); err != nil {
		s.markFailed(ctx, e)
		return nil, fmt.Errorf("failed to unmarshal edit payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := applyMergeReleases(ctx, tx, &directive); err != nil {
		logger.Error("failed to apply merge edit",
			logger.Int64("editId", editID),
			logger.ErrorField(err))
		// 指令已无法落库（如源版本被并发删除），重试不会成功
		s.markFailed(ctx, e)
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit merge: %w", err)
	}

	if err := s.edits.CloseEdit(ctx, editID, model.EditStatusAccepted); err != nil {
		// 目录已合并但编辑状态未更新，记录后人工处理
		logger.Error("merge applied but edit status update failed",
			logger.Int64("editId", editID),
			logger.ErrorField(err))
		return nil, fmt.Errorf("merge applied but edit close failed: %w", err)
	}
	e.Status = model.EditStatusAccepted

	affected := append([]int64{directive.TargetReleaseID}, directive.SourceReleaseIDs...)
	if err := cache.InvalidateReleases(ctx, affected...); err != nil {
		logger.Warn("failed to invalidate release cache after merge",
			logger.ErrorField(err))
	}

	s.publish(feed.EventEditAccepted, e)
	logger.Info("merge edit accepted",
		logger.Int64("editId", editID),
		logger.Int64("targetReleaseId", directive.TargetReleaseID))
	return e, nil
}

// Reject 驳回编辑，目录不发生任何变化
func (s *Service) Reject(ctx context.Context, editID int64) (*model.Edit, error) {
	e, err := s.requireOpen(ctx, editID)
	if err != nil {
		return nil, err
	}

	if err := s.edits.CloseEdit(ctx, editID, model.EditStatusRejected); err != nil {
		return nil, fmt.Errorf("failed to reject edit: %w", err)
	}
	e.Status = model.EditStatusRejected

	s.publish(feed.EventEditRejected, e)
	return e, nil
}

// markFailed 将采纳失败的编辑关闭为failed，目录未发生任何变化
func (s *Service) markFailed(ctx context.Context, e *model.Edit) {
	if err := s.edits.CloseEdit(ctx, e.ID, model.EditStatusFailed); err != nil {
		logger.Error("failed to mark edit as failed",
			logger.Int64("editId", e.ID),
			logger.ErrorField(err))
		return
	}
	e.Status = model.EditStatusFailed
	s.publish(feed.EventEditFailed, e)
}

func (s *Service) requireOpen(ctx context.Context, editID int64) (*model.Edit, error) {
	e, err := s.edits.GetEditByID(ctx, editID)
	if err != nil {
		return nil, fmt.Errorf("failed to load edit: %w", err)
	}
	if e == nil {
		return nil, ErrEditNotFound
	}
	if !e.IsOpen() {
		return nil, ErrEditClosed
	}
	return e, nil
}

func (s *Service) publish(evtType feed.EventType, e *model.Edit) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(feed.Event{
		Type:     evtType,
		EditID:   e.ID,
		EditGID:  e.GID,
		EditType: e.Type,
		EditorID: e.EditorID,
	})
}
