package repository

import (
	"context"
	"errors"
	"time"

	"musedb/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EditRepository 定义编辑审核相关的数据库操作接口
type EditRepository interface {
	// CreateEdit 持久化一条新编辑
	CreateEdit(ctx context.Context, edit *model.Edit) error

	// GetEditByID 获取编辑及其留言、投票
	GetEditByID(ctx context.Context, id int64) (*model.Edit, error)

	// ListEdits 按状态分页列出编辑，status为空表示全部
	ListEdits(ctx context.Context, status string, limit, offset int) ([]*model.Edit, error)

	// CloseEdit 将编辑置为终态并记录关闭时间
	CloseEdit(ctx context.Context, id int64, status string) error

	// AddNote 在编辑下追加留言
	AddNote(ctx context.Context, note *model.EditNote) error

	// CastVote 投票，同一编辑者重复投票时覆盖
	CastVote(ctx context.Context, vote *model.EditVote) error
}

// GormEditRepository GORM实现的编辑仓库
type GormEditRepository struct {
	db *gorm.DB
}

// NewGormEditRepository 创建新的GORM编辑仓库实例
func NewGormEditRepository(db *gorm.DB) *GormEditRepository {
	return &GormEditRepository{db: db}
}

// CreateEdit 持久化一条新编辑
func (r *GormEditRepository) CreateEdit(ctx context.Context, edit *model.Edit) error {
	return r.db.WithContext(ctx).Create(edit).Error
}

// GetEditByID 获取编辑及其留言、投票
func (r *GormEditRepository) GetEditByID(ctx context.Context, id int64) (*model.Edit, error) {
	var edit model.Edit
	err := r.db.WithContext(ctx).
		Preload("Notes").
		Preload("Votes").
		First(&edit, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edit, nil
}

// ListEdits 按状态分页列出编辑，status为空表示全部
func (r *GormEditRepository) ListEdits(ctx context.Context, status string, limit, offset int) ([]*model.Edit, error) {
	var edits []*model.Edit
	query := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Offset(offset)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Find(&edits).Error; err != nil {
		return nil, err
	}
	return edits, nil
}

// CloseEdit 将编辑置为终态并记录关闭时间
func (r *GormEditRepository) CloseEdit(ctx context.Context, id int64, status string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Edit{}).
		Where("id = ? AND status = ?", id, model.EditStatusOpen).
		Updates(map[string]interface{}{"status": status, "closed_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("edit is not open")
	}
	return nil
}

// AddNote 在编辑下追加留言
func (r *GormEditRepository) AddNote(ctx context.Context, note *model.EditNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

// CastVote 投票，同一编辑者重复投票时覆盖
func (r *GormEditRepository) CastVote(ctx context.Context, vote *model.EditVote) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "edit_id"}, {Name: "editor_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"approve", "created_at"}),
		}).
		Create(vote).Error
}
