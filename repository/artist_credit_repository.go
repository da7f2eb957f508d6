package repository

import (
	"context"
	"database/sql"
	"time"

	"musedb/model"
)

// ArtistCreditRepository 定义艺人署名相关的数据库操作接口
type ArtistCreditRepository interface {
	// GetOrCreate 按名称查找署名，不存在时创建
	GetOrCreate(ctx context.Context, name string) (*model.ArtistCredit, error)

	// GetByID 根据ID获取署名
	GetByID(ctx context.Context, id int64) (*model.ArtistCredit, error)

	// GetByIDs 批量获取署名，按ID索引返回
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.ArtistCredit, error)
}

// MySQLArtistCreditRepository MySQL实现的署名仓库
type MySQLArtistCreditRepository struct {
	db *sql.DB
}

// NewMySQLArtistCreditRepository 创建新的MySQL署名仓库实例
func NewMySQLArtistCreditRepository(db *sql.DB) *MySQLArtistCreditRepository {
	return &MySQLArtistCreditRepository{db: db}
}

// GetOrCreate 按名称查找署名，不存在时创建
func (r *MySQLArtistCreditRepository) GetOrCreate(ctx context.Context, name string) (*model.ArtistCredit, error) {
	credit := &model.ArtistCredit{}
	query := `SELECT id, name, created_at, updated_at FROM artist_credits WHERE name = ? LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&credit.ID, &credit.Name, &credit.CreatedAt, &credit.UpdatedAt,
	)
	if err == nil {
		return credit, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO artist_credits (name, created_at, updated_at) VALUES (?, ?, ?)`,
		name, now, now,
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &model.ArtistCredit{ID: id, Name: name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetByID 根据ID获取署名
func (r *MySQLArtistCreditRepository) GetByID(ctx context.Context, id int64) (*model.ArtistCredit, error) {
	credit := &model.ArtistCredit{}
	query := `SELECT id, name, created_at, updated_at FROM artist_credits WHERE id = ?`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&credit.ID, &credit.Name, &credit.CreatedAt, &credit.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return credit, nil
}

// GetByIDs 批量获取署名，按ID索引返回
func (r *MySQLArtistCreditRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.ArtistCredit, error) {
	credits := make(map[int64]*model.ArtistCredit, len(ids))
	for _, id := range ids {
		if _, ok := credits[id]; ok {
			continue
		}
		credit, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if credit != nil {
			credits[id] = credit
		}
	}
	return credits, nil
}
