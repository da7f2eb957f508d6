package repository

import (
	"context"
	"database/sql"
	"time"

	"musedb/model"
)

// RecordingRepository 定义录音相关的数据库操作接口
type RecordingRepository interface {
	// CreateRecording 创建新录音
	CreateRecording(ctx context.Context, rec *model.Recording) (int64, error)

	// GetRecordingByID 根据ID获取录音
	GetRecordingByID(ctx context.Context, id int64) (*model.Recording, error)

	// GetRecordingByGID 根据GID获取录音
	GetRecordingByGID(ctx context.Context, gid string) (*model.Recording, error)
}

// MySQLRecordingRepository MySQL实现的录音仓库
type MySQLRecordingRepository struct {
	db *sql.DB
}

// NewMySQLRecordingRepository 创建新的MySQL录音仓库实例
func NewMySQLRecordingRepository(db *sql.DB) *MySQLRecordingRepository {
	return &MySQLRecordingRepository{db: db}
}

// CreateRecording 创建新录音
func (r *MySQLRecordingRepository) CreateRecording(ctx context.Context, rec *model.Recording) (int64, error) {
	query := `
		INSERT INTO recordings (gid, title, length_ms, artist_credit_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		rec.GID,
		rec.Title,
		rec.LengthMs,
		rec.ArtistCreditID,
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRecordingByID 根据ID获取录音
func (r *MySQLRecordingRepository) GetRecordingByID(ctx context.Context, id int64) (*model.Recording, error) {
	query := `SELECT id, gid, title, length_ms, artist_credit_id, created_at, updated_at FROM recordings WHERE id = ?`
	return r.scanRecording(r.db.QueryRowContext(ctx, query, id))
}

// GetRecordingByGID 根据GID获取录音
func (r *MySQLRecordingRepository) GetRecordingByGID(ctx context.Context, gid string) (*model.Recording, error) {
	query := `SELECT id, gid, title, length_ms, artist_credit_id, created_at, updated_at FROM recordings WHERE gid = ?`
	return r.scanRecording(r.db.QueryRowContext(ctx, query, gid))
}

func (r *MySQLRecordingRepository) scanRecording(row *sql.Row) (*model.Recording, error) {
	rec := &model.Recording{}
	err := row.Scan(
		&rec.ID,
		&rec.GID,
		&rec.Title,
		&rec.LengthMs,
		&rec.ArtistCreditID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}
