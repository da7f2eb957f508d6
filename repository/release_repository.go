package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"musedb/model"
)

// ReleaseRepository 定义专辑版本相关的数据库操作接口
// 聚合读取返回完全加载的对象，合并规划不做任何延迟加载
type ReleaseRepository interface {
	// CreateRelease 创建新专辑版本
	CreateRelease(ctx context.Context, release *model.Release) (int64, error)

	// GetReleaseByID 根据ID获取专辑版本
	GetReleaseByID(ctx context.Context, id int64) (*model.Release, error)

	// ListReleases 分页列出专辑版本
	ListReleases(ctx context.Context, limit, offset int) ([]*model.Release, error)

	// UpdateRelease 更新专辑版本基础字段
	UpdateRelease(ctx context.Context, release *model.Release) error

	// DeleteRelease 删除专辑版本（级联删除介质与曲目）
	DeleteRelease(ctx context.Context, id int64) error

	// UpdateReleaseCoverArt 更新封面对象路径
	UpdateReleaseCoverArt(ctx context.Context, id int64, path string) error

	// AddMedium 为专辑版本添加介质
	AddMedium(ctx context.Context, medium *model.Medium) (int64, error)

	// AddTrack 为介质添加曲目
	AddTrack(ctx context.Context, track *model.Track) (int64, error)

	// GetReleaseAggregate 加载完整聚合：介质、曲目、录音与署名
	GetReleaseAggregate(ctx context.Context, id int64) (*model.ReleaseAggregate, error)

	// GetReleaseAggregates 批量加载聚合，保持传入ID的顺序
	GetReleaseAggregates(ctx context.Context, ids []int64) ([]*model.ReleaseAggregate, error)

	// CanMergeReleases 模型层的结构可行性检查
	// 返回不可合并的原因；err仅在查询失败时返回
	CanMergeReleases(ctx context.Context, strategy model.MergeStrategy, ids []int64) (bool, string, error)
}

// MySQLReleaseRepository MySQL实现的专辑版本仓库
type MySQLReleaseRepository struct {
	db *sql.DB
}

// NewMySQLReleaseRepository 创建新的MySQL专辑版本仓库实例
func NewMySQLReleaseRepository(db *sql.DB) *MySQLReleaseRepository {
	return &MySQLReleaseRepository{db: db}
}

// CreateRelease 创建新专辑版本
func (r *MySQLReleaseRepository) CreateRelease(ctx context.Context, release *model.Release) (int64, error) {
	query := `
		INSERT INTO releases (gid, title, status, artist_credit_id, cover_art_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		release.GID,
		release.Title,
		release.Status,
		release.ArtistCreditID,
		release.CoverArtPath,
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReleaseByID 根据ID获取专辑版本
func (r *MySQLReleaseRepository) GetReleaseByID(ctx context.Context, id int64) (*model.Release, error) {
	query := `
		SELECT id, gid, title, status, artist_credit_id, cover_art_path, created_at, updated_at
		FROM releases
		WHERE id = ?
	`
	release := &model.Release{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&release.ID,
		&release.GID,
		&release.Title,
		&release.Status,
		&release.ArtistCreditID,
		&release.CoverArtPath,
		&release.CreatedAt,
		&release.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return release, nil
}

// ListReleases 分页列出专辑版本
func (r *MySQLReleaseRepository) ListReleases(ctx context.Context, limit, offset int) ([]*model.Release, error) {
	query := `
		SELECT id, gid, title, status, artist_credit_id, cover_art_path, created_at, updated_at
		FROM releases
		ORDER BY id
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []*model.Release
	for rows.Next() {
		release := &model.Release{}
		err := rows.Scan(
			&release.ID,
			&release.GID,
			&release.Title,
			&release.Status,
			&release.ArtistCreditID,
			&release.CoverArtPath,
			&release.CreatedAt,
			&release.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}
	return releases, rows.Err()
}

// UpdateRelease 更新专辑版本基础字段
func (r *MySQLReleaseRepository) UpdateRelease(ctx context.Context, release *model.Release) error {
	query := `
		UPDATE releases
		SET title = ?, status = ?, artist_credit_id = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		release.Title,
		release.Status,
		release.ArtistCreditID,
		time.Now(),
		release.ID,
	)
	return err
}

// DeleteRelease 删除专辑版本
func (r *MySQLReleaseRepository) DeleteRelease(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id)
	return err
}

// UpdateReleaseCoverArt 更新封面对象路径
func (r *MySQLReleaseRepository) UpdateReleaseCoverArt(ctx context.Context, id int64, path string) error {
	query := `UPDATE releases SET cover_art_path = ?, updated_at = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, path, time.Now(), id)
	return err
}

// AddMedium 为专辑版本添加介质
func (r *MySQLReleaseRepository) AddMedium(ctx context.Context, medium *model.Medium) (int64, error) {
	query := `
		INSERT INTO mediums (release_id, position, name, format, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		medium.ReleaseID,
		medium.Position,
		medium.Name,
		medium.Format,
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// AddTrack 为介质添加曲目
func (r *MySQLReleaseRepository) AddTrack(ctx context.Context, track *model.Track) (int64, error) {
	query := `
		INSERT INTO tracks (medium_id, position, title, length_ms, recording_id, artist_credit_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		track.MediumID,
		track.Position,
		track.Title,
		track.LengthMs,
		track.RecordingID,
		track.ArtistCreditID,
		now,
		now,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetReleaseAggregate 加载完整聚合：介质、曲目、录音与署名
func (r *MySQLReleaseRepository) GetReleaseAggregate(ctx context.Context, id int64) (*model.ReleaseAggregate, error) {
	release, err := r.GetReleaseByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if release == nil {
		return nil, nil
	}

	agg := &model.ReleaseAggregate{
		Release:    *release,
		Recordings: make(map[int64]*model.Recording),
		Credits:    make(map[int64]*model.ArtistCredit),
	}

	mediums, err := r.loadMediums(ctx, id)
	if err != nil {
		return nil, err
	}

	var recordingIDs []int64
	creditIDs := []int64{release.ArtistCreditID}
	for _, med := range mediums {
		mw := &model.MediumWithTracks{Medium: *med}
		tracks, err := r.loadTracks(ctx, med.ID)
		if err != nil {
			return nil, err
		}
		mw.Tracks = tracks
		for _, t := range tracks {
			recordingIDs = append(recordingIDs, t.RecordingID)
			creditIDs = append(creditIDs, t.ArtistCreditID)
		}
		agg.Mediums = append(agg.Mediums, mw)
	}

	if err := r.loadRecordings(ctx, agg, recordingIDs); err != nil {
		return nil, err
	}
	if err := r.loadCredits(ctx, agg, creditIDs); err != nil {
		return nil, err
	}
	return agg, nil
}

// GetReleaseAggregates 批量加载聚合，保持传入ID的顺序
func (r *MySQLReleaseRepository) GetReleaseAggregates(ctx context.Context, ids []int64) ([]*model.ReleaseAggregate, error) {
	aggs := make([]*model.ReleaseAggregate, 0, len(ids))
	for _, id := range ids {
		agg, err := r.GetReleaseAggregate(ctx, id)
		if err != nil {
			return nil, err
		}
		if agg == nil {
			return nil, fmt.Errorf("release %d not found", id)
		}
		aggs = append(aggs, agg)
	}
	return aggs, nil
}

func (r *MySQLReleaseRepository) loadMediums(ctx context.Context, releaseID int64) ([]*model.Medium, error) {
	query := `
		SELECT id, release_id, position, name, format, created_at, updated_at
		FROM mediums
		WHERE release_id = ?
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mediums []*model.Medium
	for rows.Next() {
		med := &model.Medium{}
		err := rows.Scan(
			&med.ID,
			&med.ReleaseID,
			&med.Position,
			&med.Name,
			&med.Format,
			&med.CreatedAt,
			&med.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		mediums = append(mediums, med)
	}
	return mediums, rows.Err()
}

func (r *MySQLReleaseRepository) loadTracks(ctx context.Context, mediumID int64) ([]*model.Track, error) {
	query := `
		SELECT id, medium_id, position, title, length_ms, recording_id, artist_credit_id, created_at, updated_at
		FROM tracks
		WHERE medium_id = ?
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query, mediumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*model.Track
	for rows.Next() {
		track := &model.Track{}
		err := rows.Scan(
			&track.ID,
			&track.MediumID,
			&track.Position,
			&track.Title,
			&track.LengthMs,
			&track.RecordingID,
			&track.ArtistCreditID,
			&track.CreatedAt,
			&track.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	return tracks, rows.Err()
}

func (r *MySQLReleaseRepository) loadRecordings(ctx context.Context, agg *model.ReleaseAggregate, ids []int64) error {
	query := `SELECT id, gid, title, length_ms, artist_credit_id, created_at, updated_at FROM recordings WHERE id = ?`
	for _, id := range ids {
		if _, ok := agg.Recordings[id]; ok {
			continue
		}
		rec := &model.Recording{}
		err := r.db.QueryRowContext(ctx, query, id).Scan(
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
				continue
			}
			return err
		}
		agg.Recordings[id] = rec
	}
	return nil
}

func (r *MySQLReleaseRepository) loadCredits(ctx context.Context, agg *model.ReleaseAggregate, ids []int64) error {
	query := `SELECT id, name, created_at, updated_at FROM artist_credits WHERE id = ?`
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := agg.Credits[id]; ok {
			continue
		}
		credit := &model.ArtistCredit{}
		err := r.db.QueryRowContext(ctx, query, id).Scan(
			&credit.ID,
			&credit.Name,
			&credit.CreatedAt,
			&credit.UpdatedAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return err
		}
		agg.Credits[id] = credit
	}
	return nil
}

// CanMergeReleases 模型层的结构可行性检查：
// 所有版本必须存在；full merge要求各版本介质数一致且逐介质曲目数一致；
// append要求介质格式兼容（相同或为空）
func (r *MySQLReleaseRepository) CanMergeReleases(ctx context.Context, strategy model.MergeStrategy, ids []int64) (bool, string, error) {
	aggs, err := r.GetReleaseAggregates(ctx, ids)
	if err != nil {
		return false, "", err
	}
	// 少于两个候选没有可比较的结构
	if len(aggs) < 2 {
		return false, "a merge needs at least two releases", nil
	}

	switch strategy {
	case model.MergeStrategyMerge:
		first := aggs[0]
		for _, agg := range aggs[1:] {
			if len(agg.Mediums) != len(first.Mediums) {
				return false, fmt.Sprintf("releases %d and %d have different medium counts",
					first.Release.ID, agg.Release.ID), nil
			}
			for i := range first.Mediums {
				if len(agg.Mediums[i].Tracks) != len(first.Mediums[i].Tracks) {
					return false, fmt.Sprintf("medium %d has different track counts across releases",
						first.Mediums[i].Medium.Position), nil
				}
			}
		}
	case model.MergeStrategyAppend:
		format := ""
		for _, agg := range aggs {
			for _, mw := range agg.Mediums {
				if !mw.Medium.Format.Valid || mw.Medium.Format.String == "" {
					continue
				}
				if format == "" {
					format = mw.Medium.Format.String
					continue
				}
				if mw.Medium.Format.String != format {
					return false, fmt.Sprintf("incompatible medium formats %q and %q",
						format, mw.Medium.Format.String), nil
				}
			}
		}
	}

	return true, "", nil
}
