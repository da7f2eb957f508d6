package model

import (
	"database/sql"
	"time"
)

// Release 表示一个具体发行的专辑版本，是介质/曲目的聚合根
type Release struct {
	ID             int64          `json:"id"`
	GID            string         `json:"gid"` // 全局唯一标识（UUID）
	Title          string         `json:"title"`
	Status         string         `json:"status"` // official, promotion, bootleg...
	ArtistCreditID int64          `json:"artistCreditId"`
	CoverArtPath   sql.NullString `json:"-"` // MinIO对象路径，经视图模型转换后暴露
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Medium 表示专辑版本中的一张介质（碟片/面）
// 同一专辑版本内position唯一
type Medium struct {
	ID        int64          `json:"id"`
	ReleaseID int64          `json:"releaseId"`
	Position  int            `json:"position"`
	Name      sql.NullString `json:"-"` // 可选名称，见视图模型
	Format    sql.NullString `json:"-"` // CD, Vinyl, Digital...
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Track 表示介质上的一条曲目，引用且仅引用一个录音
// 同一介质内position唯一
type Track struct {
	ID             int64     `json:"id"`
	MediumID       int64     `json:"mediumId"`
	Position       int       `json:"position"`
	Title          string    `json:"title"`
	LengthMs       int       `json:"lengthMs"`
	RecordingID    int64     `json:"recordingId"`
	ArtistCreditID int64     `json:"artistCreditId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// MediumWithTracks 介质及其曲目（按position升序）
type MediumWithTracks struct {
	Medium Medium   `json:"medium"`
	Tracks []*Track `json:"tracks"`
}

// ReleaseAggregate 完整加载的专辑版本聚合
// 合并规划在完全加载的聚合上运行，不做延迟加载
type ReleaseAggregate struct {
	Release    Release                 `json:"release"`
	Mediums    []*MediumWithTracks     `json:"mediums"`    // 按position升序
	Recordings map[int64]*Recording    `json:"recordings"` // 曲目引用的录音，按ID索引
	Credits    map[int64]*ArtistCredit `json:"credits"`    // 涉及的艺人署名，按ID索引
}

// RecordingFor 返回曲目引用的录音，未加载时返回nil
func (a *ReleaseAggregate) RecordingFor(t *Track) *Recording {
	if a.Recordings == nil {
		return nil
	}
	return a.Recordings[t.RecordingID]
}
