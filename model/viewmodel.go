package model

// 客户端渲染层消费的JSON视图模型。
// 这里的结构是服务端输出形状的唯一权威描述，客户端按此解码。

// ReleaseView 专辑版本的对外形状（含署名展开与封面URL）
type ReleaseView struct {
	ID           int64        `json:"id"`
	GID          string       `json:"gid"`
	Title        string       `json:"title"`
	Status       string       `json:"status"`
	ArtistCredit string       `json:"artistCredit"`
	CoverArtURL  string       `json:"coverArtUrl,omitempty"`
	Mediums      []MediumView `json:"mediums,omitempty"`
}

// MediumView 介质的对外形状
type MediumView struct {
	ID       int64       `json:"id"`
	Position int         `json:"position"`
	Name     string      `json:"name,omitempty"`
	Format   string      `json:"format,omitempty"`
	Tracks   []TrackView `json:"tracks,omitempty"`
}

// TrackView 曲目的对外形状
type TrackView struct {
	ID           int64  `json:"id"`
	Position     int    `json:"position"`
	Title        string `json:"title"`
	LengthMs     int    `json:"lengthMs"`
	RecordingID  int64  `json:"recordingId"`
	RecordingGID string `json:"recordingGid,omitempty"`
	ArtistCredit string `json:"artistCredit,omitempty"`
}

// ReleaseMediumsView 按专辑版本分组的介质变更，用于合并表单渲染
type ReleaseMediumsView struct {
	ReleaseID    int64          `json:"releaseId"`
	ReleaseTitle string         `json:"releaseTitle"`
	Changes      []MediumChange `json:"changes"`
}

// MergePreview 合并预览：介质去向、录音合并组与坏合并警告
type MergePreview struct {
	Strategy        MergeStrategy        `json:"strategy"`
	TargetReleaseID int64                `json:"targetReleaseId"`
	MediumChanges   []MediumChange       `json:"mediumChanges,omitempty"`
	ByRelease       []ReleaseMediumsView `json:"byRelease,omitempty"`
	RecordingMerges []RecordingMerge     `json:"recordingMerges,omitempty"`
	// BadMergeCount 为需要显式确认的录音合并组数量
	BadMergeCount int `json:"badMergeCount"`
}

// FieldError 表单字段级校验错误，随表单重新渲染返回
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
