package model

import "time"

// Edit status values.
const (
	EditStatusOpen     = "open"
	EditStatusAccepted = "accepted"
	EditStatusRejected = "rejected"
	EditStatusFailed   = "failed" // accepted but apply failed; nothing was persisted
)

// Edit type values.
const (
	EditTypeMergeReleases = "merge_releases"
)

// Edit 表示审核工作流中的一条可评审变更
// Payload 为序列化后的变更指令（合并编辑即MergeDirective的JSON）
type Edit struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	GID       string     `json:"gid" gorm:"type:char(36);uniqueIndex;not null"`
	Type      string     `json:"type" gorm:"type:varchar(64);not null;index"`
	Status    string     `json:"status" gorm:"type:varchar(16);not null;index;default:open"`
	EditorID  int64      `json:"editorId" gorm:"not null;index"`
	Payload   string     `json:"payload" gorm:"type:text;not null"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Notes []EditNote `json:"notes,omitempty" gorm:"foreignKey:EditID"`
	Votes []EditVote `json:"votes,omitempty" gorm:"foreignKey:EditID"`
}

// EditNote 编辑下的讨论留言
type EditNote struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EditID    int64     `json:"editId" gorm:"not null;index"`
	EditorID  int64     `json:"editorId" gorm:"not null"`
	Body      string    `json:"body" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// EditVote 编辑的赞成/反对票，同一编辑者后投的票覆盖先前的
type EditVote struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	EditID    int64     `json:"editId" gorm:"not null;uniqueIndex:uq_edit_voter"`
	EditorID  int64     `json:"editorId" gorm:"not null;uniqueIndex:uq_edit_voter"`
	Approve   bool      `json:"approve"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsOpen 编辑是否仍可投票/采纳/驳回
func (e *Edit) IsOpen() bool {
	return e.Status == EditStatusOpen
}
