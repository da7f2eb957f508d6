package model

import "time"

// Recording 表示一次具体的录音，可被多张专辑版本中的曲目引用
type Recording struct {
	ID             int64     `json:"id"`
	GID            string    `json:"gid"` // 全局唯一标识（UUID）
	Title          string    `json:"title"`
	LengthMs       int       `json:"lengthMs"`
	ArtistCreditID int64     `json:"artistCreditId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
