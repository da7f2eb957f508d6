package model

import "time"

// ArtistCredit 表示曲目/录音/专辑版本上显示的艺人署名
// 两条署名是否相同以ID判断，合并规划依赖这一点
type ArtistCredit struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
