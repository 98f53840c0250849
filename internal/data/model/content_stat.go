package model

import (
	"time"
)

// ContentStat 内容收益统计表
// earned_total 与 read_earning 交易同一事务内累加
type ContentStat struct {
	ContentID   string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID    string    `gorm:"type:varchar(36);not null;index"`
	SpamScore   int32     `gorm:"not null;default:0"` // 0-100
	EarnedTotal int64     `gorm:"not null;default:0"`
	ViewCount   int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ContentStat) TableName() string {
	return "content_stat"
}
