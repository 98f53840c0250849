package model

import (
	"time"
)

// ViewRecord 阅读记录表
// (viewer_id, content_id) 唯一，重复阅读只放大已有行
type ViewRecord struct {
	ViewRecordID    string    `gorm:"primaryKey;type:varchar(36)"`
	ViewerID        string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_viewer_content,priority:1"`
	ContentID       string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_viewer_content,priority:2"`
	ReadPercentage  float64   `gorm:"type:decimal(5,2);not null;default:0.00"`
	ReadDuration    int32     `gorm:"not null;default:0"` // 秒
	IsQualifiedRead bool      `gorm:"not null;default:false"`
	CoinsEarned     int64     `gorm:"not null;default:0"` // 截断后实际入账金额
	IsPremiumViewer bool      `gorm:"not null;default:false"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ViewRecord) TableName() string {
	return "view_record"
}
