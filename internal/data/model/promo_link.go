package model

import (
	"time"
)

// PromoLink 推广链接表
// code 统一保存小写形式，唯一索引即实现大小写不敏感唯一
type PromoLink struct {
	LinkID          string     `gorm:"primaryKey;type:varchar(36)"`
	AffiliateID     string     `gorm:"type:varchar(36);not null;index"`
	Code            string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	DiscountPercent float64    `gorm:"type:decimal(5,2);not null;default:0.00"`
	MaxSignups      int32      `gorm:"not null;default:0"` // 0 表示不限
	SignupCount     int32      `gorm:"not null;default:0"`
	ExpiresAt       *time.Time `gorm:""`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PromoLink) TableName() string {
	return "promo_link"
}
