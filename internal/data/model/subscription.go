package model

import (
	"time"

	"rewards-service/internal/constants"
)

// 订阅状态常量（引用 constants 包中的常量，保持一致性）
const (
	SubStatusActive    = constants.SubStatusActive
	SubStatusCancelled = constants.SubStatusCancelled
	SubStatusExpired   = constants.SubStatusExpired
)

// Subscription 订阅表
// active_key 在 active 时等于 account_id，其余状态置 NULL；
// 唯一索引保证每账户同时至多一条 active
type Subscription struct {
	SubscriptionID string    `gorm:"primaryKey;type:varchar(36)"`
	AccountID      string    `gorm:"type:varchar(36);not null;index"`
	PlanID         string    `gorm:"type:varchar(36);not null"`
	Status         string    `gorm:"type:enum('active','cancelled','expired');not null;default:'active'"`
	ActiveKey      *string   `gorm:"type:varchar(36);uniqueIndex"`
	StartedAt      time.Time `gorm:"not null"`
	ExpiresAt      time.Time `gorm:"not null;index"`
	AmountPaid     float64   `gorm:"type:decimal(10,2);not null;default:0.00"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "subscription"
}
