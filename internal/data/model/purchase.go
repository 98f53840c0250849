package model

import (
	"time"

	"rewards-service/internal/constants"
)

// 购买订单状态常量（引用 constants 包中的常量，保持一致性）
const (
	OrderStatusPending   = constants.OrderStatusPending
	OrderStatusCompleted = constants.OrderStatusCompleted
	OrderStatusFailed    = constants.OrderStatusFailed
)

// Purchase 金币购买订单表（兼做支付回调幂等凭据与佣金收入归因来源）
type Purchase struct {
	OrderID     string     `gorm:"primaryKey;type:varchar(64)"`
	AccountID   string     `gorm:"type:varchar(36);not null;index"`
	Coins       int64      `gorm:"not null"`
	Amount      float64    `gorm:"type:decimal(10,2);not null"`
	Currency    string     `gorm:"type:varchar(8);not null;default:'USD'"`
	Status      string     `gorm:"type:enum('pending','completed','failed');not null;default:'pending'"`
	PaymentID   *string    `gorm:"type:varchar(64);uniqueIndex"` // 支付网关订单ID，网关受理前为 NULL
	Reference   string     `gorm:"type:varchar(64)"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
	CompletedAt *time.Time `gorm:""`
}

// TableName 指定表名
func (Purchase) TableName() string {
	return "purchase"
}
