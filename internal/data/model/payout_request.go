package model

import (
	"time"

	"rewards-service/internal/constants"
)

// 提现请求状态常量（引用 constants 包中的常量，保持一致性）
const (
	PayoutStatusPending   = constants.PayoutStatusPending
	PayoutStatusApproved  = constants.PayoutStatusApproved
	PayoutStatusRejected  = constants.PayoutStatusRejected
	PayoutStatusCancelled = constants.PayoutStatusCancelled
)

// PayoutRequest 提现请求表
// pending_key 在 pending 时等于 account_id，离开 pending 置 NULL；
// 唯一索引忽略 NULL，由此保证每账户同时至多一条 pending
type PayoutRequest struct {
	RequestID    string     `gorm:"primaryKey;type:varchar(36)"`
	AccountID    string     `gorm:"type:varchar(36);not null;index"`
	Type         string     `gorm:"type:varchar(16);not null"`
	Amount       float64    `gorm:"type:decimal(10,2);not null"`
	Status       string     `gorm:"type:enum('pending','approved','rejected','cancelled');not null;default:'pending'"`
	PendingKey   *string    `gorm:"type:varchar(36);uniqueIndex"`
	Reference    string     `gorm:"type:varchar(64)"` // 打款渠道回执号
	RejectReason string     `gorm:"type:varchar(255)"`
	RequestedAt  time.Time  `gorm:"autoCreateTime"`
	ProcessedAt  *time.Time `gorm:""`
}

// TableName 指定表名
func (PayoutRequest) TableName() string {
	return "payout_request"
}
