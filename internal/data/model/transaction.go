package model

import (
	"time"
)

// Transaction 账本交易表（只插入，不更新不删除）
// (account_id, type, created_at) 组合索引支撑按日收益求和
type Transaction struct {
	TransactionID string    `gorm:"primaryKey;type:varchar(36)"`
	AccountID     string    `gorm:"type:varchar(36);not null;index:idx_account_type_time,priority:1"`
	Type          string    `gorm:"type:varchar(20);not null;index:idx_account_type_time,priority:2"`
	Amount        int64     `gorm:"not null"` // 带符号
	BalanceAfter  int64     `gorm:"not null"` // 写入时快照
	ContentID     string    `gorm:"type:varchar(36)"`
	Counterparty  string    `gorm:"type:varchar(36)"`
	Reference     string    `gorm:"type:varchar(64)"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index:idx_account_type_time,priority:3"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transaction"
}
