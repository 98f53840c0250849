package model

import (
	"time"
)

// Account 账户表
// coin_balance 只允许经由账本原语修改，任何路径不得直接覆盖
type Account struct {
	AccountID   string    `gorm:"primaryKey;type:varchar(36)"`
	CoinBalance int64     `gorm:"not null;default:0"`
	TotalEarned int64     `gorm:"not null;default:0"`
	TotalSpent  int64     `gorm:"not null;default:0"`
	SpamScore   int32     `gorm:"not null;default:0"` // 0-100
	TrustLevel  int32     `gorm:"not null;default:0"` // 0-5
	IsVerified  bool      `gorm:"not null;default:false"`
	IsPremium   bool      `gorm:"not null;default:false"`
	MFAEnabled  bool      `gorm:"column:mfa_enabled;not null;default:false"`
	PayoutIBAN  string    `gorm:"column:payout_iban;type:varchar(64)"`
	ReferredBy  string    `gorm:"type:varchar(36);index"` // 注册归因的推广链接ID
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Account) TableName() string {
	return "account"
}
