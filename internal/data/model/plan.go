package model

import (
	"time"
)

// Plan 订阅套餐表
type Plan struct {
	PlanID       string    `gorm:"primaryKey;type:varchar(36)"`
	Name         string    `gorm:"type:varchar(64);not null"`
	Price        float64   `gorm:"type:decimal(10,2);not null"`
	DurationDays int32     `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plan"
}
