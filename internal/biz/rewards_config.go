package biz

import (
	"rewards-service/internal/conf"
)

// RewardsConfig 奖励引擎业务配置
type RewardsConfig struct {
	MinReadDuration   int32   // 有效阅读最短时长（秒）
	MinReadPercentage float64 // 有效阅读最低进度（百分比）
	DailyEarningLimit int64   // 作者单日阅读收益上限（金币）
	ContentEarningCap int64   // 单内容累计收益上限（金币）
	SpamStopThreshold int32   // 反作弊分数阈值，达到即停止收益
	CommissionPool    float64 // 佣金池比例（佣金率 = 池 - 折扣）
	MinPayoutAmount   float64 // 佣金打款最低金额
	MinWithdrawalCoins int64  // 金币提现最低数量
	ViewMilestones    []int64 // 浏览量里程碑（精确命中才通知）
}

// NewRewardsConfig 从配置创建 RewardsConfig
func NewRewardsConfig(c *conf.Bootstrap) *RewardsConfig {
	config := &RewardsConfig{
		MinReadDuration:    30,
		MinReadPercentage:  40,
		DailyEarningLimit:  100,
		ContentEarningCap:  1000,
		SpamStopThreshold:  70,
		CommissionPool:     40,
		MinPayoutAmount:    50,
		MinWithdrawalCoins: 1000,
		ViewMilestones:     []int64{100, 1000, 10000, 100000},
	}
	if c.Rewards != nil {
		if c.Rewards.MinReadDuration > 0 {
			config.MinReadDuration = c.Rewards.MinReadDuration
		}
		if c.Rewards.MinReadPercentage > 0 {
			config.MinReadPercentage = c.Rewards.MinReadPercentage
		}
		if c.Rewards.DailyEarningLimit > 0 {
			config.DailyEarningLimit = c.Rewards.DailyEarningLimit
		}
		if c.Rewards.ContentEarningCap > 0 {
			config.ContentEarningCap = c.Rewards.ContentEarningCap
		}
		if c.Rewards.SpamStopThreshold > 0 {
			config.SpamStopThreshold = c.Rewards.SpamStopThreshold
		}
		if c.Rewards.CommissionPool > 0 {
			config.CommissionPool = c.Rewards.CommissionPool
		}
		if c.Rewards.MinPayoutAmount > 0 {
			config.MinPayoutAmount = c.Rewards.MinPayoutAmount
		}
		if c.Rewards.MinWithdrawalCoins > 0 {
			config.MinWithdrawalCoins = c.Rewards.MinWithdrawalCoins
		}
		if len(c.Rewards.ViewMilestones) > 0 {
			config.ViewMilestones = append([]int64(nil), c.Rewards.ViewMilestones...)
		}
	}
	return config
}

// IsMilestone 判断浏览量是否精确命中里程碑
// 必须精确相等：大于阈值的每次浏览都触发会刷屏作者通知
func (c *RewardsConfig) IsMilestone(viewCount int64) bool {
	for _, m := range c.ViewMilestones {
		if viewCount == m {
			return true
		}
	}
	return false
}
