package biz

import "math"

// EarningSignals 一次有效阅读的收益信号
type EarningSignals struct {
	ReadPercentage float64 // 阅读进度 0-100
	Liked          bool
	Commented      bool
	Saved          bool
	Shared         bool
	AuthorVerified bool
	AuthorTrust    int32 // 作者信任等级 0-5
}

// baseEarning 单次有效阅读基础收益（金币）
const baseEarning = 1.0

// CalculateEarning 纯函数：有效阅读 + 互动信号 + 作者信任信号 → 金币数（未截断）
// 舍入使用四舍五入（half away from zero），与历史数据保持一致。
// 不在此处做下限/上限截断，截断由入账侧统一负责。
func CalculateEarning(s EarningSignals) int64 {
	multiplier := 1.0
	switch {
	case s.ReadPercentage >= 80:
		multiplier = 2.0
	case s.ReadPercentage >= 60:
		multiplier = 1.5
	}

	coins := baseEarning * multiplier
	if s.Liked {
		coins += 0.5
	}
	if s.Commented {
		coins += 1.0
	}
	if s.Saved {
		coins += 0.5
	}
	if s.Shared {
		coins += 1.0
	}

	if s.AuthorVerified {
		coins *= 1.2
	} else if s.AuthorTrust >= 2 {
		coins *= 1.1
	}

	return int64(math.Round(coins))
}
