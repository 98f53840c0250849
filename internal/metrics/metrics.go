package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RewardsMetrics 奖励引擎指标
type RewardsMetrics struct {
	// 阅读事件相关指标
	ViewRecordedTotal  *prometheus.CounterVec   // 阅读记录总数（按是否有效阅读）
	ViewWidenedTotal   prometheus.Counter       // 重复阅读合并总数
	EarningTotal       *prometheus.CounterVec   // 阅读收益处理总数（按结果）
	EarningCoinsTotal  prometheus.Counter       // 入账金币总数
	EarningDuration    prometheus.Histogram     // 阅读收益处理耗时
	CapClampTotal      *prometheus.CounterVec   // 收益被上限截断总数（按上限类型）
	MilestoneTotal     prometheus.Counter       // 里程碑通知总数

	// 账本相关指标
	TransactionTotal   *prometheus.CounterVec   // 账本交易总数（按类型）
	GiftTotal          *prometheus.CounterVec   // 礼物转账总数（按结果）
	BalanceQueryTotal  prometheus.Counter       // 余额查询总数
	ReconcileMismatch  prometheus.Gauge         // 对账不一致账户数

	// 佣金相关指标
	CommissionQueryDuration prometheus.Histogram // 佣金汇总计算耗时

	// 提现相关指标
	PayoutTotal        *prometheus.CounterVec   // 提现请求总数（按类型、状态）
	PayoutAmount       *prometheus.CounterVec   // 提现金额总数（按类型）
	PayoutDuration     *prometheus.HistogramVec // 提现操作耗时（按操作）

	// 购买相关指标
	PurchaseTotal      *prometheus.CounterVec   // 购买订单总数（按状态）
	PurchaseAmount     *prometheus.CounterVec   // 购买金额总数（按状态）

	// 订阅相关指标
	PlanChangeTotal    *prometheus.CounterVec   // 套餐变更总数（按结果）

	// 分布式锁相关指标
	LockAcquireTotal    *prometheus.CounterVec // 锁获取总数（按结果）
	LockAcquireDuration prometheus.Histogram   // 锁获取耗时
}

// NewRewardsMetrics 创建奖励引擎指标
func NewRewardsMetrics() *RewardsMetrics {
	return &RewardsMetrics{
		ViewRecordedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_view_recorded_total",
				Help: "Total number of view records written",
			},
			[]string{"qualified"}, // qualified: true/false
		),
		ViewWidenedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewards_view_widened_total",
				Help: "Total number of repeat views merged into existing records",
			},
		),
		EarningTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_earning_total",
				Help: "Total number of read earning evaluations",
			},
			[]string{"result"}, // result: credited/not_premium/daily_cap/...
		),
		EarningCoinsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewards_earning_coins_total",
				Help: "Total coins credited for qualified reads",
			},
		),
		EarningDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rewards_earning_duration_seconds",
				Help:    "Duration of read earning processing",
				Buckets: prometheus.DefBuckets,
			},
		),
		CapClampTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_cap_clamp_total",
				Help: "Total number of earnings clamped by a cap",
			},
			[]string{"cap"}, // cap: daily/content
		),
		MilestoneTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewards_milestone_total",
				Help: "Total number of view milestone notifications emitted",
			},
		),
		TransactionTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_transaction_total",
				Help: "Total number of ledger transactions",
			},
			[]string{"type"},
		),
		GiftTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_gift_total",
				Help: "Total number of gift transfers",
			},
			[]string{"result"}, // result: success/failed
		),
		BalanceQueryTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "rewards_balance_query_total",
				Help: "Total number of balance queries",
			},
		),
		ReconcileMismatch: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "rewards_reconcile_mismatch",
				Help: "Number of accounts whose transaction sum diverges from the stored balance",
			},
		),
		CommissionQueryDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rewards_commission_query_duration_seconds",
				Help:    "Duration of affiliate commission summary computation",
				Buckets: prometheus.DefBuckets,
			},
		),
		PayoutTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_payout_total",
				Help: "Total number of payout requests",
			},
			[]string{"type", "status"}, // type: commission/coin
		),
		PayoutAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_payout_amount_total",
				Help: "Total payout amount",
			},
			[]string{"type"},
		),
		PayoutDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rewards_payout_duration_seconds",
				Help:    "Duration of payout operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"}, // operation: request/approve/reject/cancel
		),
		PurchaseTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_purchase_total",
				Help: "Total number of coin purchase orders",
			},
			[]string{"status"}, // status: pending/completed/failed
		),
		PurchaseAmount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_purchase_amount_total",
				Help: "Total purchase amount",
			},
			[]string{"status"},
		),
		PlanChangeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_plan_change_total",
				Help: "Total number of subscription plan changes",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rewards_lock_acquire_total",
				Help: "Total number of lock acquisition attempts",
			},
			[]string{"result"}, // result: success/failed
		),
		LockAcquireDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rewards_lock_acquire_duration_seconds",
				Help:    "Duration of lock acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
		),
	}
}

// 全局指标实例
var defaultMetrics *RewardsMetrics

// InitMetrics 初始化全局指标
func InitMetrics() {
	defaultMetrics = NewRewardsMetrics()
}

// GetMetrics 获取全局指标实例
func GetMetrics() *RewardsMetrics {
	if defaultMetrics == nil {
		InitMetrics()
	}
	return defaultMetrics
}
