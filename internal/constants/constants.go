package constants

// 时间格式常量
const (
	// TimeFormatDay 日期格式 (YYYY-MM-DD)，用于按日统计与计数器 key
	TimeFormatDay = "2006-01-02"
)

// Redis Key 前缀常量
const (
	// RedisKeyBalance 余额缓存 key 前缀
	RedisKeyBalance = "coin:balance:"
	// RedisKeyDailyEarned 作者当日阅读收益计数器 key 前缀
	RedisKeyDailyEarned = "earn:daily:"
	// RedisKeyCreditLock 阅读收益入账锁 key 前缀
	RedisKeyCreditLock = "earn:credit:lock:"
	// RedisKeyPayoutLock 提现审批锁 key 前缀
	RedisKeyPayoutLock = "payout:approve:lock:"
	// RedisKeyPromoCode 推广码缓存 key 前缀
	RedisKeyPromoCode = "promo:code:"
)

// 交易类型常量
const (
	// TxTypePurchase 金币购买入账
	TxTypePurchase = "purchase"
	// TxTypeGiftSent 礼物赠出
	TxTypeGiftSent = "gift_sent"
	// TxTypeGiftReceived 礼物收入
	TxTypeGiftReceived = "gift_received"
	// TxTypeReadEarning 阅读收益
	TxTypeReadEarning = "read_earning"
	// TxTypeWithdrawal 提现扣减
	TxTypeWithdrawal = "withdrawal"
	// TxTypeRefund 提现取消退款
	TxTypeRefund = "refund"
	// TxTypeCommission 推广佣金
	TxTypeCommission = "commission"
)

// 提现/打款请求状态常量
const (
	// PayoutStatusPending 待审批
	PayoutStatusPending = "pending"
	// PayoutStatusApproved 已打款
	PayoutStatusApproved = "approved"
	// PayoutStatusRejected 已驳回
	PayoutStatusRejected = "rejected"
	// PayoutStatusCancelled 已取消
	PayoutStatusCancelled = "cancelled"
)

// 提现类型常量
const (
	// PayoutTypeCommission 佣金打款（审批时扣减）
	PayoutTypeCommission = "commission"
	// PayoutTypeCoin 金币提现（申请时扣减）
	PayoutTypeCoin = "coin"
)

// 购买订单状态常量
const (
	// OrderStatusPending 待支付
	OrderStatusPending = "pending"
	// OrderStatusCompleted 支付完成
	OrderStatusCompleted = "completed"
	// OrderStatusFailed 支付失败
	OrderStatusFailed = "failed"
)

// 订阅状态常量
const (
	// SubStatusActive 生效中
	SubStatusActive = "active"
	// SubStatusCancelled 已取消
	SubStatusCancelled = "cancelled"
	// SubStatusExpired 已过期
	SubStatusExpired = "expired"
)

// 通知事件类型常量
const (
	// NotifyTypeViewMilestone 内容浏览量里程碑
	NotifyTypeViewMilestone = "view_milestone"
	// NotifyTypeGiftReceived 收到礼物
	NotifyTypeGiftReceived = "gift_received"
	// NotifyTypePayoutApproved 提现已打款
	NotifyTypePayoutApproved = "payout_approved"
	// NotifyTypePayoutRejected 提现被驳回
	NotifyTypePayoutRejected = "payout_rejected"
)

// 收益结果常量（用于指标与响应）
const (
	// EarnResultCredited 已入账
	EarnResultCredited = "credited"
	// EarnResultNotPremium 非付费读者
	EarnResultNotPremium = "not_premium"
	// EarnResultContentSpam 内容命中反作弊阈值
	EarnResultContentSpam = "content_spam"
	// EarnResultAuthorSpam 作者命中反作弊阈值
	EarnResultAuthorSpam = "author_spam"
	// EarnResultContentCap 内容累计收益达到上限
	EarnResultContentCap = "content_cap"
	// EarnResultDailyCap 作者当日收益达到上限
	EarnResultDailyCap = "daily_cap"
	// EarnResultNotQualified 阅读不满足有效阅读条件
	EarnResultNotQualified = "not_qualified"
	// EarnResultDuplicate 同一读者重复阅读
	EarnResultDuplicate = "duplicate"
	// EarnResultBot 机器流量
	EarnResultBot = "bot"
)

// MQ 消息 Tag 常量
const (
	// MQTagViewEvent 阅读事件消息
	MQTagViewEvent = "view"
	// MQTagNotification 通知事件消息
	MQTagNotification = "notification"
)
