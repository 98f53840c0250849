package errors

// Rewards Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Rewards 固定为 21
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   01: 账本模块
//   02: 阅读收益模块
//   03: 佣金模块
//   04: 提现模块
//   05: 订阅模块
//   06: 购买模块
//   07-99: 预留扩展

// 账本模块错误码 (210100-210199)
const (
	// ErrCodeInsufficientBalance 余额不足
	ErrCodeInsufficientBalance = 210101
	// ErrCodeInvalidAmount 金额非法
	ErrCodeInvalidAmount = 210102
	// ErrCodeAccountNotFound 账户不存在
	ErrCodeAccountNotFound = 210103
	// ErrCodeConcurrentModification 并发写冲突（调用方重试一次）
	ErrCodeConcurrentModification = 210104
)

// 阅读收益模块错误码 (210200-210299)
const (
	// ErrCodeContentNotFound 内容不存在
	ErrCodeContentNotFound = 210201
)

// 佣金模块错误码 (210300-210399)
const (
	// ErrCodePromoCodeTaken 推广码已被占用
	ErrCodePromoCodeTaken = 210301
	// ErrCodePromoLinkNotFound 推广链接不存在
	ErrCodePromoLinkNotFound = 210302
	// ErrCodePromoLinkClosed 推广链接已过期或名额已满
	ErrCodePromoLinkClosed = 210303
)

// 提现模块错误码 (210400-210499)
const (
	// ErrCodeDuplicatePending 已存在待审批的提现请求
	ErrCodeDuplicatePending = 210401
	// ErrCodeBelowMinimum 可提金额低于最低限额
	ErrCodeBelowMinimum = 210402
	// ErrCodeMissingPayoutInfo 缺少收款信息
	ErrCodeMissingPayoutInfo = 210403
	// ErrCodeMFARequired 未开启二次验证
	ErrCodeMFARequired = 210404
	// ErrCodePayoutNotFound 提现请求不存在
	ErrCodePayoutNotFound = 210405
	// ErrCodePayoutNotPending 提现请求已不在待审批状态
	ErrCodePayoutNotPending = 210406
	// ErrCodePayoutNotOwner 只有申请人可以取消
	ErrCodePayoutNotOwner = 210407
	// ErrCodePaymentFailed 打款渠道返回失败
	ErrCodePaymentFailed = 210408
)

// 订阅模块错误码 (210500-210599)
const (
	// ErrCodePlanNotFound 套餐不存在
	ErrCodePlanNotFound = 210501
	// ErrCodeNoActiveSubscription 无生效中订阅
	ErrCodeNoActiveSubscription = 210502
	// ErrCodeSubscriptionConflict 订阅并发冲突
	ErrCodeSubscriptionConflict = 210503
)

// 购买模块错误码 (210600-210699)
const (
	// ErrCodePurchaseOrderNotFound 购买订单不存在
	ErrCodePurchaseOrderNotFound = 210601
	// ErrCodePurchaseCreateFailed 购买订单创建失败
	ErrCodePurchaseCreateFailed = 210602
)

// 错误 Reason 常量（对外稳定，transport 层据此映射文案）
const (
	ReasonInsufficientBalance    = "INSUFFICIENT_BALANCE"
	ReasonInvalidAmount          = "INVALID_AMOUNT"
	ReasonAccountNotFound        = "ACCOUNT_NOT_FOUND"
	ReasonConcurrentModification = "CONCURRENT_MODIFICATION"
	ReasonContentNotFound        = "CONTENT_NOT_FOUND"
	ReasonPromoCodeTaken         = "PROMO_CODE_TAKEN"
	ReasonPromoLinkNotFound      = "PROMO_LINK_NOT_FOUND"
	ReasonPromoLinkClosed        = "PROMO_LINK_CLOSED"
	ReasonDuplicatePending       = "DUPLICATE_PENDING"
	ReasonBelowMinimum           = "BELOW_MINIMUM"
	ReasonMissingPayoutInfo      = "MISSING_PAYOUT_INFO"
	ReasonMFARequired            = "MFA_REQUIRED"
	ReasonPayoutNotFound         = "PAYOUT_NOT_FOUND"
	ReasonPayoutNotPending       = "PAYOUT_NOT_PENDING"
	ReasonPayoutNotOwner         = "PAYOUT_NOT_OWNER"
	ReasonPaymentFailed          = "PAYMENT_FAILED"
	ReasonPlanNotFound           = "PLAN_NOT_FOUND"
	ReasonNoActiveSubscription   = "NO_ACTIVE_SUBSCRIPTION"
	ReasonSubscriptionConflict   = "SUBSCRIPTION_CONFLICT"
	ReasonPurchaseOrderNotFound  = "PURCHASE_ORDER_NOT_FOUND"
	ReasonPurchaseCreateFailed   = "PURCHASE_CREATE_FAILED"
)
