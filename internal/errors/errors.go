package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// metaCode 业务错误码在 Error.Metadata 中的 key
const metaCode = "code"

func newError(httpCode int, bizCode int, reason, format string, args ...interface{}) *kerrors.Error {
	e := kerrors.New(httpCode, reason, fmt.Sprintf(format, args...))
	return e.WithMetadata(map[string]string{metaCode: fmt.Sprintf("%d", bizCode)})
}

// ErrInsufficientBalance 余额不足
func ErrInsufficientBalance(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodeInsufficientBalance, ReasonInsufficientBalance, format, args...)
}

// ErrInvalidAmount 金额非法
func ErrInvalidAmount(format string, args ...interface{}) *kerrors.Error {
	return newError(400, ErrCodeInvalidAmount, ReasonInvalidAmount, format, args...)
}

// ErrAccountNotFound 账户不存在
func ErrAccountNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodeAccountNotFound, ReasonAccountNotFound, format, args...)
}

// ErrConcurrentModification 并发写冲突，调用方应重试一次
func ErrConcurrentModification(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodeConcurrentModification, ReasonConcurrentModification, format, args...)
}

// ErrContentNotFound 内容不存在
func ErrContentNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodeContentNotFound, ReasonContentNotFound, format, args...)
}

// ErrPromoCodeTaken 推广码已被占用
func ErrPromoCodeTaken(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodePromoCodeTaken, ReasonPromoCodeTaken, format, args...)
}

// ErrPromoLinkNotFound 推广链接不存在
func ErrPromoLinkNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodePromoLinkNotFound, ReasonPromoLinkNotFound, format, args...)
}

// ErrPromoLinkClosed 推广链接已过期或名额已满
func ErrPromoLinkClosed(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodePromoLinkClosed, ReasonPromoLinkClosed, format, args...)
}

// ErrDuplicatePending 已存在待审批的提现请求
func ErrDuplicatePending(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodeDuplicatePending, ReasonDuplicatePending, format, args...)
}

// ErrBelowMinimum 可提金额低于最低限额
func ErrBelowMinimum(format string, args ...interface{}) *kerrors.Error {
	return newError(400, ErrCodeBelowMinimum, ReasonBelowMinimum, format, args...)
}

// ErrMissingPayoutInfo 缺少收款信息
func ErrMissingPayoutInfo(format string, args ...interface{}) *kerrors.Error {
	return newError(400, ErrCodeMissingPayoutInfo, ReasonMissingPayoutInfo, format, args...)
}

// ErrMFARequired 未开启二次验证
func ErrMFARequired(format string, args ...interface{}) *kerrors.Error {
	return newError(403, ErrCodeMFARequired, ReasonMFARequired, format, args...)
}

// ErrPayoutNotFound 提现请求不存在
func ErrPayoutNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodePayoutNotFound, ReasonPayoutNotFound, format, args...)
}

// ErrPayoutNotPending 提现请求已不在待审批状态
func ErrPayoutNotPending(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodePayoutNotPending, ReasonPayoutNotPending, format, args...)
}

// ErrPayoutNotOwner 只有申请人可以取消
func ErrPayoutNotOwner(format string, args ...interface{}) *kerrors.Error {
	return newError(403, ErrCodePayoutNotOwner, ReasonPayoutNotOwner, format, args...)
}

// ErrPaymentFailed 打款渠道返回失败
func ErrPaymentFailed(format string, args ...interface{}) *kerrors.Error {
	return newError(502, ErrCodePaymentFailed, ReasonPaymentFailed, format, args...)
}

// ErrPlanNotFound 套餐不存在
func ErrPlanNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodePlanNotFound, ReasonPlanNotFound, format, args...)
}

// ErrNoActiveSubscription 无生效中订阅
func ErrNoActiveSubscription(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodeNoActiveSubscription, ReasonNoActiveSubscription, format, args...)
}

// ErrSubscriptionConflict 订阅并发冲突
func ErrSubscriptionConflict(format string, args ...interface{}) *kerrors.Error {
	return newError(409, ErrCodeSubscriptionConflict, ReasonSubscriptionConflict, format, args...)
}

// ErrPurchaseOrderNotFound 购买订单不存在
func ErrPurchaseOrderNotFound(format string, args ...interface{}) *kerrors.Error {
	return newError(404, ErrCodePurchaseOrderNotFound, ReasonPurchaseOrderNotFound, format, args...)
}

// ErrPurchaseCreateFailed 购买订单创建失败
func ErrPurchaseCreateFailed(format string, args ...interface{}) *kerrors.Error {
	return newError(500, ErrCodePurchaseCreateFailed, ReasonPurchaseCreateFailed, format, args...)
}

// IsInsufficientBalance 判断是否余额不足错误
func IsInsufficientBalance(err error) bool {
	return kerrors.Reason(err) == ReasonInsufficientBalance
}

// IsDuplicatePending 判断是否重复待审批错误
func IsDuplicatePending(err error) bool {
	return kerrors.Reason(err) == ReasonDuplicatePending
}

// IsConcurrentModification 判断是否并发写冲突
func IsConcurrentModification(err error) bool {
	return kerrors.Reason(err) == ReasonConcurrentModification
}

// IsPayoutNotPending 判断提现请求是否已离开待审批状态
func IsPayoutNotPending(err error) bool {
	return kerrors.Reason(err) == ReasonPayoutNotPending
}
