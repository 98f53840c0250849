package biz

import "context"

// PaymentInitiator 外部支付网关客户端接口
// 非成功返回一律视为"没有资金移动"，不产生任何账本写入
type PaymentInitiator interface {
	// CreatePayment 创建收款单（金币购买），返回支付跳转地址
	CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentReply, error)
	// Disburse 发起打款（提现审批通过后），返回渠道流水号
	Disburse(ctx context.Context, req *DisburseRequest) (*DisburseReply, error)
}

// CreatePaymentRequest 创建收款单请求
type CreatePaymentRequest struct {
	OrderID   string
	AccountID string
	Amount    float64
	Currency  string
	Subject   string
	NotifyURL string
}

// CreatePaymentReply 创建收款单响应
type CreatePaymentReply struct {
	PaymentID string
	PayURL    string
}

// DisburseRequest 打款请求
type DisburseRequest struct {
	RequestID string // 提现请求ID，渠道侧用作幂等键
	AccountID string
	Amount    float64
	IBAN      string
}

// DisburseReply 打款响应
type DisburseReply struct {
	Success   bool
	Reference string
}
