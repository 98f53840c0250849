package data

import (
	"context"
	"fmt"

	"rewards-service/internal/biz"
	"rewards-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// paymentClient 支付网关 HTTP 客户端，实现 biz.PaymentInitiator 接口
type paymentClient struct {
	client *http.Client
	log    *log.Helper
}

// NewPaymentClient 创建支付网关客户端
func NewPaymentClient(c *conf.Bootstrap, logger log.Logger) (biz.PaymentInitiator, error) {
	if c.Data == nil || c.Data.Payment == nil {
		return nil, fmt.Errorf("payment config is nil")
	}

	opts := []http.ClientOption{
		http.WithEndpoint(c.Data.Payment.BaseUrl),
		http.WithMiddleware(recovery.Recovery()),
	}
	if c.Data.Payment.Timeout != nil {
		opts = append(opts, http.WithTimeout(c.Data.Payment.Timeout.AsDuration()))
	}
	client, err := http.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	return &paymentClient{
		client: client,
		log:    log.NewHelper(logger),
	}, nil
}

type createPaymentBody struct {
	OrderID   string  `json:"order_id"`
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Subject   string  `json:"subject"`
	NotifyURL string  `json:"notify_url"`
}

type createPaymentResp struct {
	PaymentID string `json:"payment_id"`
	PayURL    string `json:"pay_url"`
}

// CreatePayment 创建收款单
func (c *paymentClient) CreatePayment(ctx context.Context, req *biz.CreatePaymentRequest) (*biz.CreatePaymentReply, error) {
	body := &createPaymentBody{
		OrderID:   req.OrderID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Subject:   req.Subject,
		NotifyURL: req.NotifyURL,
	}
	var resp createPaymentResp
	if err := c.client.Invoke(ctx, "POST", "/v1/payments", body, &resp); err != nil {
		c.log.Errorf("CreatePayment failed: order_id=%s, error=%v", req.OrderID, err)
		return nil, err
	}
	return &biz.CreatePaymentReply{
		PaymentID: resp.PaymentID,
		PayURL:    resp.PayURL,
	}, nil
}

type disburseBody struct {
	RequestID string  `json:"request_id"` // 渠道侧幂等键
	AccountID string  `json:"account_id"`
	Amount    float64 `json:"amount"`
	IBAN      string  `json:"iban"`
}

type disburseResp struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

// Disburse 发起打款
func (c *paymentClient) Disburse(ctx context.Context, req *biz.DisburseRequest) (*biz.DisburseReply, error) {
	body := &disburseBody{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		IBAN:      req.IBAN,
	}
	var resp disburseResp
	if err := c.client.Invoke(ctx, "POST", "/v1/disbursements", body, &resp); err != nil {
		c.log.Errorf("Disburse failed: request_id=%s, error=%v", req.RequestID, err)
		return nil, err
	}
	return &biz.DisburseReply{
		Success:   resp.Success,
		Reference: resp.Reference,
	}, nil
}
