package biz

import (
	"context"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// coinUnitPrice 单个金币售价（货币单位）
const coinUnitPrice = 0.01

// Purchase 金币购买订单领域对象
// 已完成订单同时是推广佣金的收入归因来源
type Purchase struct {
	OrderID     string
	AccountID   string
	Coins       int64
	Amount      float64
	Currency    string
	Status      string // constants.OrderStatus*
	PaymentID   string
	Reference   string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// PurchaseRepo 购买订单数据层接口（定义在 biz 层）
type PurchaseRepo interface {
	CreateOrder(ctx context.Context, order *Purchase) error
	// SetPaymentID 回填支付网关单号（订单先落库，网关受理在后）
	SetPaymentID(ctx context.Context, orderID, paymentID string) error
	GetOrder(ctx context.Context, orderID string) (*Purchase, error)
	// CompleteWithIdempotency 幂等完成订单：锁定订单行后检查状态，
	// 已完成直接返回 false；pending 则在同一事务内置为 completed
	// 并写 purchase 账本交易入账金币，返回 true
	CompleteWithIdempotency(ctx context.Context, orderID, reference string) (bool, *Purchase, error)
	// MarkFailed 守卫式置为 failed（仅 pending 可置），已完成订单不受影响
	MarkFailed(ctx context.Context, orderID, reason string) error
	ListOrders(ctx context.Context, accountID string, page, pageSize int) ([]*Purchase, int64, error)
}

// PurchaseUseCase 金币购买业务逻辑
type PurchaseUseCase struct {
	repo    PurchaseRepo
	payment PaymentInitiator
	log     *log.Helper
	metrics *metrics.RewardsMetrics
}

// NewPurchaseUseCase 创建购买 UseCase
func NewPurchaseUseCase(repo PurchaseRepo, payment PaymentInitiator, logger log.Logger) *PurchaseUseCase {
	return &PurchaseUseCase{
		repo:    repo,
		payment: payment,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// CreateOrder 创建金币购买订单并获取支付地址
// 金币在支付回调确认前不入账
func (uc *PurchaseUseCase) CreateOrder(ctx context.Context, accountID string, coins int64) (*Purchase, string, error) {
	if coins <= 0 {
		return nil, "", rewardsErrors.ErrInvalidAmount("purchase coins must be positive, got %d", coins)
	}

	order := &Purchase{
		OrderID:   uuid.New().String(),
		AccountID: accountID,
		Coins:     coins,
		Amount:    Round2(float64(coins) * coinUnitPrice),
		Currency:  "USD",
		Status:    constants.OrderStatusPending,
	}

	// 订单先落库再请求网关，网关侧永远不会出现本地无从对账的在途支付
	if err := uc.repo.CreateOrder(ctx, order); err != nil {
		return nil, "", rewardsErrors.ErrPurchaseCreateFailed("save order failed: %v", err)
	}

	reply, err := uc.payment.CreatePayment(ctx, &CreatePaymentRequest{
		OrderID:   order.OrderID,
		AccountID: accountID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Subject:   "coin purchase",
	})
	if err != nil {
		// 网关未受理，订单直接关闭，不留悬挂 pending
		if markErr := uc.repo.MarkFailed(ctx, order.OrderID, "create payment failed"); markErr != nil {
			uc.log.Errorf("mark order failed error: order_id=%s, error=%v", order.OrderID, markErr)
		}
		return nil, "", rewardsErrors.ErrPurchaseCreateFailed("create payment failed: %v", err)
	}

	order.PaymentID = reply.PaymentID
	if err := uc.repo.SetPaymentID(ctx, order.OrderID, reply.PaymentID); err != nil {
		return nil, "", rewardsErrors.ErrPurchaseCreateFailed("save payment id failed: %v", err)
	}

	if uc.metrics != nil {
		uc.metrics.PurchaseTotal.WithLabelValues(constants.OrderStatusPending).Inc()
		uc.metrics.PurchaseAmount.WithLabelValues(constants.OrderStatusPending).Add(order.Amount)
	}
	uc.log.Infof("purchase order created: order_id=%s, account_id=%s, coins=%d, amount=%.2f", order.OrderID, accountID, coins, order.Amount)
	return order, reply.PayURL, nil
}

// HandleCallback 处理支付回调
// 渠道会重复推送同一结果，重复回调必须返回成功且不重复入账
func (uc *PurchaseUseCase) HandleCallback(ctx context.Context, orderID string, success bool, reference string) error {
	order, err := uc.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return rewardsErrors.ErrPurchaseOrderNotFound("order %s not found", orderID)
	}

	if !success {
		if err := uc.repo.MarkFailed(ctx, orderID, reference); err != nil {
			return err
		}
		if uc.metrics != nil {
			uc.metrics.PurchaseTotal.WithLabelValues(constants.OrderStatusFailed).Inc()
		}
		uc.log.Warnf("purchase failed: order_id=%s, reference=%s", orderID, reference)
		return nil
	}

	credited, order, err := uc.repo.CompleteWithIdempotency(ctx, orderID, reference)
	if err != nil {
		return err
	}
	if !credited {
		uc.log.Infof("purchase callback replayed, already completed: order_id=%s", orderID)
		return nil
	}

	if uc.metrics != nil {
		uc.metrics.PurchaseTotal.WithLabelValues(constants.OrderStatusCompleted).Inc()
		uc.metrics.PurchaseAmount.WithLabelValues(constants.OrderStatusCompleted).Add(order.Amount)
		uc.metrics.TransactionTotal.WithLabelValues(constants.TxTypePurchase).Inc()
	}
	uc.log.Infof("purchase completed: order_id=%s, account_id=%s, coins=%d", orderID, order.AccountID, order.Coins)
	return nil
}

// GetOrder 查询订单
func (uc *PurchaseUseCase) GetOrder(ctx context.Context, orderID string) (*Purchase, error) {
	order, err := uc.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, rewardsErrors.ErrPurchaseOrderNotFound("order %s not found", orderID)
	}
	return order, nil
}

// ListOrders 查询账户购买订单列表
func (uc *PurchaseUseCase) ListOrders(ctx context.Context, accountID string, page, pageSize int) ([]*Purchase, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.repo.ListOrders(ctx, accountID, page, pageSize)
}
