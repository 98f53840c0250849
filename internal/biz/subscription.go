package biz

import (
	"context"
	"math"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// Plan 订阅套餐
type Plan struct {
	PlanID       string
	Name         string
	Price        float64
	DurationDays int32
}

// Subscription 订阅领域对象，每账户同时至多一条 active
type Subscription struct {
	SubscriptionID string
	AccountID      string
	PlanID         string
	Status         string // constants.SubStatus*
	StartedAt      time.Time
	ExpiresAt      time.Time
	AmountPaid     float64
}

// ProrationQuote 换套餐折抵报价
type ProrationQuote struct {
	RemainingDays int32   `json:"remaining_days"`
	TotalDays     int32   `json:"total_days"`
	Credit        float64 `json:"credit"`
	FinalPrice    float64 `json:"final_price"`
}

// CalculateProration 纯函数：旧套餐未到期剩余价值折抵新套餐价格
// 剩余/总天数都向上取整，确保用户不因整除截断吃亏
func CalculateProration(oldPrice float64, startedAt, expiresAt, now time.Time, newPrice float64) *ProrationQuote {
	remainingDays := ceilDays(expiresAt.Sub(now))
	totalDays := ceilDays(expiresAt.Sub(startedAt))
	if remainingDays < 0 {
		remainingDays = 0
	}
	if totalDays <= 0 {
		totalDays = 1
	}
	if remainingDays > totalDays {
		remainingDays = totalDays
	}
	credit := Round2(oldPrice * float64(remainingDays) / float64(totalDays))
	finalPrice := math.Max(0, Round2(newPrice-credit))
	return &ProrationQuote{
		RemainingDays: remainingDays,
		TotalDays:     totalDays,
		Credit:        credit,
		FinalPrice:    finalPrice,
	}
}

func ceilDays(d time.Duration) int32 {
	return int32(math.Ceil(d.Hours() / 24))
}

// SubscriptionRepo 订阅数据层接口（定义在 biz 层）
type SubscriptionRepo interface {
	GetPlan(ctx context.Context, planID string) (*Plan, error)
	ListPlans(ctx context.Context) ([]*Plan, error)
	GetActiveSubscription(ctx context.Context, accountID string) (*Subscription, error)
	// CreateSubscription 创建 active 订阅；账户已有 active（含并发）
	// 撞唯一键返回 ErrSubscriptionConflict
	CreateSubscription(ctx context.Context, sub *Subscription) error
	// SwitchSubscription 同一事务内取消旧订阅并激活新订阅，
	// 不存在两条 active 并存的窗口；旧订阅已不是 active 返回 ErrSubscriptionConflict
	SwitchSubscription(ctx context.Context, oldSubscriptionID string, newSub *Subscription) error
	// ExpireDue 将到期的 active 订阅批量置为 expired，返回影响行数
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// SubscriptionUseCase 订阅业务逻辑
type SubscriptionUseCase struct {
	repo    SubscriptionRepo
	payment PaymentInitiator
	log     *log.Helper
	metrics *metrics.RewardsMetrics
}

// NewSubscriptionUseCase 创建订阅 UseCase
func NewSubscriptionUseCase(repo SubscriptionRepo, payment PaymentInitiator, logger log.Logger) *SubscriptionUseCase {
	return &SubscriptionUseCase{
		repo:    repo,
		payment: payment,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// ListPlans 套餐列表
func (uc *SubscriptionUseCase) ListPlans(ctx context.Context) ([]*Plan, error) {
	return uc.repo.ListPlans(ctx)
}

// GetActive 查询账户生效中的订阅
func (uc *SubscriptionUseCase) GetActive(ctx context.Context, accountID string) (*Subscription, error) {
	return uc.repo.GetActiveSubscription(ctx, accountID)
}

// Subscribe 首次订阅：无生效订阅时按全价开通
func (uc *SubscriptionUseCase) Subscribe(ctx context.Context, accountID, planID string) (*Subscription, error) {
	plan, err := uc.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, rewardsErrors.ErrPlanNotFound("plan %s not found", planID)
	}
	if existing, err := uc.repo.GetActiveSubscription(ctx, accountID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, rewardsErrors.ErrSubscriptionConflict("account %s already has an active subscription, use plan change", accountID)
	}

	sub, err := uc.buildSubscription(ctx, accountID, plan, plan.Price)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	uc.log.Infof("subscription created: account_id=%s, plan_id=%s, paid=%.2f", accountID, planID, sub.AmountPaid)
	return sub, nil
}

// QuoteChange 报价：换套餐需要补多少钱（不落库）
func (uc *SubscriptionUseCase) QuoteChange(ctx context.Context, accountID, newPlanID string) (*ProrationQuote, error) {
	current, err := uc.repo.GetActiveSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, rewardsErrors.ErrNoActiveSubscription("account %s has no active subscription", accountID)
	}
	newPlan, err := uc.repo.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if newPlan == nil {
		return nil, rewardsErrors.ErrPlanNotFound("plan %s not found", newPlanID)
	}
	oldPlan, err := uc.repo.GetPlan(ctx, current.PlanID)
	if err != nil {
		return nil, err
	}
	oldPrice := current.AmountPaid
	if oldPlan != nil {
		oldPrice = oldPlan.Price
	}
	return CalculateProration(oldPrice, current.StartedAt, current.ExpiresAt, time.Now(), newPlan.Price), nil
}

// ChangePlan 换套餐：按剩余天数折抵旧套餐价值，先收款再原子切换
// 取消旧订阅与激活新订阅在同一事务完成
func (uc *SubscriptionUseCase) ChangePlan(ctx context.Context, accountID, newPlanID string) (*Subscription, *ProrationQuote, error) {
	current, err := uc.repo.GetActiveSubscription(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if current == nil {
		return nil, nil, rewardsErrors.ErrNoActiveSubscription("account %s has no active subscription", accountID)
	}
	newPlan, err := uc.repo.GetPlan(ctx, newPlanID)
	if err != nil {
		return nil, nil, err
	}
	if newPlan == nil {
		return nil, nil, rewardsErrors.ErrPlanNotFound("plan %s not found", newPlanID)
	}
	oldPlan, err := uc.repo.GetPlan(ctx, current.PlanID)
	if err != nil {
		return nil, nil, err
	}
	oldPrice := current.AmountPaid
	if oldPlan != nil {
		oldPrice = oldPlan.Price
	}

	quote := CalculateProration(oldPrice, current.StartedAt, current.ExpiresAt, time.Now(), newPlan.Price)

	newSub, err := uc.buildSubscription(ctx, accountID, newPlan, quote.FinalPrice)
	if err != nil {
		uc.markPlanChange("failed")
		return nil, nil, err
	}
	if err := uc.repo.SwitchSubscription(ctx, current.SubscriptionID, newSub); err != nil {
		uc.markPlanChange("failed")
		return nil, nil, err
	}
	uc.markPlanChange("success")
	uc.log.Infof("plan changed: account_id=%s, %s -> %s, credit=%.2f, paid=%.2f",
		accountID, current.PlanID, newPlanID, quote.Credit, newSub.AmountPaid)
	return newSub, quote, nil
}

// ExpireSubscriptions 到期订阅批量过期（cron 任务每小时调用）
func (uc *SubscriptionUseCase) ExpireSubscriptions(ctx context.Context) (int64, error) {
	affected, err := uc.repo.ExpireDue(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		uc.log.Infof("expired subscriptions: count=%d", affected)
	}
	return affected, nil
}

// buildSubscription 收款并构造新订阅；0 元单（折抵覆盖全价）跳过收款
func (uc *SubscriptionUseCase) buildSubscription(ctx context.Context, accountID string, plan *Plan, price float64) (*Subscription, error) {
	sub := &Subscription{
		SubscriptionID: uuid.New().String(),
		AccountID:      accountID,
		PlanID:         plan.PlanID,
		Status:         constants.SubStatusActive,
		StartedAt:      time.Now(),
		ExpiresAt:      time.Now().AddDate(0, 0, int(plan.DurationDays)),
		AmountPaid:     price,
	}
	if price <= 0 || uc.payment == nil {
		return sub, nil
	}
	_, err := uc.payment.CreatePayment(ctx, &CreatePaymentRequest{
		OrderID:   sub.SubscriptionID,
		AccountID: accountID,
		Amount:    price,
		Currency:  "USD",
		Subject:   "subscription: " + plan.Name,
	})
	if err != nil {
		return nil, rewardsErrors.ErrPaymentFailed("subscription payment failed: %v", err)
	}
	return sub, nil
}

func (uc *SubscriptionUseCase) markPlanChange(result string) {
	if uc.metrics != nil {
		uc.metrics.PlanChangeTotal.WithLabelValues(result).Inc()
	}
}
