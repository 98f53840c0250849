package service

import (
	"time"

	"rewards-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// SubscriptionService 订阅服务
type SubscriptionService struct {
	subscription *biz.SubscriptionUseCase
	log          *log.Helper
}

// NewSubscriptionService 创建 SubscriptionService
func NewSubscriptionService(subscription *biz.SubscriptionUseCase, logger log.Logger) *SubscriptionService {
	return &SubscriptionService{
		subscription: subscription,
		log:          log.NewHelper(logger),
	}
}

// PlanReply 套餐响应
type PlanReply struct {
	PlanID       string  `json:"plan_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	DurationDays int32   `json:"duration_days"`
}

// SubscriptionReply 订阅响应
type SubscriptionReply struct {
	SubscriptionID string  `json:"subscription_id"`
	PlanID         string  `json:"plan_id"`
	Status         string  `json:"status"`
	StartedAt      string  `json:"started_at"`
	ExpiresAt      string  `json:"expires_at"`
	AmountPaid     float64 `json:"amount_paid"`
}

// SubscribeRequest 订阅/换套餐请求
type SubscribeRequest struct {
	PlanID string `json:"plan_id"`
}

// ChangePlanReply 换套餐响应
type ChangePlanReply struct {
	Subscription *SubscriptionReply  `json:"subscription"`
	Quote        *biz.ProrationQuote `json:"quote"`
}

// RegisterRoutes 注册 HTTP 路由
func (s *SubscriptionService) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.GET("/plans", s.handleListPlans)
	r.GET("/subscription", s.handleGetActive)
	r.POST("/subscription", s.handleSubscribe)
	r.GET("/subscription/change/quote", s.handleQuoteChange)
	r.POST("/subscription/change", s.handleChangePlan)
}

func (s *SubscriptionService) handleListPlans(ctx khttp.Context) error {
	plans, err := s.subscription.ListPlans(ctx)
	if err != nil {
		s.log.Errorf("ListPlans failed: %v", err)
		return err
	}
	reply := make([]*PlanReply, 0, len(plans))
	for _, p := range plans {
		reply = append(reply, &PlanReply{
			PlanID:       p.PlanID,
			Name:         p.Name,
			Price:        p.Price,
			DurationDays: p.DurationDays,
		})
	}
	return ctx.Result(200, reply)
}

func (s *SubscriptionService) handleGetActive(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	sub, err := s.subscription.GetActive(ctx, id)
	if err != nil {
		s.log.Errorf("GetActive failed: account_id=%s, error=%v", id, err)
		return err
	}
	if sub == nil {
		return ctx.Result(200, struct{}{})
	}
	return ctx.Result(200, toSubscriptionReply(sub))
}

func (s *SubscriptionService) handleSubscribe(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req SubscribeRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	sub, err := s.subscription.Subscribe(ctx, id, req.PlanID)
	if err != nil {
		s.log.Errorf("Subscribe failed: account_id=%s, plan_id=%s, error=%v", id, req.PlanID, err)
		return err
	}
	return ctx.Result(200, toSubscriptionReply(sub))
}

func (s *SubscriptionService) handleQuoteChange(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	planID := ctx.Request().URL.Query().Get("plan_id")
	quote, err := s.subscription.QuoteChange(ctx, id, planID)
	if err != nil {
		s.log.Errorf("QuoteChange failed: account_id=%s, plan_id=%s, error=%v", id, planID, err)
		return err
	}
	return ctx.Result(200, quote)
}

func (s *SubscriptionService) handleChangePlan(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req SubscribeRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	sub, quote, err := s.subscription.ChangePlan(ctx, id, req.PlanID)
	if err != nil {
		s.log.Errorf("ChangePlan failed: account_id=%s, plan_id=%s, error=%v", id, req.PlanID, err)
		return err
	}
	return ctx.Result(200, &ChangePlanReply{
		Subscription: toSubscriptionReply(sub),
		Quote:        quote,
	})
}

func toSubscriptionReply(sub *biz.Subscription) *SubscriptionReply {
	return &SubscriptionReply{
		SubscriptionID: sub.SubscriptionID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		StartedAt:      sub.StartedAt.Format(time.RFC3339),
		ExpiresAt:      sub.ExpiresAt.Format(time.RFC3339),
		AmountPaid:     sub.AmountPaid,
	}
}
