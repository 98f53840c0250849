package service

import (
	"time"

	"rewards-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// AffiliateService 推广服务：推广链接、佣金汇总、提现工作流
type AffiliateService struct {
	commission *biz.CommissionUseCase
	payout     *biz.PayoutUseCase
	log        *log.Helper
}

// NewAffiliateService 创建 AffiliateService
func NewAffiliateService(commission *biz.CommissionUseCase, payout *biz.PayoutUseCase, logger log.Logger) *AffiliateService {
	return &AffiliateService{
		commission: commission,
		payout:     payout,
		log:        log.NewHelper(logger),
	}
}

// CreateLinkRequest 创建推广链接请求
type CreateLinkRequest struct {
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discount_percent"`
	MaxSignups      int32   `json:"max_signups"`
	ExpiresAt       string  `json:"expires_at"` // RFC3339，可空
}

// PromoLinkReply 推广链接响应
type PromoLinkReply struct {
	LinkID          string  `json:"link_id"`
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discount_percent"`
	MaxSignups      int32   `json:"max_signups"`
	SignupCount     int32   `json:"signup_count"`
	ExpiresAt       string  `json:"expires_at,omitempty"`
}

// SignupRequest 推广注册归因请求
type SignupRequest struct {
	Code      string `json:"code"`
	AccountID string `json:"account_id"`
}

// RequestPayoutRequest 提交提现请求
type RequestPayoutRequest struct {
	Type   string  `json:"type"` // commission / coin
	Amount float64 `json:"amount"`
}

// PayoutReply 提现请求响应
type PayoutReply struct {
	RequestID   string  `json:"request_id"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	Reference   string  `json:"reference,omitempty"`
	RequestedAt string  `json:"requested_at"`
}

// RejectPayoutRequest 驳回提现请求
type RejectPayoutRequest struct {
	Reason string `json:"reason"`
}

// ListPayoutsReply 提现请求列表响应
type ListPayoutsReply struct {
	Total int64          `json:"total"`
	Items []*PayoutReply `json:"items"`
}

// RegisterRoutes 注册 HTTP 路由
func (s *AffiliateService) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.POST("/promo-links", s.handleCreateLink)
	r.POST("/promo-links/signup", s.handleSignup)
	r.GET("/commission/summary", s.handleSummary)
	r.POST("/payouts", s.handleRequestPayout)
	r.GET("/payouts", s.handleListPayouts)
	r.POST("/payouts/{id}/approve", s.handleApprovePayout)
	r.POST("/payouts/{id}/reject", s.handleRejectPayout)
	r.POST("/payouts/{id}/cancel", s.handleCancelPayout)
}

func (s *AffiliateService) handleCreateLink(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req CreateLinkRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			return err
		}
		expiresAt = &t
	}

	link, err := s.commission.CreateLink(ctx, id, req.Code, req.DiscountPercent, req.MaxSignups, expiresAt)
	if err != nil {
		s.log.Errorf("CreateLink failed: affiliate_id=%s, code=%s, error=%v", id, req.Code, err)
		return err
	}
	return ctx.Result(200, toLinkReply(link))
}

func (s *AffiliateService) handleSignup(ctx khttp.Context) error {
	var req SignupRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	link, err := s.commission.RegisterSignup(ctx, req.Code, req.AccountID)
	if err != nil {
		s.log.Errorf("RegisterSignup failed: code=%s, account_id=%s, error=%v", req.Code, req.AccountID, err)
		return err
	}
	return ctx.Result(200, toLinkReply(link))
}

func (s *AffiliateService) handleSummary(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	summary, err := s.commission.Summary(ctx, id)
	if err != nil {
		s.log.Errorf("Summary failed: affiliate_id=%s, error=%v", id, err)
		return err
	}
	return ctx.Result(200, summary)
}

func (s *AffiliateService) handleRequestPayout(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req RequestPayoutRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	payout, err := s.payout.Request(ctx, id, req.Type, req.Amount)
	if err != nil {
		s.log.Errorf("RequestPayout failed: account_id=%s, type=%s, error=%v", id, req.Type, err)
		return err
	}
	return ctx.Result(200, toPayoutReply(payout))
}

func (s *AffiliateService) handleListPayouts(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	page, pageSize := pagination(ctx)
	items, total, err := s.payout.ListPayouts(ctx, id, page, pageSize)
	if err != nil {
		s.log.Errorf("ListPayouts failed: account_id=%s, error=%v", id, err)
		return err
	}
	reply := &ListPayoutsReply{
		Total: total,
		Items: make([]*PayoutReply, 0, len(items)),
	}
	for _, p := range items {
		reply.Items = append(reply.Items, toPayoutReply(p))
	}
	return ctx.Result(200, reply)
}

// handleApprovePayout 运营审批接口，部署在内部网段
func (s *AffiliateService) handleApprovePayout(ctx khttp.Context) error {
	requestID := ctx.Vars().Get("id")
	payout, err := s.payout.Approve(ctx, requestID)
	if err != nil {
		s.log.Errorf("ApprovePayout failed: request_id=%s, error=%v", requestID, err)
		return err
	}
	return ctx.Result(200, toPayoutReply(payout))
}

func (s *AffiliateService) handleRejectPayout(ctx khttp.Context) error {
	requestID := ctx.Vars().Get("id")
	var req RejectPayoutRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := s.payout.Reject(ctx, requestID, req.Reason); err != nil {
		s.log.Errorf("RejectPayout failed: request_id=%s, error=%v", requestID, err)
		return err
	}
	return ctx.Result(200, &struct {
		Success bool `json:"success"`
	}{Success: true})
}

func (s *AffiliateService) handleCancelPayout(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	requestID := ctx.Vars().Get("id")
	if err := s.payout.Cancel(ctx, id, requestID); err != nil {
		s.log.Errorf("CancelPayout failed: request_id=%s, account_id=%s, error=%v", requestID, id, err)
		return err
	}
	return ctx.Result(200, &struct {
		Success bool `json:"success"`
	}{Success: true})
}

func toLinkReply(link *biz.PromoLink) *PromoLinkReply {
	reply := &PromoLinkReply{
		LinkID:          link.LinkID,
		Code:            link.Code,
		DiscountPercent: link.DiscountPercent,
		MaxSignups:      link.MaxSignups,
		SignupCount:     link.SignupCount,
	}
	if link.ExpiresAt != nil {
		reply.ExpiresAt = link.ExpiresAt.Format(time.RFC3339)
	}
	return reply
}

func toPayoutReply(p *biz.PayoutRequest) *PayoutReply {
	return &PayoutReply{
		RequestID:   p.RequestID,
		Type:        p.Type,
		Amount:      p.Amount,
		Status:      p.Status,
		Reference:   p.Reference,
		RequestedAt: p.RequestedAt.Format(time.RFC3339),
	}
}
