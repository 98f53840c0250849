package biz

import (
	"context"
	"math"
	"strings"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PromoLink 推广链接领域对象
// code 全局唯一且大小写不敏感，存储层统一保存小写形式
type PromoLink struct {
	LinkID          string
	AffiliateID     string
	Code            string
	DiscountPercent float64
	MaxSignups      int32 // 0 表示不限
	SignupCount     int32
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}

// LinkEarning 单链接佣金汇总
type LinkEarning struct {
	LinkID          string  `json:"link_id"`
	Code            string  `json:"code"`
	DiscountPercent float64 `json:"discount_percent"`
	SignupCount     int32   `json:"signup_count"`
	Revenue         float64 `json:"revenue"`
	Commission      float64 `json:"commission"`
}

// CommissionSummary 推广人佣金汇总
// Payable 带符号保留用于审计，Available 对外展示时截断为非负
type CommissionSummary struct {
	AffiliateID     string         `json:"affiliate_id"`
	TotalEarnings   float64        `json:"total_earnings"`
	ApprovedPayouts float64        `json:"approved_payouts"`
	PendingPayouts  float64        `json:"pending_payouts"`
	Payable         float64        `json:"payable"`
	Available       float64        `json:"available"`
	Links           []*LinkEarning `json:"links"`
}

// PromoRepo 推广链接数据层接口（定义在 biz 层）
type PromoRepo interface {
	// CreateLink 创建推广链接；code 撞唯一键返回 ErrPromoCodeTaken
	CreateLink(ctx context.Context, link *PromoLink) error
	GetLinkByCode(ctx context.Context, code string) (*PromoLink, error)
	ListLinks(ctx context.Context, affiliateID string) ([]*PromoLink, error)
	// RegisterSignup 原子登记注册归因：名额受限时以条件更新保证不超发
	RegisterSignup(ctx context.Context, linkID, accountID string, maxSignups int32) error
	// GetLinkRevenue 该链接归因收入 = 经由它注册的账户的已完成购买金额之和
	GetLinkRevenue(ctx context.Context, linkID string) (float64, error)
}

// CommissionUseCase 推广佣金业务逻辑
// 佣金不做缓存，每次请求现算：佣金率 = 佣金池比例 - 链接折扣比例
type CommissionUseCase struct {
	repo       PromoRepo
	payoutRepo PayoutRepo
	conf       *RewardsConfig
	log        *log.Helper
	metrics    *metrics.RewardsMetrics
}

// NewCommissionUseCase 创建佣金 UseCase
func NewCommissionUseCase(repo PromoRepo, payoutRepo PayoutRepo, conf *RewardsConfig, logger log.Logger) *CommissionUseCase {
	return &CommissionUseCase{
		repo:       repo,
		payoutRepo: payoutRepo,
		conf:       conf,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
	}
}

// NormalizePromoCode 推广码规范化：去空白并转小写
func NormalizePromoCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// CreateLink 创建推广链接
func (uc *CommissionUseCase) CreateLink(ctx context.Context, affiliateID, code string, discountPercent float64, maxSignups int32, expiresAt *time.Time) (*PromoLink, error) {
	code = NormalizePromoCode(code)
	if code == "" {
		return nil, rewardsErrors.ErrInvalidAmount("promo code is empty")
	}
	// 折扣不能吃穿佣金池，否则佣金率为负
	if discountPercent < 0 || discountPercent > uc.conf.CommissionPool {
		return nil, rewardsErrors.ErrInvalidAmount("discount_percent must be within [0, %.0f], got %.2f", uc.conf.CommissionPool, discountPercent)
	}
	if maxSignups < 0 {
		return nil, rewardsErrors.ErrInvalidAmount("max_signups must be non-negative, got %d", maxSignups)
	}

	link := &PromoLink{
		LinkID:          uuid.New().String(),
		AffiliateID:     affiliateID,
		Code:            code,
		DiscountPercent: discountPercent,
		MaxSignups:      maxSignups,
		ExpiresAt:       expiresAt,
	}
	if err := uc.repo.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	uc.log.Infof("promo link created: affiliate_id=%s, code=%s, discount=%.2f", affiliateID, code, discountPercent)
	return link, nil
}

// RegisterSignup 登记一个经由推广码注册的账户
func (uc *CommissionUseCase) RegisterSignup(ctx context.Context, code, accountID string) (*PromoLink, error) {
	link, err := uc.repo.GetLinkByCode(ctx, NormalizePromoCode(code))
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, rewardsErrors.ErrPromoLinkNotFound("promo code %s not found", code)
	}
	if link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt) {
		return nil, rewardsErrors.ErrPromoLinkClosed("promo code %s expired", code)
	}
	if link.MaxSignups > 0 && link.SignupCount >= link.MaxSignups {
		return nil, rewardsErrors.ErrPromoLinkClosed("promo code %s signup quota exhausted", code)
	}
	if err := uc.repo.RegisterSignup(ctx, link.LinkID, accountID, link.MaxSignups); err != nil {
		return nil, err
	}
	return link, nil
}

// Summary 计算推广人佣金汇总
// 可提金额 = 累计佣金 - 已打款总额 - 待审批总额
func (uc *CommissionUseCase) Summary(ctx context.Context, affiliateID string) (*CommissionSummary, error) {
	startTime := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.CommissionQueryDuration.Observe(time.Since(startTime).Seconds())
		}
	}()

	links, err := uc.repo.ListLinks(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	summary := &CommissionSummary{
		AffiliateID: affiliateID,
		Links:       make([]*LinkEarning, 0, len(links)),
	}
	for _, link := range links {
		revenue, err := uc.repo.GetLinkRevenue(ctx, link.LinkID)
		if err != nil {
			return nil, err
		}
		commission := Round2(revenue * (uc.conf.CommissionPool - link.DiscountPercent) / 100)
		summary.TotalEarnings += commission
		summary.Links = append(summary.Links, &LinkEarning{
			LinkID:          link.LinkID,
			Code:            link.Code,
			DiscountPercent: link.DiscountPercent,
			SignupCount:     link.SignupCount,
			Revenue:         Round2(revenue),
			Commission:      commission,
		})
	}
	summary.TotalEarnings = Round2(summary.TotalEarnings)

	approved, err := uc.payoutRepo.SumPayoutAmounts(ctx, affiliateID, constants.PayoutTypeCommission, constants.PayoutStatusApproved)
	if err != nil {
		return nil, err
	}
	pending, err := uc.payoutRepo.SumPayoutAmounts(ctx, affiliateID, constants.PayoutTypeCommission, constants.PayoutStatusPending)
	if err != nil {
		return nil, err
	}
	summary.ApprovedPayouts = Round2(approved)
	summary.PendingPayouts = Round2(pending)
	summary.Payable = Round2(summary.TotalEarnings - summary.ApprovedPayouts - summary.PendingPayouts)
	summary.Available = math.Max(0, summary.Payable)
	return summary, nil
}

// Round2 四舍五入保留两位小数（half away from zero）
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
