package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/constants"
	"rewards-service/internal/data/model"
	rewardsErrors "rewards-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// promoRepo 推广链接数据访问，实现 biz.PromoRepo 接口
type promoRepo struct {
	data *Data
	log  *log.Helper
}

// NewPromoRepo 创建推广链接 repo
func NewPromoRepo(data *Data, logger log.Logger) biz.PromoRepo {
	return &promoRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateLink 创建推广链接
func (r *promoRepo) CreateLink(ctx context.Context, link *biz.PromoLink) error {
	m := model.PromoLink{
		LinkID:          link.LinkID,
		AffiliateID:     link.AffiliateID,
		Code:            link.Code,
		DiscountPercent: link.DiscountPercent,
		MaxSignups:      link.MaxSignups,
		ExpiresAt:       link.ExpiresAt,
	}
	if err := r.data.db.WithContext(ctx).Create(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rewardsErrors.ErrPromoCodeTaken("promo code %s is already taken", link.Code)
		}
		return err
	}
	return nil
}

// GetLinkByCode 按推广码查询（读穿缓存）
func (r *promoRepo) GetLinkByCode(ctx context.Context, code string) (*biz.PromoLink, error) {
	codeKey := fmt.Sprintf("%s%s", constants.RedisKeyPromoCode, code)
	if cached, err := r.data.rdb.Get(ctx, codeKey).Result(); err == nil {
		var link biz.PromoLink
		if err := json.Unmarshal([]byte(cached), &link); err == nil {
			return &link, nil
		}
	}

	var m model.PromoLink
	if err := r.data.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	link := toBizPromoLink(&m)
	if data, err := json.Marshal(link); err == nil {
		if err := r.data.rdb.Set(ctx, codeKey, data, 5*time.Minute).Err(); err != nil {
			r.log.Warnf("failed to cache promo link: code=%s, error=%v", code, err)
		}
	}
	return link, nil
}

// ListLinks 查询推广人的全部链接
func (r *promoRepo) ListLinks(ctx context.Context, affiliateID string) ([]*biz.PromoLink, error) {
	var records []model.PromoLink
	if err := r.data.db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*biz.PromoLink, 0, len(records))
	for i := range records {
		result = append(result, toBizPromoLink(&records[i]))
	}
	return result, nil
}

// RegisterSignup 登记注册归因
// 名额受限时以 signup_count < max 谓词原子占位，满员返回 ErrPromoLinkClosed
func (r *promoRepo) RegisterSignup(ctx context.Context, linkID, accountID string, maxSignups int32) error {
	var code string
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var link model.PromoLink
		if err := tx.Where("link_id = ?", linkID).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rewardsErrors.ErrPromoLinkNotFound("promo link %s not found", linkID)
			}
			return err
		}
		code = link.Code

		query := tx.Model(&model.PromoLink{}).Where("link_id = ?", linkID)
		if maxSignups > 0 {
			query = query.Where("signup_count < ?", maxSignups)
		}
		result := query.UpdateColumn("signup_count", gorm.Expr("signup_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return rewardsErrors.ErrPromoLinkClosed("promo link %s signup quota exhausted", linkID)
		}

		// 账户可能尚未建档（注册流程里先归因后建账）
		update := tx.Model(&model.Account{}).
			Where("account_id = ?", accountID).
			Update("referred_by", linkID)
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return tx.Create(&model.Account{AccountID: accountID, ReferredBy: linkID}).Error
		}
		return nil
	})
	if err != nil {
		return err
	}

	// signup_count 变了，推广码缓存作废
	codeKey := fmt.Sprintf("%s%s", constants.RedisKeyPromoCode, code)
	if err := r.data.rdb.Del(ctx, codeKey).Err(); err != nil {
		r.log.Warnf("failed to invalidate promo link cache: code=%s, error=%v", code, err)
	}
	return nil
}

// GetLinkRevenue 链接归因收入：经由该链接注册的账户的已完成购买金额之和
func (r *promoRepo) GetLinkRevenue(ctx context.Context, linkID string) (float64, error) {
	var revenue float64
	err := r.data.db.WithContext(ctx).
		Table("purchase").
		Joins("JOIN account ON account.account_id = purchase.account_id").
		Where("account.referred_by = ? AND purchase.status = ?", linkID, model.OrderStatusCompleted).
		Select("COALESCE(SUM(purchase.amount), 0)").
		Scan(&revenue).Error
	return revenue, err
}

func toBizPromoLink(m *model.PromoLink) *biz.PromoLink {
	return &biz.PromoLink{
		LinkID:          m.LinkID,
		AffiliateID:     m.AffiliateID,
		Code:            m.Code,
		DiscountPercent: m.DiscountPercent,
		MaxSignups:      m.MaxSignups,
		SignupCount:     m.SignupCount,
		ExpiresAt:       m.ExpiresAt,
		CreatedAt:       m.CreatedAt,
	}
}
