package data

import (
	"context"
	"errors"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/data/model"
	rewardsErrors "rewards-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// subscriptionRepo 订阅数据访问，实现 biz.SubscriptionRepo 接口
type subscriptionRepo struct {
	data *Data
	log  *log.Helper
}

// NewSubscriptionRepo 创建订阅 repo
func NewSubscriptionRepo(data *Data, logger log.Logger) biz.SubscriptionRepo {
	return &subscriptionRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// GetPlan 按ID查询套餐
func (r *subscriptionRepo) GetPlan(ctx context.Context, planID string) (*biz.Plan, error) {
	var m model.Plan
	if err := r.data.db.WithContext(ctx).Where("plan_id = ?", planID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizPlan(&m), nil
}

// ListPlans 套餐列表
func (r *subscriptionRepo) ListPlans(ctx context.Context) ([]*biz.Plan, error) {
	var records []model.Plan
	if err := r.data.db.WithContext(ctx).Order("price ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	result := make([]*biz.Plan, 0, len(records))
	for i := range records {
		result = append(result, toBizPlan(&records[i]))
	}
	return result, nil
}

// GetActiveSubscription 查询账户生效中的订阅
func (r *subscriptionRepo) GetActiveSubscription(ctx context.Context, accountID string) (*biz.Subscription, error) {
	var m model.Subscription
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, model.SubStatusActive).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizSubscription(&m), nil
}

// CreateSubscription 创建 active 订阅
// active_key 唯一键保证并发下也只会有一条 active
func (r *subscriptionRepo) CreateSubscription(ctx context.Context, sub *biz.Subscription) error {
	m := toModelSubscription(sub)
	if err := r.data.db.WithContext(ctx).Create(m).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rewardsErrors.ErrSubscriptionConflict("account %s already has an active subscription", sub.AccountID)
		}
		return err
	}
	return nil
}

// SwitchSubscription 取消旧订阅并激活新订阅，同一事务完成
// 旧订阅必须仍是 active，否则说明并发换套餐已经抢先
func (r *subscriptionRepo) SwitchSubscription(ctx context.Context, oldSubscriptionID string, newSub *biz.Subscription) error {
	return r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Subscription{}).
			Where("subscription_id = ? AND status = ?", oldSubscriptionID, model.SubStatusActive).
			Updates(map[string]interface{}{
				"status":     model.SubStatusCancelled,
				"active_key": nil,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return rewardsErrors.ErrSubscriptionConflict("subscription %s is no longer active", oldSubscriptionID)
		}

		if err := tx.Create(toModelSubscription(newSub)).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return rewardsErrors.ErrSubscriptionConflict("account %s already has an active subscription", newSub.AccountID)
			}
			return err
		}
		return nil
	})
}

// ExpireDue 批量过期到期订阅
func (r *subscriptionRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	result := r.data.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("status = ? AND expires_at <= ?", model.SubStatusActive, now).
		Updates(map[string]interface{}{
			"status":     model.SubStatusExpired,
			"active_key": nil,
		})
	return result.RowsAffected, result.Error
}

func toBizPlan(m *model.Plan) *biz.Plan {
	return &biz.Plan{
		PlanID:       m.PlanID,
		Name:         m.Name,
		Price:        m.Price,
		DurationDays: m.DurationDays,
	}
}

func toBizSubscription(m *model.Subscription) *biz.Subscription {
	return &biz.Subscription{
		SubscriptionID: m.SubscriptionID,
		AccountID:      m.AccountID,
		PlanID:         m.PlanID,
		Status:         m.Status,
		StartedAt:      m.StartedAt,
		ExpiresAt:      m.ExpiresAt,
		AmountPaid:     m.AmountPaid,
	}
}

func toModelSubscription(sub *biz.Subscription) *model.Subscription {
	m := &model.Subscription{
		SubscriptionID: sub.SubscriptionID,
		AccountID:      sub.AccountID,
		PlanID:         sub.PlanID,
		Status:         sub.Status,
		StartedAt:      sub.StartedAt,
		ExpiresAt:      sub.ExpiresAt,
		AmountPaid:     sub.AmountPaid,
	}
	if sub.Status == model.SubStatusActive {
		activeKey := sub.AccountID
		m.ActiveKey = &activeKey
	}
	return m
}
