package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/constants"
	"rewards-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// purchaseRepo 购买订单数据访问，实现 biz.PurchaseRepo 接口
type purchaseRepo struct {
	data *Data
	log  *log.Helper
}

// NewPurchaseRepo 创建购买订单 repo
func NewPurchaseRepo(data *Data, logger log.Logger) biz.PurchaseRepo {
	return &purchaseRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreateOrder 创建待支付订单，payment_id 留空等网关受理后回填
func (r *purchaseRepo) CreateOrder(ctx context.Context, order *biz.Purchase) error {
	m := model.Purchase{
		OrderID:   order.OrderID,
		AccountID: order.AccountID,
		Coins:     order.Coins,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Status:    model.OrderStatusPending,
	}
	if order.PaymentID != "" {
		paymentID := order.PaymentID
		m.PaymentID = &paymentID
	}
	return r.data.db.WithContext(ctx).Create(&m).Error
}

// SetPaymentID 回填支付网关订单号
func (r *purchaseRepo) SetPaymentID(ctx context.Context, orderID, paymentID string) error {
	return r.data.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("order_id = ?", orderID).
		Update("payment_id", paymentID).Error
}

// GetOrder 按订单ID查询
func (r *purchaseRepo) GetOrder(ctx context.Context, orderID string) (*biz.Purchase, error) {
	var m model.Purchase
	if err := r.data.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizPurchase(&m), nil
}

// CompleteWithIdempotency 带幂等保证的订单完成
// 锁定订单行后检查状态：已完成直接返回，不重复入账
func (r *purchaseRepo) CompleteWithIdempotency(ctx context.Context, orderID, reference string) (bool, *biz.Purchase, error) {
	var credited bool
	var newBalance int64
	var order model.Purchase
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&order).Error; err != nil {
			return err
		}

		// 幂等：渠道重复推送时订单已是完成态
		if order.Status == model.OrderStatusCompleted {
			credited = false
			return nil
		}

		now := time.Now()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":       model.OrderStatusCompleted,
			"reference":    reference,
			"completed_at": &now,
		}).Error; err != nil {
			return err
		}

		var err error
		newBalance, err = applyLedgerTx(tx, order.AccountID, constants.TxTypePurchase, order.Coins, biz.TxMeta{
			Reference: orderID,
		})
		if err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	if credited {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, order.AccountID)
		if err := r.data.rdb.Set(cacheCtx, balanceKey, newBalance, 5*time.Minute).Err(); err != nil {
			r.log.Warnf("failed to update balance cache: account_id=%s, error=%v", order.AccountID, err)
		}
	}
	return credited, toBizPurchase(&order), nil
}

// MarkFailed 守卫式置为 failed，只有 pending 订单可置
func (r *purchaseRepo) MarkFailed(ctx context.Context, orderID, reason string) error {
	return r.data.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("order_id = ? AND status = ?", orderID, model.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":    model.OrderStatusFailed,
			"reference": reason,
		}).Error
}

// ListOrders 分页查询账户购买订单
func (r *purchaseRepo) ListOrders(ctx context.Context, accountID string, page, pageSize int) ([]*biz.Purchase, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).Model(&model.Purchase{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.Purchase
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	result := make([]*biz.Purchase, 0, len(records))
	for i := range records {
		result = append(result, toBizPurchase(&records[i]))
	}
	return result, total, nil
}

func toBizPurchase(m *model.Purchase) *biz.Purchase {
	paymentID := ""
	if m.PaymentID != nil {
		paymentID = *m.PaymentID
	}
	return &biz.Purchase{
		OrderID:     m.OrderID,
		AccountID:   m.AccountID,
		Coins:       m.Coins,
		Amount:      m.Amount,
		Currency:    m.Currency,
		Status:      m.Status,
		PaymentID:   paymentID,
		Reference:   m.Reference,
		CreatedAt:   m.CreatedAt,
		CompletedAt: m.CompletedAt,
	}
}
