package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/constants"
	"rewards-service/internal/data/model"
	rewardsErrors "rewards-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// payoutRepo 提现请求数据访问，实现 biz.PayoutRepo 接口
type payoutRepo struct {
	data *Data
	log  *log.Helper
}

// NewPayoutRepo 创建提现请求 repo
func NewPayoutRepo(data *Data, logger log.Logger) biz.PayoutRepo {
	return &payoutRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// CreatePayout 创建 pending 请求
// pending_key 唯一键兜底"每账户至多一条 pending"；
// 金币提现在同一事务内扣减余额，唯一键冲突时整体回滚不扣钱
func (r *payoutRepo) CreatePayout(ctx context.Context, req *biz.PayoutRequest, deductCoins bool) error {
	pendingKey := req.AccountID
	m := model.PayoutRequest{
		RequestID:  req.RequestID,
		AccountID:  req.AccountID,
		Type:       req.Type,
		Amount:     req.Amount,
		Status:     model.PayoutStatusPending,
		PendingKey: &pendingKey,
	}

	var newBalance int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return rewardsErrors.ErrDuplicatePending("account %s already has a pending payout", req.AccountID)
			}
			return err
		}
		if !deductCoins {
			return nil
		}
		var err error
		newBalance, err = applyLedgerTx(tx, req.AccountID, constants.TxTypeWithdrawal, -int64(req.Amount), biz.TxMeta{
			Reference: req.RequestID,
		})
		return err
	})
	if err != nil {
		return err
	}
	if deductCoins {
		r.cachePayoutBalance(req.AccountID, newBalance)
	}
	req.RequestedAt = m.RequestedAt
	req.Status = m.Status
	return nil
}

// GetPayout 按请求ID查询
func (r *payoutRepo) GetPayout(ctx context.Context, requestID string) (*biz.PayoutRequest, error) {
	var m model.PayoutRequest
	if err := r.data.db.WithContext(ctx).Where("request_id = ?", requestID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizPayout(&m), nil
}

// GetPendingByAccount 查询账户当前的 pending 请求
func (r *payoutRepo) GetPendingByAccount(ctx context.Context, accountID string) (*biz.PayoutRequest, error) {
	var m model.PayoutRequest
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ? AND status = ?", accountID, model.PayoutStatusPending).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizPayout(&m), nil
}

// ListPayouts 分页查询账户提现请求
func (r *payoutRepo) ListPayouts(ctx context.Context, accountID string, page, pageSize int) ([]*biz.PayoutRequest, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).Model(&model.PayoutRequest{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.PayoutRequest
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("requested_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	result := make([]*biz.PayoutRequest, 0, len(records))
	for i := range records {
		result = append(result, toBizPayout(&records[i]))
	}
	return result, total, nil
}

// SumPayoutAmounts 按类型与状态求和
func (r *payoutRepo) SumPayoutAmounts(ctx context.Context, accountID, payoutType, status string) (float64, error) {
	var sum float64
	err := r.data.db.WithContext(ctx).Model(&model.PayoutRequest{}).
		Where("account_id = ? AND type = ? AND status = ?", accountID, payoutType, status).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// ApprovePayout 守卫式推进 pending → approved
func (r *payoutRepo) ApprovePayout(ctx context.Context, requestID, reference string) error {
	return r.transition(ctx, requestID, model.PayoutStatusApproved, map[string]interface{}{
		"reference": reference,
	}, false)
}

// RejectPayout 守卫式推进 pending → rejected，金币提现退款
func (r *payoutRepo) RejectPayout(ctx context.Context, requestID, reason string, refundCoins bool) error {
	return r.transition(ctx, requestID, model.PayoutStatusRejected, map[string]interface{}{
		"reject_reason": reason,
	}, refundCoins)
}

// CancelPayout 守卫式推进 pending → cancelled，金币提现退款
func (r *payoutRepo) CancelPayout(ctx context.Context, requestID string, refundCoins bool) error {
	return r.transition(ctx, requestID, model.PayoutStatusCancelled, nil, refundCoins)
}

// transition 状态推进与退款在同一事务内完成
// WHERE status = pending 守卫保证状态机幂等：重复推进只会影响 0 行
func (r *payoutRepo) transition(ctx context.Context, requestID, toStatus string, extra map[string]interface{}, refundCoins bool) error {
	var refundAccount string
	var newBalance int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.PayoutRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("request_id = ?", requestID).
			First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rewardsErrors.ErrPayoutNotFound("payout request %s not found", requestID)
			}
			return err
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":       toStatus,
			"pending_key":  nil,
			"processed_at": &now,
		}
		for k, v := range extra {
			updates[k] = v
		}
		result := tx.Model(&model.PayoutRequest{}).
			Where("request_id = ? AND status = ?", requestID, model.PayoutStatusPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return rewardsErrors.ErrPayoutNotPending("payout request %s is %s", requestID, m.Status)
		}

		if refundCoins {
			var err error
			refundAccount = m.AccountID
			newBalance, err = applyLedgerTx(tx, m.AccountID, constants.TxTypeRefund, int64(m.Amount), biz.TxMeta{
				Reference: requestID,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	if refundAccount != "" {
		r.cachePayoutBalance(refundAccount, newBalance)
	}
	return nil
}

// cachePayoutBalance 事务提交后回写余额缓存
func (r *payoutRepo) cachePayoutBalance(accountID string, balance int64) {
	cacheCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, accountID)
	if err := r.data.rdb.Set(cacheCtx, balanceKey, balance, 5*time.Minute).Err(); err != nil {
		r.log.Warnf("failed to update balance cache: account_id=%s, error=%v", accountID, err)
	}
}

func toBizPayout(m *model.PayoutRequest) *biz.PayoutRequest {
	return &biz.PayoutRequest{
		RequestID:    m.RequestID,
		AccountID:    m.AccountID,
		Type:         m.Type,
		Amount:       m.Amount,
		Status:       m.Status,
		Reference:    m.Reference,
		RejectReason: m.RejectReason,
		RequestedAt:  m.RequestedAt,
		ProcessedAt:  m.ProcessedAt,
	}
}
