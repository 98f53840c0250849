package biz

import (
	"context"
	"strconv"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// PayoutRequest 提现请求领域对象
// 两种类型共用同一状态机，只有扣减时点不同：
//   - commission 佣金打款：审批通过时才占用可提额度
//   - coin 金币提现：申请时立即扣减金币，驳回/取消时退款
type PayoutRequest struct {
	RequestID    string
	AccountID    string
	Type         string // constants.PayoutType*
	Amount       float64
	Status       string // constants.PayoutStatus*
	Reference    string // 打款渠道回执号
	RejectReason string
	RequestedAt  time.Time
	ProcessedAt  *time.Time
}

// PayoutRepo 提现请求数据层接口（定义在 biz 层）
// 每账户同时至多一条 pending 由存储层唯一键兜底，业务层预检只是快速失败
type PayoutRepo interface {
	// CreatePayout 创建 pending 请求；deductCoins 为真时在同一事务内
	// 写 withdrawal 账本交易（条件更新，余额不足返回 ErrInsufficientBalance）；
	// 撞 pending 唯一键返回 ErrDuplicatePending
	CreatePayout(ctx context.Context, req *PayoutRequest, deductCoins bool) error
	GetPayout(ctx context.Context, requestID string) (*PayoutRequest, error)
	GetPendingByAccount(ctx context.Context, accountID string) (*PayoutRequest, error)
	ListPayouts(ctx context.Context, accountID string, page, pageSize int) ([]*PayoutRequest, int64, error)
	SumPayoutAmounts(ctx context.Context, accountID, payoutType, status string) (float64, error)
	// ApprovePayout 守卫式状态推进（WHERE status = pending），
	// 已离开 pending 返回 ErrPayoutNotPending
	ApprovePayout(ctx context.Context, requestID, reference string) error
	// RejectPayout 驳回；refundCoins 为真时在同一事务内写 refund 账本交易
	RejectPayout(ctx context.Context, requestID, reason string, refundCoins bool) error
	// CancelPayout 取消；refundCoins 语义同上
	CancelPayout(ctx context.Context, requestID string, refundCoins bool) error
}

// PayoutUseCase 提现工作流业务逻辑
type PayoutUseCase struct {
	repo       PayoutRepo
	ledgerRepo LedgerRepo
	commission *CommissionUseCase
	payment    PaymentInitiator
	locker     Locker
	conf       *RewardsConfig
	notify     NotificationSender
	log        *log.Helper
	metrics    *metrics.RewardsMetrics
}

// NewPayoutUseCase 创建提现 UseCase
func NewPayoutUseCase(repo PayoutRepo, ledgerRepo LedgerRepo, commission *CommissionUseCase, payment PaymentInitiator, locker Locker, conf *RewardsConfig, notify NotificationSender, logger log.Logger) *PayoutUseCase {
	return &PayoutUseCase{
		repo:       repo,
		ledgerRepo: ledgerRepo,
		commission: commission,
		payment:    payment,
		locker:     locker,
		conf:       conf,
		notify:     notify,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
	}
}

// Request 提交提现请求
// 佣金打款金额取申请时刻的可提余额快照；金币提现允许指定金币数，
// 0 表示全部余额，申请即扣减
func (uc *PayoutUseCase) Request(ctx context.Context, accountID, payoutType string, amount float64) (*PayoutRequest, error) {
	startTime := time.Now()
	defer uc.observe("request", startTime)

	if payoutType != constants.PayoutTypeCommission && payoutType != constants.PayoutTypeCoin {
		return nil, rewardsErrors.ErrInvalidAmount("unknown payout type %s", payoutType)
	}

	account, err := uc.ledgerRepo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, rewardsErrors.ErrAccountNotFound("account %s not found", accountID)
	}
	if !account.MFAEnabled {
		return nil, rewardsErrors.ErrMFARequired("enable two-factor authentication before requesting a payout")
	}
	if account.PayoutIBAN == "" {
		return nil, rewardsErrors.ErrMissingPayoutInfo("payout bank details are not configured")
	}

	// 预检只为尽早报错，真正的唯一性由存储层 pending 唯一键保证
	if existing, err := uc.repo.GetPendingByAccount(ctx, accountID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, rewardsErrors.ErrDuplicatePending("payout request %s is still pending", existing.RequestID)
	}

	req := &PayoutRequest{
		RequestID: uuid.New().String(),
		AccountID: accountID,
		Type:      payoutType,
		Status:    constants.PayoutStatusPending,
	}

	deductCoins := false
	switch payoutType {
	case constants.PayoutTypeCommission:
		summary, err := uc.commission.Summary(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if summary.Available < uc.conf.MinPayoutAmount {
			return nil, rewardsErrors.ErrBelowMinimum("available commission %.2f is below minimum %.2f", summary.Available, uc.conf.MinPayoutAmount)
		}
		req.Amount = summary.Available
	case constants.PayoutTypeCoin:
		coins := int64(amount)
		if coins <= 0 {
			coins = account.CoinBalance
		}
		if coins < uc.conf.MinWithdrawalCoins {
			return nil, rewardsErrors.ErrBelowMinimum("withdrawal of %d coins is below minimum %d", coins, uc.conf.MinWithdrawalCoins)
		}
		req.Amount = float64(coins)
		deductCoins = true
	}

	if err := uc.repo.CreatePayout(ctx, req, deductCoins); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PayoutTotal.WithLabelValues(payoutType, constants.PayoutStatusPending).Inc()
		uc.metrics.PayoutAmount.WithLabelValues(payoutType).Add(req.Amount)
	}
	uc.log.Infof("payout requested: account_id=%s, type=%s, amount=%.2f, request_id=%s", accountID, payoutType, req.Amount, req.RequestID)
	return req, nil
}

// Approve 审批通过并发起打款
// 审批前以申请时快照对照最新可提余额重新校验，防止两次申请套取同一笔额度
func (uc *PayoutUseCase) Approve(ctx context.Context, requestID string) (*PayoutRequest, error) {
	startTime := time.Now()
	defer uc.observe("approve", startTime)

	release, err := uc.acquireLock(ctx, constants.RedisKeyPayoutLock+requestID)
	if err != nil {
		return nil, err
	}
	defer release()

	req, err := uc.repo.GetPayout(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, rewardsErrors.ErrPayoutNotFound("payout request %s not found", requestID)
	}
	if req.Status != constants.PayoutStatusPending {
		return nil, rewardsErrors.ErrPayoutNotPending("payout request %s is %s", requestID, req.Status)
	}

	if req.Type == constants.PayoutTypeCommission {
		// 排除本请求后重算可提余额；金币提现在申请时已扣减，无需复核
		summary, err := uc.commission.Summary(ctx, req.AccountID)
		if err != nil {
			return nil, err
		}
		available := Round2(summary.Payable + req.Amount)
		if req.Amount > available {
			return nil, rewardsErrors.ErrInsufficientBalance("snapshot %.2f exceeds available commission %.2f", req.Amount, available)
		}
	}

	account, err := uc.ledgerRepo.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, rewardsErrors.ErrAccountNotFound("account %s not found", req.AccountID)
	}

	reply, err := uc.payment.Disburse(ctx, &DisburseRequest{
		RequestID: req.RequestID,
		AccountID: req.AccountID,
		Amount:    req.Amount,
		IBAN:      account.PayoutIBAN,
	})
	if err != nil {
		return nil, rewardsErrors.ErrPaymentFailed("disburse failed: %v", err)
	}
	if !reply.Success {
		return nil, rewardsErrors.ErrPaymentFailed("payment channel declined disbursement for request %s", requestID)
	}

	if err := uc.repo.ApprovePayout(ctx, requestID, reply.Reference); err != nil {
		// 打款已出而状态推进失败，必须人工对账，错误里带上回执号
		uc.log.Errorf("payout disbursed but state update failed: request_id=%s, reference=%s, error=%v", requestID, reply.Reference, err)
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.PayoutTotal.WithLabelValues(req.Type, constants.PayoutStatusApproved).Inc()
	}
	uc.notifyDecision(ctx, req, constants.NotifyTypePayoutApproved, reply.Reference)
	uc.log.Infof("payout approved: request_id=%s, account_id=%s, amount=%.2f, reference=%s", requestID, req.AccountID, req.Amount, reply.Reference)

	req.Status = constants.PayoutStatusApproved
	req.Reference = reply.Reference
	return req, nil
}

// Reject 驳回提现请求；金币提现退还申请时扣减的金币
// 与 Approve 抢同一把请求级锁：打款外呼不在数据库守卫事务里，
// 落在外呼窗口内的驳回会造成打款与退款同时成立
func (uc *PayoutUseCase) Reject(ctx context.Context, requestID, reason string) error {
	startTime := time.Now()
	defer uc.observe("reject", startTime)

	release, err := uc.acquireLock(ctx, constants.RedisKeyPayoutLock+requestID)
	if err != nil {
		return err
	}
	defer release()

	req, err := uc.repo.GetPayout(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return rewardsErrors.ErrPayoutNotFound("payout request %s not found", requestID)
	}
	if req.Status != constants.PayoutStatusPending {
		return rewardsErrors.ErrPayoutNotPending("payout request %s is %s", requestID, req.Status)
	}

	refund := req.Type == constants.PayoutTypeCoin
	if err := uc.repo.RejectPayout(ctx, requestID, reason, refund); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.PayoutTotal.WithLabelValues(req.Type, constants.PayoutStatusRejected).Inc()
	}
	uc.notifyDecision(ctx, req, constants.NotifyTypePayoutRejected, reason)
	uc.log.Infof("payout rejected: request_id=%s, account_id=%s, reason=%s", requestID, req.AccountID, reason)
	return nil
}

// Cancel 申请人主动取消，仅 pending 可取消；金币提现全额退款
// 同 Reject，必须持有请求级锁再看状态，避开 Approve 的打款窗口
func (uc *PayoutUseCase) Cancel(ctx context.Context, accountID, requestID string) error {
	startTime := time.Now()
	defer uc.observe("cancel", startTime)

	release, err := uc.acquireLock(ctx, constants.RedisKeyPayoutLock+requestID)
	if err != nil {
		return err
	}
	defer release()

	req, err := uc.repo.GetPayout(ctx, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return rewardsErrors.ErrPayoutNotFound("payout request %s not found", requestID)
	}
	if req.AccountID != accountID {
		return rewardsErrors.ErrPayoutNotOwner("payout request %s belongs to another account", requestID)
	}
	if req.Status != constants.PayoutStatusPending {
		return rewardsErrors.ErrPayoutNotPending("payout request %s is %s", requestID, req.Status)
	}

	refund := req.Type == constants.PayoutTypeCoin
	if err := uc.repo.CancelPayout(ctx, requestID, refund); err != nil {
		return err
	}

	if uc.metrics != nil {
		uc.metrics.PayoutTotal.WithLabelValues(req.Type, constants.PayoutStatusCancelled).Inc()
	}
	uc.log.Infof("payout cancelled: request_id=%s, account_id=%s, refunded=%v", requestID, accountID, refund)
	return nil
}

// ListPayouts 查询账户的提现请求列表
func (uc *PayoutUseCase) ListPayouts(ctx context.Context, accountID string, page, pageSize int) ([]*PayoutRequest, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.repo.ListPayouts(ctx, accountID, page, pageSize)
}

func (uc *PayoutUseCase) acquireLock(ctx context.Context, key string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}
	lockStart := time.Now()
	release, err := uc.locker.Acquire(ctx, key)
	if uc.metrics != nil {
		uc.metrics.LockAcquireDuration.Observe(time.Since(lockStart).Seconds())
		if err != nil {
			uc.metrics.LockAcquireTotal.WithLabelValues("failed").Inc()
		} else {
			uc.metrics.LockAcquireTotal.WithLabelValues("success").Inc()
		}
	}
	if err != nil {
		return nil, rewardsErrors.ErrConcurrentModification("payout is being processed: %v", err)
	}
	return release, nil
}

func (uc *PayoutUseCase) notifyDecision(ctx context.Context, req *PayoutRequest, notifyType, detail string) {
	if uc.notify == nil {
		return
	}
	if err := uc.notify.Send(ctx, &NotificationEvent{
		AccountID: req.AccountID,
		Type:      notifyType,
		Payload: map[string]string{
			"request_id": req.RequestID,
			"type":       req.Type,
			"amount":     strconv.FormatFloat(req.Amount, 'f', 2, 64),
			"detail":     detail,
		},
	}); err != nil {
		uc.log.Warnf("payout notification failed: request_id=%s, error=%v", req.RequestID, err)
	}
}

func (uc *PayoutUseCase) observe(operation string, startTime time.Time) {
	if uc.metrics != nil {
		uc.metrics.PayoutDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}
