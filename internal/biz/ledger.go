package biz

import (
	"context"
	"strconv"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// Account 账户领域对象
type Account struct {
	AccountID  string
	CoinBalance int64 // 金币余额，永不为负
	TotalEarned int64
	TotalSpent  int64
	SpamScore   int32 // 0-100
	TrustLevel  int32 // 0-5
	IsVerified  bool
	IsPremium   bool
	MFAEnabled  bool
	PayoutIBAN  string
	ReferredBy  string // 注册时使用的推广链接ID，可为空
	UpdatedAt   time.Time
}

// Transaction 账本交易领域对象（不可变）
type Transaction struct {
	TransactionID string
	AccountID     string
	Type          string
	Amount        int64 // 带符号
	BalanceAfter  int64 // 写入时的余额快照，之后不再重算
	ContentID     string
	Counterparty  string
	Reference     string
	CreatedAt     time.Time
}

// TxMeta 交易附加信息
type TxMeta struct {
	ContentID    string
	Counterparty string
	Reference    string
}

// ReconcileMismatch 对账不一致项
type ReconcileMismatch struct {
	AccountID string
	Balance   int64
	TxSum     int64
}

// LedgerRepo 账本数据层接口（定义在 biz 层）
// ApplyTransaction 是系统内唯一的余额写入原语：
// 负数金额必须以条件原子更新落库（balance >= ?），绝不允许直接覆盖余额字段
type LedgerRepo interface {
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	ApplyTransaction(ctx context.Context, accountID, txType string, amount int64, meta TxMeta) (int64, error)
	TransferCoins(ctx context.Context, fromID, toID string, amount int64, contentID string) error
	ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*Transaction, int64, error)
	SumTransactions(ctx context.Context, accountID string) (int64, error)
	GetAllAccountIDs(ctx context.Context) ([]string, error)
}

// LedgerUseCase 账本业务逻辑
type LedgerUseCase struct {
	repo    LedgerRepo
	notify  NotificationSender
	log     *log.Helper
	metrics *metrics.RewardsMetrics
}

// NewLedgerUseCase 创建账本 UseCase
func NewLedgerUseCase(repo LedgerRepo, notify NotificationSender, logger log.Logger) *LedgerUseCase {
	return &LedgerUseCase{
		repo:    repo,
		notify:  notify,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// GetBalance 获取账户余额（账户不存在按 0 处理）
func (uc *LedgerUseCase) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if uc.metrics != nil {
		uc.metrics.BalanceQueryTotal.Inc()
	}
	account, err := uc.repo.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.CoinBalance, nil
}

// Apply 执行一笔账本交易
// 并发写冲突（存储层条件更新失败）在此处重试一次，不向调用方泄露
func (uc *LedgerUseCase) Apply(ctx context.Context, accountID, txType string, amount int64, meta TxMeta) (int64, error) {
	newBalance, err := uc.repo.ApplyTransaction(ctx, accountID, txType, amount, meta)
	if err != nil && rewardsErrors.IsConcurrentModification(err) {
		uc.log.Warnf("ApplyTransaction conflict, retrying once: account_id=%s, type=%s", accountID, txType)
		newBalance, err = uc.repo.ApplyTransaction(ctx, accountID, txType, amount, meta)
	}
	if err == nil && uc.metrics != nil {
		uc.metrics.TransactionTotal.WithLabelValues(txType).Inc()
	}
	return newBalance, err
}

// SendGift 赠送礼物：转出方与转入方各记一笔，成对出现，金额守恒
func (uc *LedgerUseCase) SendGift(ctx context.Context, fromID, toID string, amount int64, contentID string) error {
	if amount <= 0 {
		return rewardsErrors.ErrInvalidAmount("gift amount must be positive, got %d", amount)
	}
	if fromID == toID {
		return rewardsErrors.ErrInvalidAmount("cannot gift to yourself")
	}

	err := uc.repo.TransferCoins(ctx, fromID, toID, amount, contentID)
	if err != nil && rewardsErrors.IsConcurrentModification(err) {
		uc.log.Warnf("TransferCoins conflict, retrying once: from=%s, to=%s", fromID, toID)
		err = uc.repo.TransferCoins(ctx, fromID, toID, amount, contentID)
	}
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.GiftTotal.WithLabelValues("failed").Inc()
		}
		return err
	}

	if uc.metrics != nil {
		uc.metrics.GiftTotal.WithLabelValues("success").Inc()
		uc.metrics.TransactionTotal.WithLabelValues(constants.TxTypeGiftSent).Inc()
		uc.metrics.TransactionTotal.WithLabelValues(constants.TxTypeGiftReceived).Inc()
	}

	// 通知失败不回滚账本
	if uc.notify != nil {
		if err := uc.notify.Send(ctx, &NotificationEvent{
			AccountID: toID,
			Type:      constants.NotifyTypeGiftReceived,
			Payload: map[string]string{
				"from":       fromID,
				"amount":     strconv.FormatInt(amount, 10),
				"content_id": contentID,
			},
		}); err != nil {
			uc.log.Warnf("gift notification failed: to=%s, error=%v", toID, err)
		}
	}
	return nil
}

// ListTransactions 获取账本流水列表
func (uc *LedgerUseCase) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*Transaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return uc.repo.ListTransactions(ctx, accountID, page, pageSize)
}

// Reconcile 对账：每个账户的交易求和必须精确等于当前余额
// 由 cron 每日执行，不一致只上报，不做静默修正
func (uc *LedgerUseCase) Reconcile(ctx context.Context) ([]*ReconcileMismatch, error) {
	accountIDs, err := uc.repo.GetAllAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	var mismatches []*ReconcileMismatch
	for _, accountID := range accountIDs {
		account, err := uc.repo.GetAccount(ctx, accountID)
		if err != nil || account == nil {
			uc.log.Warnf("reconcile: load account failed: account_id=%s, error=%v", accountID, err)
			continue
		}
		sum, err := uc.repo.SumTransactions(ctx, accountID)
		if err != nil {
			uc.log.Warnf("reconcile: sum transactions failed: account_id=%s, error=%v", accountID, err)
			continue
		}
		if sum != account.CoinBalance {
			uc.log.Errorf("reconcile mismatch: account_id=%s, balance=%d, tx_sum=%d", accountID, account.CoinBalance, sum)
			mismatches = append(mismatches, &ReconcileMismatch{
				AccountID: accountID,
				Balance:   account.CoinBalance,
				TxSum:     sum,
			})
		}
	}

	if uc.metrics != nil {
		uc.metrics.ReconcileMismatch.Set(float64(len(mismatches)))
	}
	return mismatches, nil
}
