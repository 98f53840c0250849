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
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerRepo 账本数据访问，实现 biz.LedgerRepo 接口
type ledgerRepo struct {
	data *Data
	log  *log.Helper
}

// NewLedgerRepo 创建账本 repo
func NewLedgerRepo(data *Data, logger log.Logger) biz.LedgerRepo {
	return &ledgerRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// applyLedgerTx 账本唯一写入原语：必须在已开启的事务内调用
// 锁定账户行，条件更新余额（扣减永远带 coin_balance >= ? 谓词），
// 写入带余额快照的交易行，返回新余额
func applyLedgerTx(tx *gorm.DB, accountID, txType string, amount int64, meta biz.TxMeta) (int64, error) {
	var m model.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("account_id = ?", accountID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if amount < 0 {
			return 0, rewardsErrors.ErrAccountNotFound("account %s not found", accountID)
		}
		// 入账目标不存在时建账，余额从 0 起步
		m = model.Account{AccountID: accountID}
		if err := tx.Create(&m).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	}

	newBalance := m.CoinBalance + amount
	updates := map[string]interface{}{
		"coin_balance": gorm.Expr("coin_balance + ?", amount),
	}
	query := tx.Model(&model.Account{}).Where("account_id = ?", accountID)
	if amount < 0 {
		// 行锁之下谓词不会因并发而失败，失败只意味着余额不足
		query = query.Where("coin_balance >= ?", -amount)
		updates["total_spent"] = gorm.Expr("total_spent + ?", -amount)
	} else if txType != constants.TxTypeRefund {
		updates["total_earned"] = gorm.Expr("total_earned + ?", amount)
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, rewardsErrors.ErrInsufficientBalance("account %s balance %d is less than %d", accountID, m.CoinBalance, -amount)
	}

	record := model.Transaction{
		TransactionID: uuid.New().String(),
		AccountID:     accountID,
		Type:          txType,
		Amount:        amount,
		BalanceAfter:  newBalance,
		ContentID:     meta.ContentID,
		Counterparty:  meta.Counterparty,
		Reference:     meta.Reference,
	}
	if err := tx.Create(&record).Error; err != nil {
		return 0, err
	}
	return newBalance, nil
}

// GetAccount 获取账户
func (r *ledgerRepo) GetAccount(ctx context.Context, accountID string) (*biz.Account, error) {
	var m model.Account
	if err := r.data.db.WithContext(ctx).Where("account_id = ?", accountID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toBizAccount(&m), nil
}

// ApplyTransaction 执行一笔账本交易并更新余额缓存
func (r *ledgerRepo) ApplyTransaction(ctx context.Context, accountID, txType string, amount int64, meta biz.TxMeta) (int64, error) {
	var newBalance int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newBalance, err = applyLedgerTx(tx, accountID, txType, amount, meta)
		return err
	})
	if err != nil {
		return 0, err
	}
	r.cacheBalance(ctx, accountID, newBalance)
	return newBalance, nil
}

// TransferCoins 成对转账：扣减与入账在同一事务内完成
// 先按 ID 升序锁定双方账户行，避免反向转账互相死锁
func (r *ledgerRepo) TransferCoins(ctx context.Context, fromID, toID string, amount int64, contentID string) error {
	var fromBalance, toBalance int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		first, second := fromID, toID
		if second < first {
			first, second = second, first
		}
		for _, id := range []string{first, second} {
			var m model.Account
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("account_id = ?", id).
				First(&m).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		var err error
		fromBalance, err = applyLedgerTx(tx, fromID, constants.TxTypeGiftSent, -amount, biz.TxMeta{
			ContentID:    contentID,
			Counterparty: toID,
		})
		if err != nil {
			return err
		}
		toBalance, err = applyLedgerTx(tx, toID, constants.TxTypeGiftReceived, amount, biz.TxMeta{
			ContentID:    contentID,
			Counterparty: fromID,
		})
		return err
	})
	if err != nil {
		return err
	}
	r.cacheBalance(ctx, fromID, fromBalance)
	r.cacheBalance(ctx, toID, toBalance)
	return nil
}

// ListTransactions 分页查询账本流水
func (r *ledgerRepo) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*biz.Transaction, int64, error) {
	var total int64
	if err := r.data.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []model.Transaction
	if err := r.data.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	result := make([]*biz.Transaction, 0, len(records))
	for i := range records {
		result = append(result, toBizTransaction(&records[i]))
	}
	return result, total, nil
}

// SumTransactions 账户全部交易求和（对账用）
func (r *ledgerRepo) SumTransactions(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.data.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("account_id = ?", accountID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// GetAllAccountIDs 获取全部账户ID（对账 cron 用）
func (r *ledgerRepo) GetAllAccountIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.data.db.WithContext(ctx).Model(&model.Account{}).
		Pluck("account_id", &ids).Error
	return ids, err
}

// cacheBalance 事务提交后回写余额缓存，失败不影响主流程
func (r *ledgerRepo) cacheBalance(ctx context.Context, accountID string, balance int64) {
	cacheCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, accountID)
	if err := r.data.rdb.Set(cacheCtx, balanceKey, balance, 5*time.Minute).Err(); err != nil {
		r.log.Warnf("failed to update balance cache: account_id=%s, error=%v", accountID, err)
	}
}

func toBizAccount(m *model.Account) *biz.Account {
	return &biz.Account{
		AccountID:   m.AccountID,
		CoinBalance: m.CoinBalance,
		TotalEarned: m.TotalEarned,
		TotalSpent:  m.TotalSpent,
		SpamScore:   m.SpamScore,
		TrustLevel:  m.TrustLevel,
		IsVerified:  m.IsVerified,
		IsPremium:   m.IsPremium,
		MFAEnabled:  m.MFAEnabled,
		PayoutIBAN:  m.PayoutIBAN,
		ReferredBy:  m.ReferredBy,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toBizTransaction(m *model.Transaction) *biz.Transaction {
	return &biz.Transaction{
		TransactionID: m.TransactionID,
		AccountID:     m.AccountID,
		Type:          m.Type,
		Amount:        m.Amount,
		BalanceAfter:  m.BalanceAfter,
		ContentID:     m.ContentID,
		Counterparty:  m.Counterparty,
		Reference:     m.Reference,
		CreatedAt:     m.CreatedAt,
	}
}
