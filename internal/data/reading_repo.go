package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/constants"
	"rewards-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// readingRepo 阅读记录数据访问，实现 biz.ReadingRepo 接口
type readingRepo struct {
	data *Data
	sync *redsync.Redsync
	log  *log.Helper
}

// NewReadingRepo 创建阅读记录 repo
func NewReadingRepo(data *Data, sync *redsync.Redsync, logger log.Logger) biz.ReadingRepo {
	return &readingRepo{
		data: data,
		sync: sync,
		log:  log.NewHelper(logger),
	}
}

// UpsertViewRecord 首次阅读插入，重复阅读按 max 合并
// 并发插入撞 (viewer_id, content_id) 唯一键时走合并分支
func (r *readingRepo) UpsertViewRecord(ctx context.Context, rec *biz.ViewRecord) (bool, error) {
	m := model.ViewRecord{
		ViewRecordID:    uuid.New().String(),
		ViewerID:        rec.ViewerID,
		ContentID:       rec.ContentID,
		ReadPercentage:  rec.ReadPercentage,
		ReadDuration:    rec.ReadDuration,
		IsQualifiedRead: rec.IsQualifiedRead,
		IsPremiumViewer: rec.IsPremiumViewer,
	}
	err := r.data.db.WithContext(ctx).Create(&m).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, err
	}

	// 只放大，绝不缩小，也不重置 coins_earned
	err = r.data.db.WithContext(ctx).Model(&model.ViewRecord{}).
		Where("viewer_id = ? AND content_id = ?", rec.ViewerID, rec.ContentID).
		Updates(map[string]interface{}{
			"read_percentage":   gorm.Expr("GREATEST(read_percentage, ?)", rec.ReadPercentage),
			"read_duration":     gorm.Expr("GREATEST(read_duration, ?)", rec.ReadDuration),
			"is_qualified_read": gorm.Expr("is_qualified_read OR ?", rec.IsQualifiedRead),
		}).Error
	return false, err
}

// GetContentStat 获取内容收益统计
func (r *readingRepo) GetContentStat(ctx context.Context, contentID string) (*biz.ContentStat, error) {
	var m model.ContentStat
	if err := r.data.db.WithContext(ctx).Where("content_id = ?", contentID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &biz.ContentStat{
		ContentID:   m.ContentID,
		AuthorID:    m.AuthorID,
		SpamScore:   m.SpamScore,
		EarnedTotal: m.EarnedTotal,
		ViewCount:   m.ViewCount,
	}, nil
}

// IncrementViewCount 浏览计数加一并返回新值（里程碑判断需要精确计数）
func (r *readingRepo) IncrementViewCount(ctx context.Context, contentID string) (int64, error) {
	var newCount int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.ContentStat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("content_id = ?", contentID).
			First(&m).Error; err != nil {
			return err
		}
		newCount = m.ViewCount + 1
		return tx.Model(&m).UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return newCount, err
}

// GetAuthorEarnedToday 作者当日阅读收益累计
// Redis 计数器作快速路径，未命中回源 SQL 求和；权威值始终以入账事务内的重算为准
func (r *readingRepo) GetAuthorEarnedToday(ctx context.Context, authorID string, dayStart time.Time) (int64, error) {
	dailyKey := r.dailyKey(authorID, dayStart)
	if cached, err := r.data.rdb.Get(ctx, dailyKey).Result(); err == nil {
		if sum, err := strconv.ParseInt(cached, 10, 64); err == nil {
			return sum, nil
		}
	}

	sum, err := r.sumEarnedToday(r.data.db.WithContext(ctx), authorID, dayStart)
	if err != nil {
		return 0, err
	}
	if err := r.data.rdb.Set(ctx, dailyKey, sum, r.dailyTTL(dayStart)).Err(); err != nil {
		r.log.Warnf("failed to cache daily earned: author_id=%s, error=%v", authorID, err)
	}
	return sum, nil
}

// CreditReadEarning 阅读收益入账单元
// 分布式锁按作者串行化，事务内锁定内容行后重算当日与单内容累计值做最终截断
func (r *readingRepo) CreditReadEarning(ctx context.Context, authorID, contentID, viewerID string, coins, dailyLimit, contentCap int64, dayStart time.Time) (int64, error) {
	if r.sync != nil {
		lockKey := fmt.Sprintf("%s%s", constants.RedisKeyCreditLock, authorID)
		mutex := r.sync.NewMutex(lockKey, redsync.WithExpiry(5*time.Second))
		if err := mutex.LockContext(ctx); err != nil {
			return 0, err
		}
		defer func() {
			if ok, err := mutex.Unlock(); !ok || err != nil {
				r.log.Warnf("Failed to unlock credit lock: author_id=%s, error=%v", authorID, err)
			}
		}()
	}

	var credited, newBalance, todaySum int64
	err := r.data.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var content model.ContentStat
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("content_id = ?", contentID).
			First(&content).Error; err != nil {
			return err
		}

		var err error
		todaySum, err = r.sumEarnedToday(tx, authorID, dayStart)
		if err != nil {
			return err
		}

		// 最终截断以锁内读到的权威值为准
		credit := coins
		if remaining := dailyLimit - todaySum; credit > remaining {
			credit = remaining
		}
		if remaining := contentCap - content.EarnedTotal; credit > remaining {
			credit = remaining
		}
		if credit <= 0 {
			credited = 0
			return nil
		}

		newBalance, err = applyLedgerTx(tx, authorID, constants.TxTypeReadEarning, credit, biz.TxMeta{
			ContentID:    contentID,
			Counterparty: viewerID,
		})
		if err != nil {
			return err
		}
		if err := tx.Model(&content).
			UpdateColumn("earned_total", gorm.Expr("earned_total + ?", credit)).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.ViewRecord{}).
			Where("viewer_id = ? AND content_id = ?", viewerID, contentID).
			UpdateColumn("coins_earned", credit).Error; err != nil {
			return err
		}
		credited = credit
		return nil
	})
	if err != nil {
		return 0, err
	}
	if credited > 0 {
		r.afterCredit(ctx, authorID, dayStart, todaySum+credited, newBalance)
	}
	return credited, nil
}

// afterCredit 事务提交后回写缓存
func (r *readingRepo) afterCredit(ctx context.Context, authorID string, dayStart time.Time, todaySum, newBalance int64) {
	cacheCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := r.data.rdb.Set(cacheCtx, r.dailyKey(authorID, dayStart), todaySum, r.dailyTTL(dayStart)).Err(); err != nil {
		r.log.Warnf("failed to update daily earned cache: author_id=%s, error=%v", authorID, err)
	}
	balanceKey := fmt.Sprintf("%s%s", constants.RedisKeyBalance, authorID)
	if err := r.data.rdb.Set(cacheCtx, balanceKey, newBalance, 5*time.Minute).Err(); err != nil {
		r.log.Warnf("failed to update balance cache: author_id=%s, error=%v", authorID, err)
	}
}

func (r *readingRepo) sumEarnedToday(db *gorm.DB, authorID string, dayStart time.Time) (int64, error) {
	var sum int64
	err := db.Model(&model.Transaction{}).
		Where("account_id = ? AND type = ? AND created_at >= ?", authorID, constants.TxTypeReadEarning, dayStart).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *readingRepo) dailyKey(authorID string, dayStart time.Time) string {
	return fmt.Sprintf("%s%s:%s", constants.RedisKeyDailyEarned, authorID, dayStart.Format(constants.TimeFormatDay))
}

// dailyTTL 计数器存活到次日零点
func (r *readingRepo) dailyTTL(dayStart time.Time) time.Duration {
	return time.Until(dayStart.Add(24 * time.Hour))
}
