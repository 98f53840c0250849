package biz

import (
	"context"
	"strconv"
	"time"

	"rewards-service/internal/constants"
	"rewards-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
)

// ViewRecord 阅读记录领域对象
// 每个 (读者, 内容) 只有一行；后续阅读只会放大进度和时长，绝不重新触发收益
type ViewRecord struct {
	ViewerID        string
	ContentID       string
	ReadPercentage  float64 // 0-100
	ReadDuration    int32   // 秒
	IsQualifiedRead bool
	CoinsEarned     int64 // 实际入账金额，可能小于计算器原始输出
	IsPremiumViewer bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContentStat 内容侧收益统计
type ContentStat struct {
	ContentID   string
	AuthorID    string
	SpamScore   int32
	EarnedTotal int64 // 累计阅读收益（金币）
	ViewCount   int64
}

// ViewInput 阅读事件输入
type ViewInput struct {
	ViewerID       string
	ContentID      string
	ReadPercentage float64
	ReadDuration   int32
	IsBot          bool
	Liked          bool
	Commented      bool
	Saved          bool
	Shared         bool
}

// ViewResult 阅读事件处理结果
// 反作弊导致的零入账不是错误，是成功的空操作，必须与失败可区分
type ViewResult struct {
	Recorded    bool
	Qualified   bool
	CoinsEarned int64
	Result      string // constants.EarnResult*
}

// ReadingRepo 阅读记录数据层接口（定义在 biz 层）
type ReadingRepo interface {
	// UpsertViewRecord 首次阅读插入记录并返回 true；
	// 已存在（含并发插入撞唯一键）时按 max 合并进度/时长并返回 false
	UpsertViewRecord(ctx context.Context, rec *ViewRecord) (bool, error)
	GetContentStat(ctx context.Context, contentID string) (*ContentStat, error)
	IncrementViewCount(ctx context.Context, contentID string) (int64, error)
	GetAuthorEarnedToday(ctx context.Context, authorID string, dayStart time.Time) (int64, error)
	// CreditReadEarning 入账单元：在同一事务内重读当日/单内容累计值、
	// 按传入上限二次截断、写 read_earning 交易并累加内容收益计数器，
	// 返回实际入账金额（额度已被并发占满时为 0）
	CreditReadEarning(ctx context.Context, authorID, contentID, viewerID string, coins, dailyLimit, contentCap int64, dayStart time.Time) (int64, error)
}

// ReadingUseCase 阅读收益业务逻辑：阅读有效性判定 + 上限控制
type ReadingUseCase struct {
	repo       ReadingRepo
	ledgerRepo LedgerRepo
	conf       *RewardsConfig
	notify     NotificationSender
	log        *log.Helper
	metrics    *metrics.RewardsMetrics
}

// NewReadingUseCase 创建阅读收益 UseCase
func NewReadingUseCase(repo ReadingRepo, ledgerRepo LedgerRepo, conf *RewardsConfig, notify NotificationSender, logger log.Logger) *ReadingUseCase {
	return &ReadingUseCase{
		repo:       repo,
		ledgerRepo: ledgerRepo,
		conf:       conf,
		notify:     notify,
		log:        log.NewHelper(logger),
		metrics:    metrics.GetMetrics(),
	}
}

// RecordView 处理一次阅读事件
// 机器流量直接丢弃；重复阅读只放大已有记录；首次有效阅读走收益管道
func (uc *ReadingUseCase) RecordView(ctx context.Context, input *ViewInput) (*ViewResult, error) {
	startTime := time.Now()
	defer func() {
		if uc.metrics != nil {
			uc.metrics.EarningDuration.Observe(time.Since(startTime).Seconds())
		}
	}()

	if input.IsBot {
		return &ViewResult{Result: constants.EarnResultBot}, nil
	}

	// 输入范围约束
	pct := input.ReadPercentage
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	dur := input.ReadDuration
	if dur < 0 {
		dur = 0
	}

	qualified := dur >= uc.conf.MinReadDuration && pct >= uc.conf.MinReadPercentage

	viewer, err := uc.ledgerRepo.GetAccount(ctx, input.ViewerID)
	if err != nil {
		return nil, err
	}
	isPremium := viewer != nil && viewer.IsPremium

	rec := &ViewRecord{
		ViewerID:        input.ViewerID,
		ContentID:       input.ContentID,
		ReadPercentage:  pct,
		ReadDuration:    dur,
		IsQualifiedRead: qualified,
		IsPremiumViewer: isPremium,
	}
	created, err := uc.repo.UpsertViewRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !created {
		// 同一读者的后续阅读：只放大，不重新触发收益。
		// 即使放大后的进度首次越过有效阅读阈值也不补发，这是
		// 防刷的产品决策，测试据此固定行为。
		if uc.metrics != nil {
			uc.metrics.ViewWidenedTotal.Inc()
		}
		return &ViewResult{Recorded: true, Qualified: qualified, Result: constants.EarnResultDuplicate}, nil
	}

	if uc.metrics != nil {
		uc.metrics.ViewRecordedTotal.WithLabelValues(strconv.FormatBool(qualified)).Inc()
	}

	content, err := uc.repo.GetContentStat(ctx, input.ContentID)
	if err != nil {
		return nil, err
	}

	// 浏览计数与里程碑通知（精确命中才发，避免刷屏）
	newCount, err := uc.repo.IncrementViewCount(ctx, input.ContentID)
	if err != nil {
		uc.log.Warnf("IncrementViewCount failed: content_id=%s, error=%v", input.ContentID, err)
	} else if content != nil && uc.conf.IsMilestone(newCount) {
		uc.emitMilestone(ctx, content.AuthorID, input.ContentID, newCount)
	}

	result := &ViewResult{Recorded: true, Qualified: qualified}
	if !qualified {
		result.Result = constants.EarnResultNotQualified
		return result, nil
	}
	if content == nil {
		uc.log.Warnf("content stat missing, skip earning: content_id=%s", input.ContentID)
		result.Result = constants.EarnResultNotQualified
		return result, nil
	}

	result.Result, result.CoinsEarned, err = uc.enforceAndCredit(ctx, input, content, pct, isPremium)
	if err != nil {
		return nil, err
	}
	if uc.metrics != nil {
		uc.metrics.EarningTotal.WithLabelValues(result.Result).Inc()
		if result.CoinsEarned > 0 {
			uc.metrics.EarningCoinsTotal.Add(float64(result.CoinsEarned))
		}
	}
	return result, nil
}

// enforceAndCredit 上限与反作弊检查，按固定顺序短路；任何一条命中都不入账，
// 但阅读记录已经保留
func (uc *ReadingUseCase) enforceAndCredit(ctx context.Context, input *ViewInput, content *ContentStat, pct float64, isPremium bool) (string, int64, error) {
	// 1. 非付费读者永不产生收益
	if !isPremium {
		return constants.EarnResultNotPremium, 0, nil
	}

	// 2. 内容反作弊
	if content.SpamScore >= uc.conf.SpamStopThreshold {
		return constants.EarnResultContentSpam, 0, nil
	}

	// 3. 单内容累计上限
	if content.EarnedTotal >= uc.conf.ContentEarningCap {
		return constants.EarnResultContentCap, 0, nil
	}

	// 4. 作者反作弊
	author, err := uc.ledgerRepo.GetAccount(ctx, content.AuthorID)
	if err != nil {
		return "", 0, err
	}
	if author == nil {
		uc.log.Warnf("author account missing, skip earning: author_id=%s", content.AuthorID)
		return constants.EarnResultNotQualified, 0, nil
	}
	if author.SpamScore >= uc.conf.SpamStopThreshold {
		return constants.EarnResultAuthorSpam, 0, nil
	}

	// 5. 作者当日上限（本地零点起的 read_earning 累计）
	dayStart := localMidnight(time.Now())
	todayEarned, err := uc.repo.GetAuthorEarnedToday(ctx, content.AuthorID, dayStart)
	if err != nil {
		return "", 0, err
	}
	if todayEarned >= uc.conf.DailyEarningLimit {
		return constants.EarnResultDailyCap, 0, nil
	}

	coins := CalculateEarning(EarningSignals{
		ReadPercentage: pct,
		Liked:          input.Liked,
		Commented:      input.Commented,
		Saved:          input.Saved,
		Shared:         input.Shared,
		AuthorVerified: author.IsVerified,
		AuthorTrust:    author.TrustLevel,
	})

	// 预截断（入账事务内还会以锁定后的最新值二次截断）
	if remaining := uc.conf.DailyEarningLimit - todayEarned; coins > remaining {
		coins = remaining
		if uc.metrics != nil {
			uc.metrics.CapClampTotal.WithLabelValues("daily").Inc()
		}
	}
	if remaining := uc.conf.ContentEarningCap - content.EarnedTotal; coins > remaining {
		coins = remaining
		if uc.metrics != nil {
			uc.metrics.CapClampTotal.WithLabelValues("content").Inc()
		}
	}
	if coins <= 0 {
		return constants.EarnResultDailyCap, 0, nil
	}

	credited, err := uc.repo.CreditReadEarning(ctx, content.AuthorID, input.ContentID, input.ViewerID, coins, uc.conf.DailyEarningLimit, uc.conf.ContentEarningCap, dayStart)
	if err != nil {
		return "", 0, err
	}
	if credited <= 0 {
		// 并发补刀：事务内重读后额度已被占满
		return constants.EarnResultDailyCap, 0, nil
	}
	return constants.EarnResultCredited, credited, nil
}

func (uc *ReadingUseCase) emitMilestone(ctx context.Context, authorID, contentID string, viewCount int64) {
	if uc.notify == nil {
		return
	}
	if uc.metrics != nil {
		uc.metrics.MilestoneTotal.Inc()
	}
	if err := uc.notify.Send(ctx, &NotificationEvent{
		AccountID: authorID,
		Type:      constants.NotifyTypeViewMilestone,
		Payload: map[string]string{
			"content_id": contentID,
			"views":      strconv.FormatInt(viewCount, 10),
		},
	}); err != nil {
		uc.log.Warnf("milestone notification failed: author_id=%s, content_id=%s, error=%v", authorID, contentID, err)
	}
}

// localMidnight 返回本地时区当日零点
func localMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
