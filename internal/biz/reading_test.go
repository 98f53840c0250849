package biz

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"rewards-service/internal/constants"

	"github.com/stretchr/testify/require"
)

func newReadingFixture() (*ReadingUseCase, *memLedger, *memReading, *stubNotifier) {
	ledger := newMemLedger()
	reading := newMemReading(ledger)
	notifier := &stubNotifier{}
	uc := NewReadingUseCase(reading, ledger, defaultTestConfig(), notifier, testLogger())
	return uc, ledger, reading, notifier
}

func qualifiedView(viewerID, contentID string) *ViewInput {
	return &ViewInput{
		ViewerID:       viewerID,
		ContentID:      contentID,
		ReadPercentage: 85,
		ReadDuration:   120,
	}
}

func TestRecordViewBotDropped(t *testing.T) {
	uc, _, _, _ := newReadingFixture()

	result, err := uc.RecordView(context.Background(), &ViewInput{
		ViewerID:  "bot-1",
		ContentID: "content-1",
		IsBot:     true,
	})
	require.NoError(t, err)
	require.False(t, result.Recorded)
	require.Equal(t, constants.EarnResultBot, result.Result)
}

func TestRecordViewQualification(t *testing.T) {
	tests := []struct {
		name      string
		pct       float64
		dur       int32
		qualified bool
	}{
		{"时长和进度都达标", 40, 30, true},
		{"时长不足", 85, 29, false},
		{"进度不足", 39.9, 300, false},
		{"都不足", 5, 3, false},
		{"进度超过100按100截断", 150, 120, true},
		{"负值按0截断", -10, -5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, ledger, reading, _ := newReadingFixture()
			ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
			ledger.putAccount(&Account{AccountID: "author-1"})
			reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

			result, err := uc.RecordView(context.Background(), &ViewInput{
				ViewerID:       "viewer-1",
				ContentID:      "content-1",
				ReadPercentage: tt.pct,
				ReadDuration:   tt.dur,
			})
			require.NoError(t, err)
			require.True(t, result.Recorded)
			require.Equal(t, tt.qualified, result.Qualified)
		})
	}
}

func TestRecordViewRepeatNeverRecredits(t *testing.T) {
	uc, ledger, reading, _ := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
	ledger.putAccount(&Account{AccountID: "author-1"})
	reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

	first, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.Equal(t, constants.EarnResultCredited, first.Result)
	require.Greater(t, first.CoinsEarned, int64(0))

	second, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.Equal(t, constants.EarnResultDuplicate, second.Result)
	require.Equal(t, int64(0), second.CoinsEarned)

	balance, err := ledger.GetAccount(context.Background(), "author-1")
	require.NoError(t, err)
	require.Equal(t, first.CoinsEarned, balance.CoinBalance)
}

func TestRecordViewWidenDoesNotTriggerEarning(t *testing.T) {
	uc, ledger, reading, _ := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
	ledger.putAccount(&Account{AccountID: "author-1"})
	reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

	// 首次阅读不达标，不入账
	first, err := uc.RecordView(context.Background(), &ViewInput{
		ViewerID:       "viewer-1",
		ContentID:      "content-1",
		ReadPercentage: 10,
		ReadDuration:   5,
	})
	require.NoError(t, err)
	require.False(t, first.Qualified)
	require.Equal(t, int64(0), first.CoinsEarned)

	// 第二次阅读越过阈值也不补发收益
	second, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.Equal(t, constants.EarnResultDuplicate, second.Result)
	require.Equal(t, int64(0), second.CoinsEarned)

	author, err := ledger.GetAccount(context.Background(), "author-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), author.CoinBalance)
}

func TestRecordViewNonPremiumNoEarning(t *testing.T) {
	uc, ledger, reading, _ := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: false})
	ledger.putAccount(&Account{AccountID: "author-1"})
	reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

	result, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.True(t, result.Qualified)
	require.Equal(t, constants.EarnResultNotPremium, result.Result)
	require.Equal(t, int64(0), result.CoinsEarned)
}

func TestRecordViewSpamGates(t *testing.T) {
	t.Run("内容命中反作弊阈值", func(t *testing.T) {
		uc, ledger, reading, _ := newReadingFixture()
		ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
		ledger.putAccount(&Account{AccountID: "author-1"})
		reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1", SpamScore: 70})

		result, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
		require.NoError(t, err)
		require.Equal(t, constants.EarnResultContentSpam, result.Result)
	})

	t.Run("作者命中反作弊阈值", func(t *testing.T) {
		uc, ledger, reading, _ := newReadingFixture()
		ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
		ledger.putAccount(&Account{AccountID: "author-1", SpamScore: 85})
		reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

		result, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
		require.NoError(t, err)
		require.Equal(t, constants.EarnResultAuthorSpam, result.Result)
	})

	t.Run("内容累计收益已达上限", func(t *testing.T) {
		uc, ledger, reading, _ := newReadingFixture()
		ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
		ledger.putAccount(&Account{AccountID: "author-1"})
		reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1", EarnedTotal: 1000})

		result, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
		require.NoError(t, err)
		require.Equal(t, constants.EarnResultContentCap, result.Result)
	})
}

func TestRecordViewDailyCapClamp(t *testing.T) {
	uc, ledger, reading, _ := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "author-1"})
	reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})
	// 当日已入账 99，只剩 1 枚额度
	reading.earnedToday["author-1"] = 99

	ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
	result, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.Equal(t, constants.EarnResultCredited, result.Result)
	require.Equal(t, int64(1), result.CoinsEarned)

	// 额度占满后续阅读不再入账
	ledger.putAccount(&Account{AccountID: "viewer-2", IsPremium: true})
	result, err = uc.RecordView(context.Background(), qualifiedView("viewer-2", "content-1"))
	require.NoError(t, err)
	require.Equal(t, constants.EarnResultDailyCap, result.Result)
	require.Equal(t, int64(0), result.CoinsEarned)
}

func TestRecordViewConcurrentRespectsDailyCap(t *testing.T) {
	uc, ledger, reading, _ := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "author-1"})
	reading.putContent(&ContentStat{ContentID: "content-1", AuthorID: "author-1"})

	const viewers = 200
	for i := 0; i < viewers; i++ {
		ledger.putAccount(&Account{AccountID: viewerID(i), IsPremium: true})
	}

	var wg sync.WaitGroup
	for i := 0; i < viewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = uc.RecordView(context.Background(), qualifiedView(viewerID(i), "content-1"))
		}(i)
	}
	wg.Wait()

	author, err := ledger.GetAccount(context.Background(), "author-1")
	require.NoError(t, err)
	require.LessOrEqual(t, author.CoinBalance, int64(100), "daily cap must hold under concurrency")

	sum, err := ledger.SumTransactions(context.Background(), "author-1")
	require.NoError(t, err)
	require.Equal(t, author.CoinBalance, sum)
}

func viewerID(i int) string {
	return fmt.Sprintf("viewer-%d", i)
}

func TestRecordViewMilestoneExactMatch(t *testing.T) {
	uc, ledger, reading, notifier := newReadingFixture()
	ledger.putAccount(&Account{AccountID: "author-1"})
	stat := &ContentStat{ContentID: "content-1", AuthorID: "author-1", ViewCount: 99}
	reading.putContent(stat)

	// 第100次浏览精确命中里程碑
	ledger.putAccount(&Account{AccountID: "viewer-1", IsPremium: true})
	_, err := uc.RecordView(context.Background(), qualifiedView("viewer-1", "content-1"))
	require.NoError(t, err)
	require.Len(t, notifier.byType(constants.NotifyTypeViewMilestone), 1)
	require.Equal(t, "100", notifier.byType(constants.NotifyTypeViewMilestone)[0].Payload["views"])

	// 第101次不再触发
	ledger.putAccount(&Account{AccountID: "viewer-2", IsPremium: true})
	_, err = uc.RecordView(context.Background(), qualifiedView("viewer-2", "content-1"))
	require.NoError(t, err)
	require.Len(t, notifier.byType(constants.NotifyTypeViewMilestone), 1)
}
