package biz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"

	"github.com/stretchr/testify/require"
)

type payoutFixture struct {
	uc         *PayoutUseCase
	commission *CommissionUseCase
	ledger     *memLedger
	payouts    *memPayout
	promo      *memPromo
	payment    *stubPayment
	notifier   *stubNotifier
}

func newPayoutFixture() *payoutFixture {
	ledger := newMemLedger()
	payouts := newMemPayout(ledger)
	promo := newMemPromo()
	payment := &stubPayment{}
	notifier := &stubNotifier{}
	conf := defaultTestConfig()
	commission := NewCommissionUseCase(promo, payouts, conf, testLogger())
	uc := NewPayoutUseCase(payouts, ledger, commission, payment, newMutexLocker(), conf, notifier, testLogger())
	return &payoutFixture{
		uc:         uc,
		commission: commission,
		ledger:     ledger,
		payouts:    payouts,
		promo:      promo,
		payment:    payment,
		notifier:   notifier,
	}
}

func (f *payoutFixture) putEligibleAccount(accountID string, coins int64) {
	f.ledger.putAccount(&Account{
		AccountID:   accountID,
		CoinBalance: coins,
		MFAEnabled:  true,
		PayoutIBAN:  "DE89370400440532013000",
	})
}

// setCommission 为账户挂一条推广链接并设置归因收入，
// 折扣 0 时可提佣金 = 收入 * 40%
func (f *payoutFixture) setCommission(accountID string, revenue float64) {
	link, err := f.commission.CreateLink(context.Background(), accountID, "code-"+accountID, 0, 0, nil)
	if err != nil {
		panic(err)
	}
	f.promo.setRevenue(link.LinkID, revenue)
}

func TestPayoutRequestEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("未知类型", func(t *testing.T) {
		f := newPayoutFixture()
		_, err := f.uc.Request(ctx, "acc-1", "paypal", 0)
		require.Error(t, err)
	})

	t.Run("账户不存在", func(t *testing.T) {
		f := newPayoutFixture()
		_, err := f.uc.Request(ctx, "ghost", constants.PayoutTypeCoin, 0)
		require.Error(t, err)
	})

	t.Run("未开启二次验证", func(t *testing.T) {
		f := newPayoutFixture()
		f.ledger.putAccount(&Account{AccountID: "acc-1", CoinBalance: 5000, PayoutIBAN: "DE89"})
		_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 0)
		require.Error(t, err)
	})

	t.Run("缺收款信息", func(t *testing.T) {
		f := newPayoutFixture()
		f.ledger.putAccount(&Account{AccountID: "acc-1", CoinBalance: 5000, MFAEnabled: true})
		_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 0)
		require.Error(t, err)
	})
}

func TestPayoutRequestCoin(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 5000)

	// 申请即扣减
	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 2000)
	require.NoError(t, err)
	require.Equal(t, 2000.0, req.Amount)
	require.Equal(t, constants.PayoutStatusPending, req.Status)

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(3000), account.CoinBalance)
	require.Equal(t, 1, f.ledger.txCountByType(constants.TxTypeWithdrawal))
}

func TestPayoutRequestCoinFullBalance(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 1500)

	// 金额 0 表示提取全部余额
	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 0)
	require.NoError(t, err)
	require.Equal(t, 1500.0, req.Amount)

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), account.CoinBalance)
}

func TestPayoutRequestCoinBelowMinimum(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 500)

	_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 0)
	require.Error(t, err)

	// 校验失败不产生任何扣减
	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(500), account.CoinBalance)
}

func TestPayoutRequestCoinInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 1500)

	_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 2000)
	require.True(t, rewardsErrors.IsInsufficientBalance(err))

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(1500), account.CoinBalance)
}

func TestPayoutRequestCommissionSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 0)
	f.setCommission("acc-1", 200) // 可提 80

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCommission, 0)
	require.NoError(t, err)
	require.Equal(t, 80.0, req.Amount, "amount is the available snapshot at request time")

	// 申请后可提余额归零
	summary, err := f.commission.Summary(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 0.0, summary.Available)
}

func TestPayoutRequestCommissionBelowMinimum(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 0)
	f.setCommission("acc-1", 100) // 可提 40 < 最低 50

	_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCommission, 0)
	require.Error(t, err)
}

func TestPayoutDuplicatePending(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 5000)

	_, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1000)
	require.NoError(t, err)
	_, err = f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1000)
	require.True(t, rewardsErrors.IsDuplicatePending(err))
}

func TestPayoutConcurrentRequestsSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 10000)

	var success int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1000); err == nil {
				atomic.AddInt64(&success, 1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1), success, "pending uniqueness must hold under concurrency")
	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(9000), account.CoinBalance, "exactly one withdrawal deducted")
}

func TestPayoutApprove(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 0)
	f.setCommission("acc-1", 200)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCommission, 0)
	require.NoError(t, err)

	approved, err := f.uc.Approve(ctx, req.RequestID)
	require.NoError(t, err)
	require.Equal(t, constants.PayoutStatusApproved, approved.Status)
	require.NotEmpty(t, approved.Reference)
	require.Equal(t, 1, f.payment.disburseCount())
	require.Len(t, f.notifier.byType(constants.NotifyTypePayoutApproved), 1)

	// 已离开 pending 的请求不能再次审批
	_, err = f.uc.Approve(ctx, req.RequestID)
	require.True(t, rewardsErrors.IsPayoutNotPending(err))
	require.Equal(t, 1, f.payment.disburseCount(), "no second disbursement")
}

func TestPayoutApproveRevenueDropped(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 0)
	f.setCommission("acc-1", 200) // 可提 80

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCommission, 0)
	require.NoError(t, err)

	// 审批前归因收入回落（退款），快照超过最新可提余额
	f.setRevenueForAccount(t, "acc-1", 100) // 佣金 40 < 80

	_, err = f.uc.Approve(ctx, req.RequestID)
	require.True(t, rewardsErrors.IsInsufficientBalance(err))
	require.Equal(t, 0, f.payment.disburseCount(), "no money moves on failed re-check")

	// 请求保持 pending，可被驳回
	current, err := f.payouts.GetPayout(ctx, req.RequestID)
	require.NoError(t, err)
	require.Equal(t, constants.PayoutStatusPending, current.Status)
}

// setRevenueForAccount 重设该账户第一条链接的归因收入
func (f *payoutFixture) setRevenueForAccount(t *testing.T, accountID string, revenue float64) {
	links, err := f.promo.ListLinks(context.Background(), accountID)
	require.NoError(t, err)
	require.NotEmpty(t, links)
	f.promo.setRevenue(links[0].LinkID, revenue)
}

func TestPayoutApprovePaymentDeclined(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 5000)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 2000)
	require.NoError(t, err)

	f.payment.disburseDecline = true
	_, err = f.uc.Approve(ctx, req.RequestID)
	require.Error(t, err)

	// 渠道拒绝时请求保持 pending，扣减不回退
	current, err := f.payouts.GetPayout(ctx, req.RequestID)
	require.NoError(t, err)
	require.Equal(t, constants.PayoutStatusPending, current.Status)
	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(3000), account.CoinBalance)
}

func TestPayoutRejectRefundsCoins(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 5000)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 2000)
	require.NoError(t, err)

	require.NoError(t, f.uc.Reject(ctx, req.RequestID, "suspicious activity"))

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), account.CoinBalance, "rejected withdrawal is fully refunded")
	require.Equal(t, 1, f.ledger.txCountByType(constants.TxTypeRefund))
	require.Len(t, f.notifier.byType(constants.NotifyTypePayoutRejected), 1)

	// 驳回后可再次申请
	_, err = f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1000)
	require.NoError(t, err)
}

func TestPayoutCancel(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 5000)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 2000)
	require.NoError(t, err)

	// 只有申请人可以取消
	err = f.uc.Cancel(ctx, "acc-other", req.RequestID)
	require.Error(t, err)

	require.NoError(t, f.uc.Cancel(ctx, "acc-1", req.RequestID))
	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(5000), account.CoinBalance)

	// 已取消的请求不能再操作
	err = f.uc.Cancel(ctx, "acc-1", req.RequestID)
	require.True(t, rewardsErrors.IsPayoutNotPending(err))
}

func TestPayoutCommissionRejectNoRefundTx(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 0)
	f.setCommission("acc-1", 200)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCommission, 0)
	require.NoError(t, err)
	require.NoError(t, f.uc.Reject(ctx, req.RequestID, "invalid bank details"))

	// 佣金在申请时未扣减，驳回也不产生退款交易
	require.Equal(t, 0, f.ledger.txCountByType(constants.TxTypeRefund))

	// 驳回后额度立即释放
	summary, err := f.commission.Summary(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, 80.0, summary.Available)
}

func TestPayoutCancelDuringDisbursement(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 2000)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1500)
	require.NoError(t, err)

	// 打款外呼在途时发起取消：请求级锁把取消挡在外呼窗口之外，
	// 审批照常落地，取消只能拿到 not-pending，绝不能退款
	cancelErr := make(chan error, 1)
	f.payment.disburseHook = func(*DisburseRequest) {
		go func() {
			cancelErr <- f.uc.Cancel(ctx, "acc-1", req.RequestID)
		}()
		// 留出时间让取消真正撞上锁，而不是排在审批完成之后才发起
		time.Sleep(20 * time.Millisecond)
	}

	approved, err := f.uc.Approve(ctx, req.RequestID)
	require.NoError(t, err)
	require.Equal(t, constants.PayoutStatusApproved, approved.Status)

	require.True(t, rewardsErrors.IsPayoutNotPending(<-cancelErr))
	require.Equal(t, 1, f.payment.disburseCount())
	require.Equal(t, 0, f.ledger.txCountByType(constants.TxTypeRefund), "no refund once the disbursement went out")

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(500), account.CoinBalance)
}

func TestPayoutRejectDuringDisbursement(t *testing.T) {
	ctx := context.Background()
	f := newPayoutFixture()
	f.putEligibleAccount("acc-1", 2000)

	req, err := f.uc.Request(ctx, "acc-1", constants.PayoutTypeCoin, 1500)
	require.NoError(t, err)

	rejectErr := make(chan error, 1)
	f.payment.disburseHook = func(*DisburseRequest) {
		go func() {
			rejectErr <- f.uc.Reject(ctx, req.RequestID, "race")
		}()
		time.Sleep(20 * time.Millisecond)
	}

	_, err = f.uc.Approve(ctx, req.RequestID)
	require.NoError(t, err)

	require.True(t, rewardsErrors.IsPayoutNotPending(<-rejectErr))
	require.Equal(t, 0, f.ledger.txCountByType(constants.TxTypeRefund))

	account, err := f.ledger.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(500), account.CoinBalance)
}
