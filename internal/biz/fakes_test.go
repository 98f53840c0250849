package biz

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rewards-service/internal/constants"
	rewardsErrors "rewards-service/internal/errors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// 内存版数据层实现，行为与真实存储层对齐：
// 条件更新、唯一键冲突、事务内二次截断都在这里模拟。

func testLogger() log.Logger {
	return log.NewStdLogger(discardWriter{})
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// ---- ledger ----

type memLedger struct {
	mu       sync.Mutex
	accounts map[string]*Account
	txs      []*Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{accounts: make(map[string]*Account)}
}

func (m *memLedger) putAccount(a *Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.AccountID] = a
}

func (m *memLedger) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// apply 加锁前提下执行一笔交易，语义与存储层原语一致
func (m *memLedger) apply(accountID, txType string, amount int64, meta TxMeta) (int64, error) {
	a, ok := m.accounts[accountID]
	if !ok {
		if amount < 0 {
			return 0, rewardsErrors.ErrAccountNotFound("account %s not found", accountID)
		}
		a = &Account{AccountID: accountID}
		m.accounts[accountID] = a
	}
	if amount < 0 && a.CoinBalance+amount < 0 {
		return 0, rewardsErrors.ErrInsufficientBalance("balance %d cannot cover %d", a.CoinBalance, -amount)
	}
	a.CoinBalance += amount
	if amount > 0 && txType != constants.TxTypeRefund {
		a.TotalEarned += amount
	}
	if amount < 0 {
		a.TotalSpent += -amount
	}
	m.txs = append(m.txs, &Transaction{
		TransactionID: uuid.New().String(),
		AccountID:     accountID,
		Type:          txType,
		Amount:        amount,
		BalanceAfter:  a.CoinBalance,
		ContentID:     meta.ContentID,
		Counterparty:  meta.Counterparty,
		Reference:     meta.Reference,
		CreatedAt:     time.Now(),
	})
	return a.CoinBalance, nil
}

func (m *memLedger) ApplyTransaction(ctx context.Context, accountID, txType string, amount int64, meta TxMeta) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apply(accountID, txType, amount, meta)
}

func (m *memLedger) TransferCoins(ctx context.Context, fromID, toID string, amount int64, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.apply(fromID, constants.TxTypeGiftSent, -amount, TxMeta{ContentID: contentID, Counterparty: toID}); err != nil {
		return err
	}
	if _, err := m.apply(toID, constants.TxTypeGiftReceived, amount, TxMeta{ContentID: contentID, Counterparty: fromID}); err != nil {
		return err
	}
	return nil
}

func (m *memLedger) ListTransactions(ctx context.Context, accountID string, page, pageSize int) ([]*Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Transaction
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			all = append(all, tx)
		}
	}
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (m *memLedger) SumTransactions(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (m *memLedger) GetAllAccountIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memLedger) txCountByType(txType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, tx := range m.txs {
		if tx.Type == txType {
			n++
		}
	}
	return n
}

// ---- reading ----

type memReading struct {
	mu          sync.Mutex
	ledger      *memLedger
	records     map[string]*ViewRecord // key: viewerID|contentID
	contents    map[string]*ContentStat
	earnedToday map[string]int64 // key: authorID
}

func newMemReading(ledger *memLedger) *memReading {
	return &memReading{
		ledger:      ledger,
		records:     make(map[string]*ViewRecord),
		contents:    make(map[string]*ContentStat),
		earnedToday: make(map[string]int64),
	}
}

func (m *memReading) putContent(c *ContentStat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contents[c.ContentID] = c
}

func viewKey(viewerID, contentID string) string {
	return fmt.Sprintf("%s|%s", viewerID, contentID)
}

func (m *memReading) UpsertViewRecord(ctx context.Context, rec *ViewRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := viewKey(rec.ViewerID, rec.ContentID)
	if existing, ok := m.records[key]; ok {
		if rec.ReadPercentage > existing.ReadPercentage {
			existing.ReadPercentage = rec.ReadPercentage
		}
		if rec.ReadDuration > existing.ReadDuration {
			existing.ReadDuration = rec.ReadDuration
		}
		existing.IsQualifiedRead = existing.IsQualifiedRead || rec.IsQualifiedRead
		return false, nil
	}
	cp := *rec
	m.records[key] = &cp
	return true, nil
}

func (m *memReading) GetContentStat(ctx context.Context, contentID string) (*ContentStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[contentID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memReading) IncrementViewCount(ctx context.Context, contentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[contentID]
	if !ok {
		return 0, nil
	}
	c.ViewCount++
	return c.ViewCount, nil
}

func (m *memReading) GetAuthorEarnedToday(ctx context.Context, authorID string, dayStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.earnedToday[authorID], nil
}

func (m *memReading) CreditReadEarning(ctx context.Context, authorID, contentID, viewerID string, coins, dailyLimit, contentCap int64, dayStart time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	credit := coins
	if remaining := dailyLimit - m.earnedToday[authorID]; credit > remaining {
		credit = remaining
	}
	if c, ok := m.contents[contentID]; ok {
		if remaining := contentCap - c.EarnedTotal; credit > remaining {
			credit = remaining
		}
	}
	if credit <= 0 {
		return 0, nil
	}
	if _, err := m.ledger.ApplyTransaction(ctx, authorID, constants.TxTypeReadEarning, credit, TxMeta{ContentID: contentID, Counterparty: viewerID}); err != nil {
		return 0, err
	}
	m.earnedToday[authorID] += credit
	if c, ok := m.contents[contentID]; ok {
		c.EarnedTotal += credit
	}
	if rec, ok := m.records[viewKey(viewerID, contentID)]; ok {
		rec.CoinsEarned = credit
	}
	return credit, nil
}

// ---- promo ----

type memPromo struct {
	mu      sync.Mutex
	links   map[string]*PromoLink // key: linkID
	byCode  map[string]string     // code -> linkID
	revenue map[string]float64    // linkID -> attributed completed revenue
}

func newMemPromo() *memPromo {
	return &memPromo{
		links:   make(map[string]*PromoLink),
		byCode:  make(map[string]string),
		revenue: make(map[string]float64),
	}
}

func (m *memPromo) setRevenue(linkID string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revenue[linkID] = v
}

func (m *memPromo) CreateLink(ctx context.Context, link *PromoLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byCode[link.Code]; taken {
		return rewardsErrors.ErrPromoCodeTaken("promo code %s already exists", link.Code)
	}
	cp := *link
	cp.CreatedAt = time.Now()
	m.links[link.LinkID] = &cp
	m.byCode[link.Code] = link.LinkID
	return nil
}

func (m *memPromo) GetLinkByCode(ctx context.Context, code string) (*PromoLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	linkID, ok := m.byCode[code]
	if !ok {
		return nil, nil
	}
	cp := *m.links[linkID]
	return &cp, nil
}

func (m *memPromo) ListLinks(ctx context.Context, affiliateID string) ([]*PromoLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PromoLink
	for _, link := range m.links {
		if link.AffiliateID == affiliateID {
			cp := *link
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memPromo) RegisterSignup(ctx context.Context, linkID, accountID string, maxSignups int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[linkID]
	if !ok {
		return rewardsErrors.ErrPromoLinkNotFound("link %s not found", linkID)
	}
	if maxSignups > 0 && link.SignupCount >= maxSignups {
		return rewardsErrors.ErrPromoLinkClosed("link %s quota exhausted", linkID)
	}
	link.SignupCount++
	return nil
}

func (m *memPromo) GetLinkRevenue(ctx context.Context, linkID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revenue[linkID], nil
}

// ---- payout ----

type memPayout struct {
	mu       sync.Mutex
	ledger   *memLedger
	requests map[string]*PayoutRequest
	pending  map[string]string // accountID -> requestID（模拟 pending 唯一键）
}

func newMemPayout(ledger *memLedger) *memPayout {
	return &memPayout{
		ledger:   ledger,
		requests: make(map[string]*PayoutRequest),
		pending:  make(map[string]string),
	}
}

func (m *memPayout) CreatePayout(ctx context.Context, req *PayoutRequest, deductCoins bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pending[req.AccountID]; exists {
		return rewardsErrors.ErrDuplicatePending("account %s already has a pending payout", req.AccountID)
	}
	if deductCoins {
		if _, err := m.ledger.ApplyTransaction(ctx, req.AccountID, constants.TxTypeWithdrawal, -int64(req.Amount), TxMeta{Reference: req.RequestID}); err != nil {
			return err
		}
	}
	cp := *req
	cp.RequestedAt = time.Now()
	m.requests[req.RequestID] = &cp
	m.pending[req.AccountID] = req.RequestID
	return nil
}

func (m *memPayout) GetPayout(ctx context.Context, requestID string) (*PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (m *memPayout) GetPendingByAccount(ctx context.Context, accountID string) (*PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	requestID, ok := m.pending[accountID]
	if !ok {
		return nil, nil
	}
	cp := *m.requests[requestID]
	return &cp, nil
}

func (m *memPayout) ListPayouts(ctx context.Context, accountID string, page, pageSize int) ([]*PayoutRequest, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*PayoutRequest
	for _, req := range m.requests {
		if req.AccountID == accountID {
			cp := *req
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memPayout) SumPayoutAmounts(ctx context.Context, accountID, payoutType, status string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, req := range m.requests {
		if req.AccountID == accountID && req.Type == payoutType && req.Status == status {
			sum += req.Amount
		}
	}
	return sum, nil
}

func (m *memPayout) transition(ctx context.Context, requestID, toStatus string, refundCoins bool) (*PayoutRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return nil, rewardsErrors.ErrPayoutNotFound("payout %s not found", requestID)
	}
	if req.Status != constants.PayoutStatusPending {
		return nil, rewardsErrors.ErrPayoutNotPending("payout %s is %s", requestID, req.Status)
	}
	req.Status = toStatus
	now := time.Now()
	req.ProcessedAt = &now
	delete(m.pending, req.AccountID)
	if refundCoins {
		if _, err := m.ledger.ApplyTransaction(ctx, req.AccountID, constants.TxTypeRefund, int64(req.Amount), TxMeta{Reference: req.RequestID}); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func (m *memPayout) ApprovePayout(ctx context.Context, requestID, reference string) error {
	req, err := m.transition(ctx, requestID, constants.PayoutStatusApproved, false)
	if err != nil {
		return err
	}
	req.Reference = reference
	return nil
}

func (m *memPayout) RejectPayout(ctx context.Context, requestID, reason string, refundCoins bool) error {
	req, err := m.transition(ctx, requestID, constants.PayoutStatusRejected, refundCoins)
	if err != nil {
		return err
	}
	req.RejectReason = reason
	return nil
}

func (m *memPayout) CancelPayout(ctx context.Context, requestID string, refundCoins bool) error {
	_, err := m.transition(ctx, requestID, constants.PayoutStatusCancelled, refundCoins)
	return err
}

// ---- subscription ----

type memSubscription struct {
	mu     sync.Mutex
	plans  map[string]*Plan
	subs   map[string]*Subscription
	active map[string]string // accountID -> subscriptionID（模拟 active 唯一键）
}

func newMemSubscription() *memSubscription {
	return &memSubscription{
		plans:  make(map[string]*Plan),
		subs:   make(map[string]*Subscription),
		active: make(map[string]string),
	}
}

func (m *memSubscription) putPlan(p *Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.PlanID] = p
}

func (m *memSubscription) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plans[planID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *memSubscription) ListPlans(ctx context.Context) ([]*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Plan
	for _, p := range m.plans {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (m *memSubscription) GetActiveSubscription(ctx context.Context, accountID string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subID, ok := m.active[accountID]
	if !ok {
		return nil, nil
	}
	cp := *m.subs[subID]
	return &cp, nil
}

func (m *memSubscription) CreateSubscription(ctx context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[sub.AccountID]; exists {
		return rewardsErrors.ErrSubscriptionConflict("account %s already has an active subscription", sub.AccountID)
	}
	cp := *sub
	m.subs[sub.SubscriptionID] = &cp
	m.active[sub.AccountID] = sub.SubscriptionID
	return nil
}

func (m *memSubscription) SwitchSubscription(ctx context.Context, oldSubscriptionID string, newSub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.subs[oldSubscriptionID]
	if !ok || old.Status != constants.SubStatusActive {
		return rewardsErrors.ErrSubscriptionConflict("subscription %s is no longer active", oldSubscriptionID)
	}
	old.Status = constants.SubStatusCancelled
	delete(m.active, old.AccountID)
	cp := *newSub
	m.subs[newSub.SubscriptionID] = &cp
	m.active[newSub.AccountID] = newSub.SubscriptionID
	return nil
}

func (m *memSubscription) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var affected int64
	for _, sub := range m.subs {
		if sub.Status == constants.SubStatusActive && !sub.ExpiresAt.After(now) {
			sub.Status = constants.SubStatusExpired
			delete(m.active, sub.AccountID)
			affected++
		}
	}
	return affected, nil
}

// ---- purchase ----

type memPurchase struct {
	mu     sync.Mutex
	ledger *memLedger
	orders map[string]*Purchase
}

func newMemPurchase(ledger *memLedger) *memPurchase {
	return &memPurchase{ledger: ledger, orders: make(map[string]*Purchase)}
}

func (m *memPurchase) CreateOrder(ctx context.Context, order *Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *order
	cp.CreatedAt = time.Now()
	m.orders[order.OrderID] = &cp
	return nil
}

func (m *memPurchase) SetPaymentID(ctx context.Context, orderID, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return rewardsErrors.ErrPurchaseOrderNotFound("order %s not found", orderID)
	}
	order.PaymentID = paymentID
	return nil
}

func (m *memPurchase) GetOrder(ctx context.Context, orderID string) (*Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (m *memPurchase) CompleteWithIdempotency(ctx context.Context, orderID, reference string) (bool, *Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return false, nil, rewardsErrors.ErrPurchaseOrderNotFound("order %s not found", orderID)
	}
	if order.Status == constants.OrderStatusCompleted {
		cp := *order
		return false, &cp, nil
	}
	order.Status = constants.OrderStatusCompleted
	order.Reference = reference
	now := time.Now()
	order.CompletedAt = &now
	if _, err := m.ledger.ApplyTransaction(ctx, order.AccountID, constants.TxTypePurchase, order.Coins, TxMeta{Reference: orderID}); err != nil {
		return false, nil, err
	}
	cp := *order
	return true, &cp, nil
}

func (m *memPurchase) MarkFailed(ctx context.Context, orderID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[orderID]
	if !ok {
		return rewardsErrors.ErrPurchaseOrderNotFound("order %s not found", orderID)
	}
	if order.Status != constants.OrderStatusPending {
		return nil
	}
	order.Status = constants.OrderStatusFailed
	order.Reference = reason
	return nil
}

func (m *memPurchase) ListOrders(ctx context.Context, accountID string, page, pageSize int) ([]*Purchase, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Purchase
	for _, order := range m.orders {
		if order.AccountID == accountID {
			cp := *order
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

// ---- payment / notify / locker ----

type stubPayment struct {
	mu              sync.Mutex
	createCalls     []*CreatePaymentRequest
	disburseCalls   []*DisburseRequest
	createErr       error
	disburseErr     error
	disburseDecline bool
	disburseHook    func(*DisburseRequest) // 打款在途时回调，模拟外呼窗口内的并发操作
}

func (p *stubPayment) CreatePayment(ctx context.Context, req *CreatePaymentRequest) (*CreatePaymentReply, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return nil, p.createErr
	}
	p.createCalls = append(p.createCalls, req)
	return &CreatePaymentReply{
		PaymentID: fmt.Sprintf("pay-%d", len(p.createCalls)),
		PayURL:    "https://pay.example.com/" + req.OrderID,
	}, nil
}

func (p *stubPayment) Disburse(ctx context.Context, req *DisburseRequest) (*DisburseReply, error) {
	p.mu.Lock()
	if p.disburseErr != nil {
		p.mu.Unlock()
		return nil, p.disburseErr
	}
	if p.disburseDecline {
		p.mu.Unlock()
		return &DisburseReply{Success: false}, nil
	}
	p.disburseCalls = append(p.disburseCalls, req)
	seq := len(p.disburseCalls)
	hook := p.disburseHook
	p.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	return &DisburseReply{Success: true, Reference: fmt.Sprintf("ref-%d", seq)}, nil
}

func (p *stubPayment) disburseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.disburseCalls)
}

type stubNotifier struct {
	mu     sync.Mutex
	events []*NotificationEvent
}

func (n *stubNotifier) Send(ctx context.Context, event *NotificationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *stubNotifier) byType(notifyType string) []*NotificationEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*NotificationEvent
	for _, e := range n.events {
		if e.Type == notifyType {
			out = append(out, e)
		}
	}
	return out
}

// mutexLocker 进程内互斥锁，测试里替代 redsync
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mutexLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock, nil
}

func defaultTestConfig() *RewardsConfig {
	return &RewardsConfig{
		MinReadDuration:    30,
		MinReadPercentage:  40,
		DailyEarningLimit:  100,
		ContentEarningCap:  1000,
		SpamStopThreshold:  70,
		CommissionPool:     40,
		MinPayoutAmount:    50,
		MinWithdrawalCoins: 1000,
		ViewMilestones:     []int64{100, 1000, 10000, 100000},
	}
}
