package service

import (
	"strconv"
	"time"

	"rewards-service/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// WalletService 钱包服务：余额、流水、礼物、金币购买
type WalletService struct {
	ledger   *biz.LedgerUseCase
	purchase *biz.PurchaseUseCase
	log      *log.Helper
}

// NewWalletService 创建 WalletService
func NewWalletService(ledger *biz.LedgerUseCase, purchase *biz.PurchaseUseCase, logger log.Logger) *WalletService {
	return &WalletService{
		ledger:   ledger,
		purchase: purchase,
		log:      log.NewHelper(logger),
	}
}

// BalanceReply 余额响应
type BalanceReply struct {
	AccountID   string `json:"account_id"`
	CoinBalance int64  `json:"coin_balance"`
}

// TransactionItem 流水条目
type TransactionItem struct {
	TransactionID string `json:"transaction_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	BalanceAfter  int64  `json:"balance_after"`
	ContentID     string `json:"content_id,omitempty"`
	Counterparty  string `json:"counterparty,omitempty"`
	Reference     string `json:"reference,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// ListTransactionsReply 流水列表响应
type ListTransactionsReply struct {
	Total int64              `json:"total"`
	Items []*TransactionItem `json:"items"`
}

// SendGiftRequest 赠送礼物请求
type SendGiftRequest struct {
	ToAccountID string `json:"to_account_id"`
	Amount      int64  `json:"amount"`
	ContentID   string `json:"content_id"`
}

// SendGiftReply 赠送礼物响应
type SendGiftReply struct {
	Success bool `json:"success"`
}

// CreatePurchaseRequest 创建购买订单请求
type CreatePurchaseRequest struct {
	Coins int64 `json:"coins"`
}

// CreatePurchaseReply 创建购买订单响应
type CreatePurchaseReply struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	PayURL  string  `json:"pay_url"`
}

// PurchaseCallbackRequest 支付回调请求
type PurchaseCallbackRequest struct {
	OrderID   string `json:"order_id"`
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

// PurchaseCallbackReply 支付回调响应
type PurchaseCallbackReply struct {
	Success bool `json:"success"`
}

// RegisterRoutes 注册 HTTP 路由
func (s *WalletService) RegisterRoutes(srv *khttp.Server) {
	r := srv.Route("/v1")
	r.GET("/wallet/balance", s.handleGetBalance)
	r.GET("/wallet/transactions", s.handleListTransactions)
	r.POST("/wallet/gifts", s.handleSendGift)
	r.POST("/purchases", s.handleCreatePurchase)
	r.POST("/purchases/callback", s.handlePurchaseCallback)
}

func (s *WalletService) handleGetBalance(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	balance, err := s.ledger.GetBalance(ctx, id)
	if err != nil {
		s.log.Errorf("GetBalance failed: account_id=%s, error=%v", id, err)
		return err
	}
	return ctx.Result(200, &BalanceReply{AccountID: id, CoinBalance: balance})
}

func (s *WalletService) handleListTransactions(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	page, pageSize := pagination(ctx)
	items, total, err := s.ledger.ListTransactions(ctx, id, page, pageSize)
	if err != nil {
		s.log.Errorf("ListTransactions failed: account_id=%s, error=%v", id, err)
		return err
	}

	reply := &ListTransactionsReply{
		Total: total,
		Items: make([]*TransactionItem, 0, len(items)),
	}
	for _, t := range items {
		reply.Items = append(reply.Items, &TransactionItem{
			TransactionID: t.TransactionID,
			Type:          t.Type,
			Amount:        t.Amount,
			BalanceAfter:  t.BalanceAfter,
			ContentID:     t.ContentID,
			Counterparty:  t.Counterparty,
			Reference:     t.Reference,
			CreatedAt:     t.CreatedAt.Format(time.RFC3339),
		})
	}
	return ctx.Result(200, reply)
}

func (s *WalletService) handleSendGift(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req SendGiftRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := s.ledger.SendGift(ctx, id, req.ToAccountID, req.Amount, req.ContentID); err != nil {
		s.log.Errorf("SendGift failed: from=%s, to=%s, error=%v", id, req.ToAccountID, err)
		return err
	}
	return ctx.Result(200, &SendGiftReply{Success: true})
}

func (s *WalletService) handleCreatePurchase(ctx khttp.Context) error {
	id, err := accountID(ctx)
	if err != nil {
		return err
	}
	var req CreatePurchaseRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	order, payURL, err := s.purchase.CreateOrder(ctx, id, req.Coins)
	if err != nil {
		s.log.Errorf("CreatePurchase failed: account_id=%s, error=%v", id, err)
		return err
	}
	return ctx.Result(200, &CreatePurchaseReply{
		OrderID: order.OrderID,
		Amount:  order.Amount,
		PayURL:  payURL,
	})
}

// handlePurchaseCallback 支付网关回调，不要求用户身份头
func (s *WalletService) handlePurchaseCallback(ctx khttp.Context) error {
	var req PurchaseCallbackRequest
	if err := ctx.Bind(&req); err != nil {
		return err
	}
	if err := s.purchase.HandleCallback(ctx, req.OrderID, req.Success, req.Reference); err != nil {
		s.log.Errorf("PurchaseCallback failed: order_id=%s, error=%v", req.OrderID, err)
		return err
	}
	return ctx.Result(200, &PurchaseCallbackReply{Success: true})
}

// pagination 解析 page/page_size 查询参数
func pagination(ctx khttp.Context) (int, int) {
	query := ctx.Request().URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
