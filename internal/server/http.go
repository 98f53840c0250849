package server

import (
	nethttp "net/http"

	"rewards-service/internal/conf"
	"rewards-service/internal/service"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(
	c *conf.Bootstrap,
	rewardsService *service.RewardsService,
	walletService *service.WalletService,
	affiliateService *service.AffiliateService,
	subscriptionService *service.SubscriptionService,
) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if c.Server != nil && c.Server.Http != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Server.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	rewardsService.RegisterRoutes(srv)
	walletService.RegisterRoutes(srv)
	affiliateService.RegisterRoutes(srv)
	subscriptionService.RegisterRoutes(srv)

	srv.Handle("/metrics", promhttp.Handler())
	srv.HandleFunc("/healthz", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		w.Write([]byte("ok"))
	})
	return srv
}
