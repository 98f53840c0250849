package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/conf"
	"rewards-service/internal/metrics"
	"rewards-service/internal/pkg/logger"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

// CronApp Cron 应用结构
type CronApp struct {
	ledgerUsecase       *biz.LedgerUseCase
	subscriptionUsecase *biz.SubscriptionUseCase
}

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	loggerInstance := logger.NewLogger(&logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/rewards-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	})
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "rewards-cron",
	)
	logHelper := log.NewHelper(loggerInstance)

	metrics.InitMetrics()

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 定时任务调度器（秒级表达式）
	cronScheduler := cron.New(cron.WithSeconds())

	// 订阅过期 - 每小时整点执行
	_, err = cronScheduler.AddFunc("0 0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := app.subscriptionUsecase.ExpireSubscriptions(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error expiring subscriptions: %v", err)
		} else if count > 0 {
			logHelper.Infof("[CRON] Expired subscriptions: count=%d", count)
		}
	})
	if err != nil {
		logHelper.Errorf("Failed to add subscription expiry job: %v", err)
	}

	// 账本对账 - 每日 02:00 执行
	_, err = cronScheduler.AddFunc("0 0 2 * * *", func() {
		logHelper.Info("[CRON] Starting ledger reconciliation...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		mismatches, err := app.ledgerUsecase.Reconcile(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error reconciling ledger: %v", err)
			return
		}
		if len(mismatches) == 0 {
			logHelper.Info("[CRON] Ledger reconciliation clean")
			return
		}
		for _, m := range mismatches {
			logHelper.Errorf("[CRON] Ledger mismatch: account_id=%s, balance=%d, tx_sum=%d", m.AccountID, m.Balance, m.TxSum)
		}
		logHelper.Errorf("[CRON] Ledger reconciliation found %d mismatched accounts", len(mismatches))
	})
	if err != nil {
		logHelper.Errorf("Failed to add ledger reconciliation job: %v", err)
	}

	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Info("  - Subscription expiry: Every hour on the hour")
	logHelper.Info("  - Ledger reconciliation: Every day at 02:00")
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
