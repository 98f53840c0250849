package data

import (
	"context"
	"fmt"
	"time"

	"rewards-service/internal/biz"
	"rewards-service/internal/conf"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redis/redis/v8"
	"github.com/go-redsync/redsync/v4"
	goredis "github.com/go-redsync/redsync/v4/redis/goredis/v8"
	"github.com/google/wire"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewDB,
	NewRedis,
	NewRedsync,
	NewLocker,
	NewData,
	NewLedgerRepo,
	NewReadingRepo,
	NewPromoRepo,
	NewPayoutRepo,
	NewSubscriptionRepo,
	NewPurchaseRepo,
	NewNotificationSender,
	NewPaymentClient,
)

// Data 数据层结构体
type Data struct {
	db       *gorm.DB
	rdb      *redis.Client
	producer rocketmq.Producer
}

// NewDB 创建数据库连接
// TranslateError 打开后唯一键冲突统一转为 gorm.ErrDuplicatedKey
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c.Data == nil || c.Data.Database == nil {
		return nil, fmt.Errorf("database config is nil")
	}
	db, err := gorm.Open(mysql.Open(c.Data.Database.Source), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewRedis 创建 Redis 连接
func NewRedis(c *conf.Bootstrap) (*redis.Client, error) {
	if c.Data == nil || c.Data.Redis == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	var readTimeout, writeTimeout time.Duration
	if c.Data.Redis.ReadTimeout != nil {
		readTimeout = c.Data.Redis.ReadTimeout.AsDuration()
	}
	if c.Data.Redis.WriteTimeout != nil {
		writeTimeout = c.Data.Redis.WriteTimeout.AsDuration()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Data.Redis.Addr,
		Password:     c.Data.Redis.Password,
		DB:           c.Data.Redis.Db,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// 测试连接
	if err := rdb.Ping(rdb.Context()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewRedsync 创建分布式锁工厂
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	return redsync.New(goredis.NewPool(rdb))
}

// redsyncLocker 基于 redsync 的 biz.Locker 实现
type redsyncLocker struct {
	sync *redsync.Redsync
	log  *log.Helper
}

// NewLocker 创建分布式锁
func NewLocker(sync *redsync.Redsync, logger log.Logger) biz.Locker {
	return &redsyncLocker{
		sync: sync,
		log:  log.NewHelper(logger),
	}
}

// Acquire 获取锁，返回释放函数
func (l *redsyncLocker) Acquire(ctx context.Context, key string) (func(), error) {
	mutex := l.sync.NewMutex(key, redsync.WithExpiry(10*time.Second))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, err
	}
	return func() {
		if ok, err := mutex.Unlock(); !ok || err != nil {
			l.log.Warnf("Failed to unlock: key=%s, error=%v", key, err)
		}
	}, nil
}

// NewMQProducer 创建 RocketMQ 生产者（配置关闭时返回 nil）
func NewMQProducer(c *conf.Bootstrap, logger log.Logger) rocketmq.Producer {
	helper := log.NewHelper(logger)
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		return nil
	}
	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(c.Data.Rocketmq.NameServers)),
		producer.WithGroupName(c.Data.Rocketmq.GroupName),
		producer.WithRetry(int(c.Data.Rocketmq.RetryTimes)),
	)
	if err != nil {
		helper.Errorf("init producer error: %v", err)
		return nil
	}
	if err := p.Start(); err != nil {
		helper.Errorf("start producer error: %v", err)
		return nil
	}
	return p
}

// NewData 创建数据层实例
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	helper := log.NewHelper(logger)
	p := NewMQProducer(c, logger)

	cleanup := func() {
		helper.Info("closing the data resources")
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
		if err := rdb.Close(); err != nil {
			helper.Errorf("failed to close redis: %v", err)
		}
		if p != nil {
			if err := p.Shutdown(); err != nil {
				helper.Errorf("failed to shutdown producer: %v", err)
			}
		}
	}

	return &Data{
		db:       db,
		rdb:      rdb,
		producer: p,
	}, cleanup, nil
}
