package biz

import "context"

// Locker 分布式互斥锁接口，data 层以 redsync 实现
// Acquire 成功返回释放函数；锁被占用或 Redis 不可达返回错误
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}
