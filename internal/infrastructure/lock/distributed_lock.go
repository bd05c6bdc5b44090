package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 场景：同一个付款账户同时发起两笔账单支付（网络抖动导致重复提交）。
// 余额扣减本身靠条件 UPDATE 防丢失更新，但幂等检查（request_id 查重）
// 是先读后写，需要锁把"查重 → 落库"串行化。
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查持有者 + 删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// Lua 脚本先验证持有者再删除，锁过期后被他人持有时不会误删
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数
// ============================================================================

// NewPaymentLock 创建账单支付锁（按付款账户维度）
// 不同账户可以并发支付；同一账户串行，防止幂等检查与落库之间被插队
func NewPaymentLock(client *redis.Client, accountNo string) *DistributedLock {
	key := fmt.Sprintf("payment:lock:account:%s", accountNo)
	// value 用随机 uuid 标识持有者
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}

// NewVerificationLock 创建审核决定锁（按审核单维度）
// approve/reject 是恰好一次的操作，锁 + 状态守卫更新双重保护
func NewVerificationLock(client *redis.Client, verificationNo string) *DistributedLock {
	key := fmt.Sprintf("verification:lock:%s", verificationNo)
	return NewDistributedLock(client, key, uuid.NewString(), 30*time.Second)
}
