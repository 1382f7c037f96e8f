package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired 锁已被其他请求持有
var ErrLockNotAcquired = errors.New("lock is held by another request")

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 分布式锁句柄
type Lock struct {
	key   string
	token string
}

// BusinessPublishLockKey 商家发布锁键
func BusinessPublishLockKey(businessID uint) string {
	return fmt.Sprintf("lock:publish:business:%d", businessID)
}

// RenewalBatchLockKey 自动续费批处理锁键
const RenewalBatchLockKey = "lock:renewal:batch"

// AcquireLock 获取锁；缓存未启用时返回空锁，由数据库事务负责串行
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	lock := &Lock{key: buildKey(key), token: uuid.NewString()}
	if !Enabled() {
		return lock, nil
	}
	ok, err := redisClient.SetNX(ctx, lock.key, lock.token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return lock, nil
}

// Release 释放锁，只删除自己持有的锁
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || !Enabled() {
		return nil
	}
	return releaseLockScript.Run(ctx, redisClient, []string{l.key}, l.token).Err()
}
