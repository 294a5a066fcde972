package repository

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockTimeout 表示在等待时间内未能获得锁。
var ErrLockTimeout = errors.New("等待入库锁超时")

// IngestLocker 以内容键串行化同一内容的并发入库请求。
type IngestLocker interface {
	// Acquire 在 wait 时间内尝试获取锁，成功时返回释放函数。
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (release func(), err error)
}

// releaseScript 只删除自己持有的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type redisIngestLocker struct {
	redisClient *redis.Client
	retryEvery  time.Duration
}

// NewIngestLocker 创建基于 Redis SETNX 的 IngestLocker；redisClient 为 nil 时返回不加锁的实现。
func NewIngestLocker(redisClient *redis.Client) IngestLocker {
	if redisClient == nil {
		return noopLocker{}
	}
	return &redisIngestLocker{redisClient: redisClient, retryEvery: 50 * time.Millisecond}
}

func (l *redisIngestLocker) getRedisLockKey(key string) string {
	return "ingest:lock:" + key
}

func (l *redisIngestLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (func(), error) {
	lockKey := l.getRedisLockKey(key)
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.redisClient.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), l.redisClient, []string{lockKey}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retryEvery):
		}
	}
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration, time.Duration) (func(), error) {
	return func() {}, nil
}
