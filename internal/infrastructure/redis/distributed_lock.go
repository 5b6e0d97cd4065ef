package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者確認と削除をアトミックに実行する
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Lock は取得済みのロック
type Lock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, ttl time.Duration) error
}

// LockManagerInterface はロックの取得を抽象化する
type LockManagerInterface interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
	AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (Lock, error)
}

const lockKeyPrefix = "lock:"

// DistributedLock は SET NX で取得したロック
// value は取得ごとのトークンで、解放と延長は同じトークンを持つ場合だけ成功する
type DistributedLock struct {
	client redis.Scripter
	key    string
	token  string
	ttl    time.Duration
}

// LockManager はユーザー単位の注文ロックを取得する
type LockManager struct {
	client *redis.Client
}

var _ LockManagerInterface = (*LockManager)(nil)

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock は key のロックを1回だけ試みる
// 他の所有者がいれば ErrLockNotAcquired を返す
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	l := &DistributedLock{
		client: m.client,
		key:    lockKeyPrefix + key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
	ok, err := m.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return l, nil
}

// AcquireLockWithRetry は retryInterval 間隔で最大 maxRetries 回ロックを試みる
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryInterval time.Duration) (Lock, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		lock, err := m.AcquireLock(ctx, key, ttl)
		if !errors.Is(err, ErrLockNotAcquired) {
			return lock, err
		}
		timer.Reset(retryInterval)
	}
	return nil, ErrLockNotAcquired
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	return l.runOwned(ctx, releaseScript, "ロック解放に失敗", l.token)
}

// Extend はロックの有効期限を ttl に延ばす
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	if err := l.runOwned(ctx, extendScript, "ロック延長に失敗", l.token, ttl.Milliseconds()); err != nil {
		return err
	}
	l.ttl = ttl
	return nil
}

func (l *DistributedLock) runOwned(ctx context.Context, script *redis.Script, msg string, args ...interface{}) error {
	n, err := script.Run(ctx, l.client, []string{l.key}, args...).Int()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if n == 0 {
		return ErrLockNotOwned
	}
	return nil
}
