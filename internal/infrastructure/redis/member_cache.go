package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-tx-propagation/internal/domain/member"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// MemberCacheInterface は会員キャッシュを抽象化する
type MemberCacheInterface interface {
	Get(ctx context.Context, username string) (*member.Member, error)
	Set(ctx context.Context, m *member.Member, ttl time.Duration) error
	Invalidate(ctx context.Context, username string) error
}

type cachedMember struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberCache は会員情報のキャッシュを管理する
type MemberCache struct {
	client *redis.Client
}

var _ MemberCacheInterface = (*MemberCache)(nil)

// NewMemberCache は新しいMemberCacheインスタンスを作成する
func NewMemberCache(client *redis.Client) *MemberCache {
	return &MemberCache{client: client}
}

// Get は会員をキャッシュから取得する
func (c *MemberCache) Get(ctx context.Context, username string) (*member.Member, error) {
	val, err := c.client.Get(ctx, c.key(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	var cm cachedMember
	if err := json.Unmarshal([]byte(val), &cm); err != nil {
		return nil, fmt.Errorf("キャッシュ復元に失敗: %w", err)
	}
	return &member.Member{ID: cm.ID, Username: cm.Username, CreatedAt: cm.CreatedAt}, nil
}

// Set は会員をキャッシュに保存する
func (c *MemberCache) Set(ctx context.Context, m *member.Member, ttl time.Duration) error {
	data, err := json.Marshal(cachedMember{ID: m.ID, Username: m.Username, CreatedAt: m.CreatedAt})
	if err != nil {
		return fmt.Errorf("キャッシュ変換に失敗: %w", err)
	}
	if err := c.client.Set(ctx, c.key(m.Username), data, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は会員のキャッシュを無効化する
func (c *MemberCache) Invalidate(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, c.key(username)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func (c *MemberCache) key(username string) string {
	return fmt.Sprintf("members:%s", username)
}
