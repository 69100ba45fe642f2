package visitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRedisPrefix はRedisキーのデフォルトの接頭辞。
const defaultRedisPrefix = "rails:visitor:"

// RedisStore はRedisにセッションをJSONで保存するStore。
// 有効期限はRedisのTTLで管理する。
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore はRedisStoreを生成する。ttlが0以下の場合は無期限。
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: defaultRedisPrefix, ttl: ttl}
}

// OpenRedis はURL（例: "redis://localhost:6379/0"）からRedisStoreを生成し、疎通を確認する。
func OpenRedis(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("Redis URLの解析に失敗: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redisへの接続に失敗: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

// Close はRedis接続を閉じる。
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Get はIDに対応するセッションを返す。
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("セッションのデシリアライズに失敗: %w", err)
	}
	return &sess, nil
}

// Save はセッションを保存し、TTLを更新する。
func (r *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("セッションのシリアライズに失敗: %w", err)
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("セッションの保存に失敗: %w", err)
	}
	return nil
}

// Delete はセッションを削除する。
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("セッションの削除に失敗: %w", err)
	}
	return nil
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}
