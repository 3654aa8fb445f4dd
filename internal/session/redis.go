package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
)

// RedisStore はセッションを Redis に保存します。
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore は RedisStore を作成します。
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// NewRedisStoreFromURL は接続URLからクライアントを作成します。
func NewRedisStoreFromURL(rawURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt)), nil
}

// Load はセッション情報を取得します。
func (s *RedisStore) Load(ctx context.Context, id string) (map[string]string, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Save はセッション情報を保存します（存在しない場合は作成）。
func (s *RedisStore) Save(ctx context.Context, id string, values map[string]string, ttl time.Duration) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(id), payload, ttl).Err()
}

// Rotate は新しいキーへの保存と旧キーの削除を1つの MULTI/EXEC で行います。
func (s *RedisStore) Rotate(ctx context.Context, oldID, newID string, values map[string]string, ttl time.Duration) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(newID), payload, ttl)
		pipe.Del(ctx, sessionKey(oldID))
		return nil
	})
	return err
}

// Delete はセッション情報を削除します。
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, sessionKey(id)).Err()
}

// Close はクライアントを閉じます。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
