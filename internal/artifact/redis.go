package artifact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/logsift/config"
)

const keyPrefix = "logsift:artifact:"

// RedisStore keeps stage artifacts in redis, useful when several machines
// share one triage workspace.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Save(ctx context.Context, stage string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", stage, err)
	}
	if err := s.client.Set(ctx, keyPrefix+stage, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", stage, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, stage string, v interface{}) error {
	data, err := s.client.Get(ctx, keyPrefix+stage).Bytes()
	if err != nil {
		return fmt.Errorf("redis get %s: %w", stage, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", stage, err)
	}
	return nil
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
