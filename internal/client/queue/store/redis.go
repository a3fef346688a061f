package store

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a redis-backed store. Ordering lives in a sorted set
// scored by Request.Seq; each entry body is a JSON value under its own key.
// Upserting an existing ID rewrites the value while the score, and therefore
// the position, stays put.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "nvlp:queue:"
	}

	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) orderKey() string        { return s.prefix + "order" }
func (s *redisStore) entryKey(id string) string { return s.prefix + "entry:" + id }

func (s *redisStore) List(ctx context.Context) ([]Request, error) {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list queue order: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.entryKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	entries := make([]Request, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Entry removed between ZRange and MGet; skip.
			continue
		}
		var req Request
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return nil, fmt.Errorf("decode queue entry: %w", err)
		}
		entries = append(entries, req)
	}
	return entries, nil
}

func (s *redisStore) Append(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.orderKey(), redis.Z{Score: float64(req.Seq), Member: req.ID})
	pipe.Set(ctx, s.entryKey(req.ID), data, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append queue entry: %w", err)
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.orderKey(), id)
	pipe.Del(ctx, s.entryKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context) error {
	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.entryKey(id))
	}
	pipe.Del(ctx, s.orderKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	return nil
}

// Close releases the underlying redis connection.
func (s *redisStore) Close() error {
	return s.client.Close()
}
