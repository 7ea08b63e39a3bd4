package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "cryptosight:transcript:"

// RedisStore keeps each transcript in a capped list that expires when the
// session goes idle.
type RedisStore struct {
	client      *redis.Client
	maxMessages int
	ttl         time.Duration
}

// NewRedisClient parses a redis:// URL and checks the server is reachable.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client, maxMessages int) *RedisStore {
	return &RedisStore{client: client, maxMessages: maxMessages, ttl: sessionTTL}
}

func (r *RedisStore) Append(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	b, err := json.Marshal(stamp(msg))
	if err != nil {
		return err
	}
	key := redisKeyPrefix + sessionID
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, b)
	if r.maxMessages > 0 {
		pipe.LTrim(ctx, key, int64(-r.maxMessages), -1)
	}
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	raw, err := r.client.LRange(ctx, redisKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}
	msgs := make([]Message, 0, len(raw))
	for _, item := range raw {
		var m Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}
