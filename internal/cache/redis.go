package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWindow stores each pair's close window in a Redis list so restarts
// resume with warm indicators. The list is trimmed to the window size on
// every append and expires after the TTL when the pair stops ticking.
type RedisWindow struct {
	client *redis.Client
	size   int
	ttl    time.Duration
}

func NewRedisWindow(client *redis.Client, size int, ttl time.Duration) *RedisWindow {
	return &RedisWindow{client: client, size: size, ttl: ttl}
}

func windowKey(pair string) string {
	return fmt.Sprintf("closes:%s", pair)
}

func (r *RedisWindow) Append(ctx context.Context, pair string, close float64) error {
	key := windowKey(pair)

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, strconv.FormatFloat(close, 'f', -1, 64))
	pipe.LTrim(ctx, key, int64(-r.size), -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append close for %s: %w", pair, err)
	}
	return nil
}

func (r *RedisWindow) Closes(ctx context.Context, pair string) ([]float64, error) {
	values, err := r.client.LRange(ctx, windowKey(pair), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read close window for %s: %w", pair, err)
	}

	closes := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt close value %q for %s: %w", v, pair, err)
		}
		closes = append(closes, f)
	}
	return closes, nil
}
