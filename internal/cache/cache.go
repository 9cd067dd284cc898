package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"botflow/config"
)

// DefaultWindowSize covers the longest indicator period (SMA 200) with room
// for the MACD signal line to settle.
const DefaultWindowSize = 250

// Window is a rolling per-pair close-price buffer feeding the indicator
// calculator. Implementations keep at most the configured number of closes
// per pair and return them oldest first.
type Window interface {
	Append(ctx context.Context, pair string, close float64) error
	Closes(ctx context.Context, pair string) ([]float64, error)
}

// New builds the close-window cache selected by the configuration.
func New(cfg config.CacheConfig) (Window, error) {
	size := cfg.WindowSize
	if size <= 0 {
		size = DefaultWindowSize
	}
	switch cfg.Provider {
	case "", "memory":
		return NewMemoryWindow(size, cfg.TTL), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisWindow(client, size, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("cache provider '%s' is not supported", cfg.Provider)
	}
}
