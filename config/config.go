package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Botflow   BotflowConfig   `yaml:"botflow"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Feed      FeedConfig      `yaml:"feed"`
	Engine    EngineConfig    `yaml:"engine"`
	History   HistoryConfig   `yaml:"history"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type BotflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// BotsFile points at the YAML file defining the bot strategies.
	BotsFile string `yaml:"bots_file"`
}

type MetricsConfig struct {
	UsedWeight  bool `yaml:"used_weight"`
	ChannelSize bool `yaml:"channel_size"`
}

type ChannelsConfig struct {
	TickBuffer  int `yaml:"tick_buffer"`
	TradeBuffer int `yaml:"trade_buffer"`
}

type FeedConfig struct {
	Enabled    bool        `yaml:"enabled"`
	URL        string      `yaml:"url"`
	Pairs      []string    `yaml:"pairs"`
	IntervalMs int         `yaml:"interval_ms"`
	Retry      RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier int           `yaml:"backoff_multiplier"`
}

type EngineConfig struct {
	// Balance is the quote-currency balance percentage sizing draws on.
	Balance float64 `yaml:"balance"`
	// MaxWorkers caps concurrent bot evaluations per tick.
	MaxWorkers int `yaml:"max_workers"`
}

type HistoryConfig struct {
	// Provider selects the historical tick source: binance or influx.
	Provider string               `yaml:"provider"`
	Binance  BinanceHistoryConfig `yaml:"binance"`
	Influx   InfluxConfig         `yaml:"influx"`
}

type BinanceHistoryConfig struct {
	KlineInterval     string `yaml:"kline_interval"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
}

type InfluxConfig struct {
	URL         string `yaml:"url"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Token       string `yaml:"token"`
	Measurement string `yaml:"measurement"`
}

type CacheConfig struct {
	// Provider selects the close-window cache backend: memory or redis.
	Provider string        `yaml:"provider"`
	TTL      time.Duration `yaml:"ttl"`
	// WindowSize is the number of closes retained per pair.
	WindowSize int         `yaml:"window_size"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// DashboardConfig controls the embedded monitoring dashboard.
type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	MetricsHistory  int           `yaml:"metrics_history"`
}

type LoggingConfig struct {
	Level         string                 `yaml:"level"`
	Format        string                 `yaml:"format"`
	Output        string                 `yaml:"output"`
	MaxAge        int                    `yaml:"max_age"`
	Fields        map[string]interface{} `yaml:"fields"`
	DashboardName string                 `yaml:"dashboard_name"`
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Metrics: MetricsConfig{
			UsedWeight:  true,
			ChannelSize: true,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override S3 settings from environment variables if available
	if config.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		config.History.Influx.Token = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Cache.Redis.Password = strings.TrimSpace(v)
	}

	config.Storage.S3.Bucket = strings.TrimSpace(config.Storage.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Botflow.Name == "" {
		return fmt.Errorf("botflow.name is required")
	}

	if cfg.Botflow.Version == "" {
		return fmt.Errorf("botflow.version is required")
	}

	if cfg.Channels.TickBuffer <= 0 {
		return fmt.Errorf("channels.tick_buffer must be greater than 0")
	}
	if cfg.Channels.TradeBuffer <= 0 {
		return fmt.Errorf("channels.trade_buffer must be greater than 0")
	}

	if cfg.Engine.Balance < 0 {
		return fmt.Errorf("engine.balance must not be negative")
	}
	if cfg.Engine.MaxWorkers < 0 {
		return fmt.Errorf("engine.max_workers must not be negative")
	}

	if cfg.Feed.Enabled {
		if cfg.Feed.URL == "" {
			return fmt.Errorf("feed.url is required when the feed is enabled")
		}
		if len(cfg.Feed.Pairs) == 0 {
			return fmt.Errorf("feed.pairs must name at least one pair when the feed is enabled")
		}
	}

	switch cfg.History.Provider {
	case "", "binance":
	case "influx":
		if cfg.History.Influx.URL == "" {
			return fmt.Errorf("history.influx.url is required for the influx provider")
		}
		if cfg.History.Influx.Bucket == "" {
			return fmt.Errorf("history.influx.bucket is required for the influx provider")
		}
	default:
		return fmt.Errorf("history.provider '%s' is not supported", cfg.History.Provider)
	}

	switch cfg.Cache.Provider {
	case "", "memory":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis provider")
		}
	default:
		return fmt.Errorf("cache.provider '%s' is not supported", cfg.Cache.Provider)
	}

	if cfg.Storage.S3.Enabled {
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("storage.s3.access_key_id and storage.s3.secret_access_key are required when S3 is enabled")
		}
		if !isValidS3Bucket(cfg.Storage.S3.Bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", cfg.Storage.S3.Bucket)
		}
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
