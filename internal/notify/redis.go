package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	DefaultChannel      = "sopchunk:chunks_published"
	DefaultRedisTimeout = 5 * time.Second
)

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	// URL format: redis://[:password@]host:port[/db]
	URL     string
	Channel string
	Timeout time.Duration
	Retries int
}

// RedisNotifier PUBLISHes events as JSON to a channel.
type RedisNotifier struct {
	cfg    RedisConfig
	client *goredis.Client
}

func NewRedis(cfg RedisConfig) (*RedisNotifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis notifier requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis notifier: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	return &RedisNotifier{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

func (r *RedisNotifier) Publish(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}

	attempts := 1 + r.cfg.Retries
	var lastErr error
	for i := range attempts {
		if i > 0 {
			if err := sleep(ctx, backoff(i)); err != nil {
				return fmt.Errorf("redis: canceled during backoff: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("redis: canceled: %w", err)
		}

		pubCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		lastErr = r.client.Publish(pubCtx, r.cfg.Channel, body).Err()
		cancel()
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("redis: failed after %d attempts: %w", attempts, lastErr)
}

func (r *RedisNotifier) Close() error {
	return r.client.Close()
}

var _ Notifier = (*RedisNotifier)(nil)
