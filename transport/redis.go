package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the redis transport knobs.
type RedisConfig struct {
	// Addr is host:port of the redis server.
	Addr string
	// Channel is the pub/sub channel batches are published to.
	Channel string
	// Password authenticates the connection when set.
	Password string
	// PoolSize bounds the client connection pool.
	PoolSize int
	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// RedisTransport publishes each batch payload to a pub/sub channel. The
// client reconnects internally; publish failures surface as transient errors
// so the dispatcher's retry policy applies. Authentication failures are
// fatal and degrade the transport.
type RedisTransport struct {
	client  *redis.Client
	channel string
}

// NewRedis builds the transport. The connection is established lazily on
// first publish, so a temporarily absent server does not fail start.
func NewRedis(cfg RedisConfig) (*RedisTransport, error) {
	if cfg.Addr == "" || cfg.Channel == "" {
		return nil, fmt.Errorf("redis transport: addr and channel are required")
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		// The dispatcher owns retries; the client should not stack its own.
		MaxRetries: -1,
	})
	return &RedisTransport{client: client, channel: cfg.Channel}, nil
}

func (r *RedisTransport) Name() string { return "redis" }

func (r *RedisTransport) Send(ctx context.Context, p *Payload) error {
	if err := r.client.Publish(ctx, r.channel, p.Bytes()).Err(); err != nil {
		if isRedisAuthErr(err) {
			return fatalErr("redis", err)
		}
		return transientErr("redis", err)
	}
	return nil
}

func isRedisAuthErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NOAUTH") || strings.Contains(msg, "WRONGPASS") ||
		strings.Contains(msg, "NOPERM")
}

func (r *RedisTransport) Flush() error { return nil }

func (r *RedisTransport) Shutdown(context.Context) error {
	return r.client.Close()
}
