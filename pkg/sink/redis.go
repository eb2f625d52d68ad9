package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aretw0/audittrail/pkg/core"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "audittrail"

// Redis appends audit lines to a Redis stream.
type Redis struct {
	client redis.UniversalClient
	stream string
	maxLen int64
	now    func() time.Time
}

// RedisOption configures a Redis sink.
type RedisOption func(*Redis)

// WithMaxLen caps the stream length (approximate trimming).
func WithMaxLen(n int64) RedisOption {
	return func(r *Redis) {
		r.maxLen = n
	}
}

// WithClock replaces the time source of the "at" entry field.
func WithClock(now func() time.Time) RedisOption {
	return func(r *Redis) {
		r.now = now
	}
}

// NewRedis creates a sink appending to stream.
func NewRedis(client redis.UniversalClient, stream string, opts ...RedisOption) *Redis {
	if stream == "" {
		stream = DefaultStream
	}
	r := &Redis{client: client, stream: stream, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OpenRedis connects to the server at url and checks it answers.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// WriteLine implements audit.Sink.
func (r *Redis) WriteLine(ctx context.Context, message, actingUser string) error {
	if actingUser == "" {
		actingUser = core.AnonymousUser
	}
	err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		MaxLen: r.maxLen,
		Approx: r.maxLen > 0,
		Values: map[string]any{
			"user":    actingUser,
			"message": message,
			"at":      r.now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
