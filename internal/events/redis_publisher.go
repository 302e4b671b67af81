package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"veritas-media/internal/redisclient"
)

// DefaultStream is the Redis stream catalog events are appended to.
const DefaultStream = "veritas:media"

// RedisPublisherConfig configures the Redis Streams publisher.
type RedisPublisherConfig struct {
	Redis  redisclient.Options
	Stream string
}

// RedisPublisher appends catalog events to a Redis stream. Each record
// carries the event type as a plain field so consumers can filter without
// decoding the payload.
type RedisPublisher struct {
	client redis.UniversalClient
	stream string
}

// NewRedisPublisher initialises a publisher backed by Redis Streams. It
// fails fast when the instance is unreachable so misconfiguration surfaces
// at startup rather than on the first upload.
func NewRedisPublisher(cfg RedisPublisherConfig) (*RedisPublisher, error) {
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = DefaultStream
	}
	client, err := redisclient.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPublisher{client: client, stream: stream}, nil
}

// Publish appends the event to the stream.
func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if event.Type == "" {
		return errors.New("event type is required")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.client.Do(ctx, "XADD", p.stream, "*", "type", string(event.Type), "payload", string(payload)).Err()
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Ping checks that the Redis connection is healthy.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
