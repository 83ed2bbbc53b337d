package completion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stream is the Redis Stream completion events are published to
const Stream = "tasks:completed"

// DirectPublisher dispatches events in-process, synchronously. Used when no
// Redis is configured; the publisher/consumer split still keeps the
// failure-isolation boundary explicit.
type DirectPublisher struct {
	handle HandlerFunc
}

func NewDirectPublisher(handle HandlerFunc) *DirectPublisher {
	return &DirectPublisher{handle: handle}
}

func (p *DirectPublisher) Publish(ctx context.Context, ev Event) error {
	return p.handle(ctx, ev)
}

// RedisPublisher appends events to the completion stream
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode completion event: %w", err)
	}

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		Values: map[string]interface{}{"event": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish completion event: %w", err)
	}
	return nil
}
