package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	group = "gamification"

	// reclaimMinIdle is how long a pending event may sit unacked before any
	// live consumer claims it. Covers both handler failures on this instance
	// and events stranded by a crashed consumer.
	reclaimMinIdle  = 30 * time.Second
	reclaimInterval = 30 * time.Second
)

// Consumer reads completion events from the stream through a consumer group
// and feeds them to the handler. Events are acked only after the handler
// succeeds; unacked events are reclaimed once their idle time passes
// reclaimMinIdle, so a failed handler or a dead consumer only delays
// redelivery.
type Consumer struct {
	rdb          *redis.Client
	handle       HandlerFunc
	consumerName string
	lastReclaim  time.Time
}

func NewConsumer(rdb *redis.Client, handle HandlerFunc) *Consumer {
	hostname, _ := os.Hostname()
	return &Consumer{
		rdb:          rdb,
		handle:       handle,
		consumerName: fmt.Sprintf("consumer-%s-%d", hostname, os.Getpid()),
	}
}

// Start blocks consuming events until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, Stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: c.consumerName,
			Streams:  []string{Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			log.Printf("completion consumer read error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				c.process(ctx, message)
			}
		}

		if time.Since(c.lastReclaim) >= reclaimInterval {
			c.lastReclaim = time.Now()
			c.reclaimPending(ctx)
		}
	}
}

// reclaimPending claims events left unacked for too long, whether by this
// consumer's earlier handler failures or by a consumer that no longer exists,
// and runs them through the handler again
func (c *Consumer) reclaimPending(ctx context.Context) {
	pending, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: Stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("completion consumer pending check failed: %v", err)
		}
		return
	}

	ids := claimableIDs(pending, reclaimMinIdle)
	if len(ids) == 0 {
		return
	}

	claimed, err := c.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   Stream,
		Group:    group,
		Consumer: c.consumerName,
		MinIdle:  reclaimMinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		log.Printf("completion consumer claim failed: %v", err)
		return
	}

	for _, message := range claimed {
		c.process(ctx, message)
	}
}

// claimableIDs selects the pending entries idle long enough to take over
func claimableIDs(pending []redis.XPendingExt, minIdle time.Duration) []string {
	var ids []string
	for _, p := range pending {
		if p.Idle >= minIdle {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (c *Consumer) process(ctx context.Context, message redis.XMessage) {
	raw, ok := message.Values["event"].(string)
	if !ok {
		log.Printf("completion event %s has no payload; dropping", message.ID)
		c.rdb.XAck(ctx, Stream, group, message.ID)
		return
	}

	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		log.Printf("completion event %s is malformed; dropping: %v", message.ID, err)
		c.rdb.XAck(ctx, Stream, group, message.ID)
		return
	}

	if err := c.handle(ctx, ev); err != nil {
		// Leave the message pending; reclaimPending redelivers it once it has
		// been idle for reclaimMinIdle, and the evaluators are idempotent so
		// a redelivery cannot double-count
		log.Printf("completion event %s failed, will retry: %v", message.ID, err)
		return
	}

	c.rdb.XAck(ctx, Stream, group, message.ID)
}
