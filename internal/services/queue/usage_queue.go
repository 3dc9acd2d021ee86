package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"adventure-engine/pkg/story"
)

const usageQueueKey = "usage-events"

// UsageQueue is a Redis-backed list of analytics increments. The API
// enqueues fire-and-forget; a worker drains the list and applies the
// deltas to the story table. Delivery is at-most-once per event.
type UsageQueue struct {
	client *Client
}

func NewUsageQueue(client *Client) *UsageQueue {
	return &UsageQueue{
		client: client,
	}
}

// Record appends a usage event to the queue. Implements engine.UsageSink.
func (q *UsageQueue) Record(ctx context.Context, ev story.UsageEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal usage event: %w", err)
	}
	if err := q.client.rdb.RPush(ctx, usageQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue usage event: %w", err)
	}
	return nil
}

// Dequeue removes and returns up to max queued events. An unmarshalable
// entry is dropped rather than wedging the queue.
func (q *UsageQueue) Dequeue(ctx context.Context, max int) ([]story.UsageEvent, error) {
	raw, err := q.client.rdb.LPopCount(ctx, usageQueueKey, max).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue usage events: %w", err)
	}

	events := make([]story.UsageEvent, 0, len(raw))
	for _, item := range raw {
		var ev story.UsageEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			q.client.logger.Warn("Dropping malformed usage event", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Len returns the number of queued events
func (q *UsageQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.rdb.LLen(ctx, usageQueueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get usage queue length: %w", err)
	}
	return n, nil
}
