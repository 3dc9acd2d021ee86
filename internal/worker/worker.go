// Package worker applies queued usage events to the story table. It is the
// durable half of the analytics pipeline: the API enqueues increments
// fire-and-forget, and this worker folds them into the running counters.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"adventure-engine/internal/services/queue"
	"adventure-engine/internal/storage"
	"adventure-engine/pkg/story"
)

const (
	pollInterval = 2 * time.Second
	applyTimeout = 10 * time.Second
	batchSize    = 100
)

// Worker drains the usage event queue and applies counter increments.
type Worker struct {
	id     string
	queue  *queue.UsageQueue
	store  storage.StoryStore
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new worker instance
func New(usageQueue *queue.UsageQueue, store storage.StoryStore, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:     workerID,
		queue:  usageQueue,
		store:  store,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins draining the queue. Blocks until Stop is called.
func (w *Worker) Start() error {
	w.log.Info("Usage worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Usage worker shutting down", "worker_id", w.id)
			return nil
		default:
			applied, err := w.drainOnce()
			if err != nil {
				w.log.Error("Error applying usage events", "error", err, "worker_id", w.id)
			}
			if applied == 0 {
				select {
				case <-w.ctx.Done():
				case <-time.After(pollInterval):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Usage worker stop requested", "worker_id", w.id)
	w.cancel()
}

// drainOnce pulls one batch off the queue, coalesces deltas per slug and
// applies them. Returns the number of events consumed.
func (w *Worker) drainOnce() (int, error) {
	ctx, cancel := context.WithTimeout(w.ctx, applyTimeout)
	defer cancel()

	events, err := w.queue.Dequeue(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	if err := ApplyEvents(ctx, w.store, w.log, events); err != nil {
		return len(events), err
	}

	w.log.Debug("Applied usage events", "count", len(events), "worker_id", w.id)
	return len(events), nil
}

// ApplyEvents coalesces events per slug and increments the counters. An
// unknown slug is logged and skipped; its events are lost, consistent with
// the best-effort delivery contract.
func ApplyEvents(ctx context.Context, store storage.StoryStore, log *slog.Logger, events []story.UsageEvent) error {
	totals := make(map[string]story.Usage)
	for _, ev := range events {
		totals[ev.Slug] = totals[ev.Slug].Add(ev.Delta)
	}

	var firstErr error
	for slug, delta := range totals {
		if err := store.IncrementUsage(ctx, slug, delta); err != nil {
			log.Warn("Failed to increment usage", "story", slug, "error", err)
			if firstErr == nil && err != storage.ErrNotFound {
				firstErr = err
			}
		}
	}
	return firstErr
}
