package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/jwebster45206/dialogue-engine/internal/services/queue"
)

const (
	workerTimeout = 5 * time.Second
)

// Worker relays dispatched actions from the shared relay queue to each
// session's event channel, where SSE subscribers pick them up. Relaying is
// pure fan-out; sessions are never mutated here, so workers need no
// per-session locking and any number of them can run.
type Worker struct {
	id          string
	queue       *queue.ActionQueue
	broadcaster *events.Broadcaster
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(actionQueue *queue.ActionQueue, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	broadcaster := events.NewBroadcaster(redisClient, log)

	return &Worker{
		id:          workerID,
		queue:       actionQueue,
		broadcaster: broadcaster,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins relaying actions from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.relayNextAction(); err != nil {
				w.log.Error("Error relaying action", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// relayNextAction pulls the next action from the relay queue and publishes
// it to the session's event channel
func (w *Worker) relayNextAction() error {
	// Block waiting for the next action (timeout after 5 seconds to check for shutdown)
	ctx, cancel := context.WithTimeout(w.ctx, workerTimeout)
	defer cancel()

	event, err := w.queue.BlockingDequeueRelay(ctx, workerTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			// Shutdown interrupted the blocking pop
			return nil
		}
		return fmt.Errorf("failed to dequeue action: %w", err)
	}

	if event == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}

	w.log.Info("Relaying action",
		"worker_id", w.id,
		"action_id", event.ID.String(),
		"session_id", event.SessionID.String(),
		"tag", event.Tag,
	)

	if err := w.broadcaster.PublishActionDispatched(w.ctx, event); err != nil {
		return fmt.Errorf("failed to publish action event: %w", err)
	}
	return nil
}
