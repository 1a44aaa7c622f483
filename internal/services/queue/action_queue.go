package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/dialogue-engine/pkg/queue"
)

// relayKey is the global list every dispatched action lands on. The relay
// worker drains it and republishes to event subscribers.
const relayKey = "action-relay"

// ActionQueue manages dispatched script actions per session. Each session
// has a pending list the host drains in dispatch order; every action is
// also appended to the global relay list.
type ActionQueue struct {
	client *Client
	logger *slog.Logger
}

// NewActionQueue creates a new action queue service
func NewActionQueue(client *Client, logger *slog.Logger) *ActionQueue {
	return &ActionQueue{
		client: client,
		logger: logger,
	}
}

// actionKey returns the Redis key for a session's pending action list
func actionKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("actions:%s", sessionID.String())
}

// Enqueue appends an action to the session's pending list and to the
// global relay list
func (aq *ActionQueue) Enqueue(ctx context.Context, event *queue.ActionEvent) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize action event: %w", err)
	}

	key := actionKey(event.SessionID)
	if err := aq.client.rdb.RPush(ctx, key, data).Err(); err != nil {
		aq.logger.Error("Failed to enqueue action",
			"error", err,
			"session_id", event.SessionID,
			"tag", event.Tag)
		return fmt.Errorf("failed to enqueue action: %w", err)
	}

	if err := aq.client.rdb.RPush(ctx, relayKey, data).Err(); err != nil {
		aq.logger.Error("Failed to enqueue action for relay",
			"error", err,
			"session_id", event.SessionID,
			"tag", event.Tag)
		return fmt.Errorf("failed to enqueue action for relay: %w", err)
	}

	aq.logger.Debug("Enqueued action",
		"session_id", event.SessionID,
		"tag", event.Tag,
		"param", event.Param)
	return nil
}

// Drain removes and returns all pending actions for a session, oldest
// first
func (aq *ActionQueue) Drain(ctx context.Context, sessionID uuid.UUID) ([]*queue.ActionEvent, error) {
	key := actionKey(sessionID)

	items, err := aq.client.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		aq.logger.Error("Failed to drain actions",
			"error", err,
			"session_id", sessionID)
		return nil, fmt.Errorf("failed to drain actions: %w", err)
	}

	if len(items) > 0 {
		if err := aq.client.rdb.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to clear action queue after drain: %w", err)
		}
	}

	events := make([]*queue.ActionEvent, 0, len(items))
	for _, item := range items {
		event, err := queue.FromJSON([]byte(item))
		if err != nil {
			return nil, fmt.Errorf("failed to parse action event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Peek returns pending actions without removing them
func (aq *ActionQueue) Peek(ctx context.Context, sessionID uuid.UUID, limit int) ([]*queue.ActionEvent, error) {
	key := actionKey(sessionID)

	end := int64(limit - 1)
	if limit <= 0 {
		end = -1 // Get all
	}
	items, err := aq.client.rdb.LRange(ctx, key, 0, end).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to peek actions: %w", err)
	}

	events := make([]*queue.ActionEvent, 0, len(items))
	for _, item := range items {
		event, err := queue.FromJSON([]byte(item))
		if err != nil {
			return nil, fmt.Errorf("failed to parse action event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Clear removes all pending actions for a session
func (aq *ActionQueue) Clear(ctx context.Context, sessionID uuid.UUID) error {
	key := actionKey(sessionID)
	if err := aq.client.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to clear action queue: %w", err)
	}
	aq.logger.Debug("Cleared action queue", "session_id", sessionID)
	return nil
}

// Depth returns the number of pending actions for a session
func (aq *ActionQueue) Depth(ctx context.Context, sessionID uuid.UUID) (int, error) {
	count, err := aq.client.rdb.LLen(ctx, actionKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get action queue depth: %w", err)
	}
	return int(count), nil
}

// DequeueRelay removes and returns the next action from the relay list.
// Returns nil if the list is empty
func (aq *ActionQueue) DequeueRelay(ctx context.Context) (*queue.ActionEvent, error) {
	result, err := aq.client.rdb.LPop(ctx, relayKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Relay list is empty
		}
		return nil, fmt.Errorf("failed to dequeue relay action: %w", err)
	}

	event, err := queue.FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse action event: %w", err)
	}
	return event, nil
}

// BlockingDequeueRelay blocks until a relay action is available or the
// timeout elapses. A zero timeout waits forever; an elapsed timeout
// returns nil
func (aq *ActionQueue) BlockingDequeueRelay(ctx context.Context, timeout time.Duration) (*queue.ActionEvent, error) {
	result, err := aq.client.rdb.BLPop(ctx, timeout, relayKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Timed out with nothing queued
		}
		return nil, fmt.Errorf("failed to dequeue relay action: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	event, err := queue.FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse action event: %w", err)
	}
	return event, nil
}

// RelayDepth returns the number of actions waiting on the relay list
func (aq *ActionQueue) RelayDepth(ctx context.Context) (int, error) {
	count, err := aq.client.rdb.LLen(ctx, relayKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get relay depth: %w", err)
	}
	return int(count), nil
}
