package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSessionCreated   EventType = "session.created"
	EventTypeNodeEntered      EventType = "node.entered"
	EventTypeLineDisplayed    EventType = "line.displayed"
	EventTypeActionDispatched EventType = "action.dispatched"
	EventTypeConversationOver EventType = "conversation.over"
	EventTypeSessionClosed    EventType = "session.closed"
)

// Event represents a generic event structure
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// ChannelFor returns the pub/sub channel carrying one session's events
func ChannelFor(sessionID uuid.UUID) string {
	return fmt.Sprintf("dialogue-events:%s", sessionID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSessionCreated publishes a session.created event
func (b *Broadcaster) PublishSessionCreated(ctx context.Context, sessionID uuid.UUID, script string) error {
	event := Event{
		Type:      EventTypeSessionCreated,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"script": script,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// PublishNodeEntered publishes a node.entered event
func (b *Broadcaster) PublishNodeEntered(ctx context.Context, sessionID uuid.UUID, node string) error {
	event := Event{
		Type:      EventTypeNodeEntered,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"node": node,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// PublishLineDisplayed publishes a line.displayed event
func (b *Broadcaster) PublishLineDisplayed(ctx context.Context, sessionID uuid.UUID, view state.LineView) error {
	event := Event{
		Type:      EventTypeLineDisplayed,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"node": view.Node,
			"line": view.Line,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// PublishActionDispatched publishes an action.dispatched event
func (b *Broadcaster) PublishActionDispatched(ctx context.Context, action *queue.ActionEvent) error {
	event := Event{
		Type:      EventTypeActionDispatched,
		SessionID: action.SessionID.String(),
		Data: map[string]interface{}{
			"action_id": action.ID.String(),
			"node":      action.Node,
			"tag":       action.Tag,
			"param":     action.Param,
		},
	}
	return b.publishToSession(ctx, action.SessionID, event)
}

// PublishConversationOver publishes a conversation.over event
func (b *Broadcaster) PublishConversationOver(ctx context.Context, sessionID uuid.UUID, node string) error {
	event := Event{
		Type:      EventTypeConversationOver,
		SessionID: sessionID.String(),
		Data: map[string]interface{}{
			"node": node,
		},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// PublishSessionClosed publishes a session.closed event
func (b *Broadcaster) PublishSessionClosed(ctx context.Context, sessionID uuid.UUID) error {
	event := Event{
		Type:      EventTypeSessionClosed,
		SessionID: sessionID.String(),
		Data:      map[string]interface{}{},
	}
	return b.publishToSession(ctx, sessionID, event)
}

// publishToSession publishes an event to the session-specific channel
func (b *Broadcaster) publishToSession(ctx context.Context, sessionID uuid.UUID, event Event) error {
	channel := ChannelFor(sessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event", event)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)

	return nil
}
