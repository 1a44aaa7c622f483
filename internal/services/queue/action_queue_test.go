package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/pkg/queue"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	// Create queue client
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	redisURL := "redis://" + mr.Addr()

	client, err := NewClient(redisURL, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create queue client: %v", err)
	}

	return client, mr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestActionQueue_EnqueueAndDrain(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	sessionID := uuid.New()

	// Enqueue some actions
	tags := []string{"play_sound", "give_item", "set_flag"}
	for _, tag := range tags {
		event := queue.NewActionEvent(sessionID, "Gate", tag, "north")
		if err := aq.Enqueue(ctx, event); err != nil {
			t.Fatalf("Failed to enqueue action: %v", err)
		}
	}

	// Check depth
	depth, err := aq.Depth(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != len(tags) {
		t.Errorf("Expected depth %d, got %d", len(tags), depth)
	}

	// Drain and verify order
	drained, err := aq.Drain(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to drain actions: %v", err)
	}
	if len(drained) != len(tags) {
		t.Fatalf("Expected %d actions, got %d", len(tags), len(drained))
	}
	for i, tag := range tags {
		if drained[i].Tag != tag {
			t.Errorf("Action %d mismatch: expected %q, got %q", i, tag, drained[i].Tag)
		}
		if drained[i].SessionID != sessionID {
			t.Errorf("Action %d has wrong session: %v", i, drained[i].SessionID)
		}
	}

	// Queue should be empty after drain
	depth, err = aq.Depth(ctx, sessionID)
	if err != nil {
		t.Fatalf("Failed to get depth after drain: %v", err)
	}
	if depth != 0 {
		t.Errorf("Expected empty queue, got depth %d", depth)
	}
}

func TestActionQueue_Peek(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	sessionID := uuid.New()

	for _, tag := range []string{"one", "two", "three"} {
		aq.Enqueue(ctx, queue.NewActionEvent(sessionID, "Gate", tag, ""))
	}

	// Peek all
	peeked, err := aq.Peek(ctx, sessionID, 0)
	if err != nil {
		t.Fatalf("Failed to peek: %v", err)
	}
	if len(peeked) != 3 {
		t.Errorf("Expected 3 actions, got %d", len(peeked))
	}

	// Peek should not remove actions
	depth, _ := aq.Depth(ctx, sessionID)
	if depth != 3 {
		t.Errorf("Peek removed actions: expected depth 3, got %d", depth)
	}

	// Peek with limit
	peeked, err = aq.Peek(ctx, sessionID, 2)
	if err != nil {
		t.Fatalf("Failed to peek with limit: %v", err)
	}
	if len(peeked) != 2 {
		t.Errorf("Expected 2 actions, got %d", len(peeked))
	}
}

func TestActionQueue_Clear(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	sessionID := uuid.New()

	aq.Enqueue(ctx, queue.NewActionEvent(sessionID, "Gate", "alert", ""))
	aq.Enqueue(ctx, queue.NewActionEvent(sessionID, "Gate", "alarm", ""))

	if err := aq.Clear(ctx, sessionID); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	depth, _ := aq.Depth(ctx, sessionID)
	if depth != 0 {
		t.Errorf("Expected empty queue after clear, got depth %d", depth)
	}
}

func TestActionQueue_Relay(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	session1 := uuid.New()
	session2 := uuid.New()

	// Actions from different sessions share the relay list
	aq.Enqueue(ctx, queue.NewActionEvent(session1, "Gate", "alert", "north"))
	aq.Enqueue(ctx, queue.NewActionEvent(session2, "Market", "greet", ""))

	depth, err := aq.RelayDepth(ctx)
	if err != nil {
		t.Fatalf("Failed to get relay depth: %v", err)
	}
	if depth != 2 {
		t.Errorf("Expected relay depth 2, got %d", depth)
	}

	// Dequeue in order
	first, err := aq.DequeueRelay(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue relay: %v", err)
	}
	if first == nil || first.Tag != "alert" || first.SessionID != session1 {
		t.Errorf("Unexpected first relay event: %+v", first)
	}

	second, err := aq.DequeueRelay(ctx)
	if err != nil {
		t.Fatalf("Failed to dequeue relay: %v", err)
	}
	if second == nil || second.Tag != "greet" || second.SessionID != session2 {
		t.Errorf("Unexpected second relay event: %+v", second)
	}

	// Empty relay returns nil without error
	third, err := aq.DequeueRelay(ctx)
	if err != nil {
		t.Fatalf("Unexpected error on empty relay: %v", err)
	}
	if third != nil {
		t.Errorf("Expected nil from empty relay, got %+v", third)
	}
}

func TestActionQueue_BlockingDequeueRelay(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	sessionID := uuid.New()

	aq.Enqueue(ctx, queue.NewActionEvent(sessionID, "Gate", "alert", ""))

	event, err := aq.BlockingDequeueRelay(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Failed to dequeue relay: %v", err)
	}
	if event == nil || event.Tag != "alert" {
		t.Errorf("Unexpected relay event: %+v", event)
	}
}

func TestActionQueue_SessionIsolation(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	aq := NewActionQueue(client, testLogger())
	ctx := context.Background()
	session1 := uuid.New()
	session2 := uuid.New()

	aq.Enqueue(ctx, queue.NewActionEvent(session1, "Gate", "alert", ""))
	aq.Enqueue(ctx, queue.NewActionEvent(session1, "Gate", "alarm", ""))
	aq.Enqueue(ctx, queue.NewActionEvent(session2, "Market", "greet", ""))

	depth1, _ := aq.Depth(ctx, session1)
	depth2, _ := aq.Depth(ctx, session2)
	if depth1 != 2 {
		t.Errorf("Session 1 expected depth 2, got %d", depth1)
	}
	if depth2 != 1 {
		t.Errorf("Session 2 expected depth 1, got %d", depth2)
	}

	// Draining session 1 shouldn't affect session 2
	aq.Drain(ctx, session1)
	depth2After, _ := aq.Depth(ctx, session2)
	if depth2After != 1 {
		t.Errorf("Session 2 depth changed after draining session 1: got %d", depth2After)
	}
}
