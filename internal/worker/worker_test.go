package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/jwebster45206/dialogue-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/dialogue-engine/pkg/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupTestWorker(t *testing.T) (*Worker, *queue.ActionQueue, *queue.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	aq := queue.NewActionQueue(client, testLogger())
	w := New(aq, client.GetRedisClient(), testLogger(), "worker-test")
	return w, aq, client
}

func TestWorker_RelaysAction(t *testing.T) {
	w, aq, client := setupTestWorker(t)
	ctx := context.Background()
	sessionID := uuid.New()

	// Subscribe before the worker can publish
	sub := client.GetRedisClient().Subscribe(ctx, events.ChannelFor(sessionID))
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	go func() { _ = w.Start() }()
	defer w.Stop()

	action := queuePkg.NewActionEvent(sessionID, "Gate", "alert", "north")
	if err := aq.Enqueue(ctx, action); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var event events.Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("Failed to unmarshal event: %v", err)
		}
		if event.Type != events.EventTypeActionDispatched {
			t.Errorf("Expected action.dispatched, got %q", event.Type)
		}
		if event.SessionID != sessionID.String() {
			t.Errorf("Expected session %s, got %s", sessionID, event.SessionID)
		}
		if event.Data["tag"] != "alert" || event.Data["param"] != "north" || event.Data["node"] != "Gate" {
			t.Errorf("Unexpected event data: %v", event.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for relayed action")
	}

	// The per-session pending list is untouched by the relay
	pending, err := aq.Peek(ctx, sessionID, 0)
	if err != nil {
		t.Fatalf("Peek failed: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("Expected pending action to remain for host drain, got %d", len(pending))
	}
}

func TestWorker_StopTerminatesStart(t *testing.T) {
	w, _, _ := setupTestWorker(t)

	done := make(chan error, 1)
	go func() { done <- w.Start() }()

	time.Sleep(50 * time.Millisecond)
	w.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Worker did not stop")
	}
}
