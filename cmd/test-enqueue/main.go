package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/internal/services/queue"
	queuePkg "github.com/jwebster45206/dialogue-engine/pkg/queue"
)

func main() {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Connect to Redis
	client, err := queue.NewClient(redisURL, logger)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connected to Redis successfully!")

	aq := queue.NewActionQueue(client, logger)

	sessionID := uuid.MustParse("00000000-0000-0000-0000-000000000001") // Test session ID

	// Enqueue a couple of test actions
	events := []*queuePkg.ActionEvent{
		queuePkg.NewActionEvent(sessionID, "Gate", "alert", "north"),
		queuePkg.NewActionEvent(sessionID, "Gate", "open_gate", ""),
	}

	for _, event := range events {
		if err := aq.Enqueue(ctx, event); err != nil {
			log.Fatal("Failed to enqueue action:", err)
		}
		fmt.Printf("✅ Enqueued action: %s %s(%s)\n", event.ID, event.Tag, event.Param)
	}

	// Check relay depth
	depth, err := aq.RelayDepth(ctx)
	if err != nil {
		log.Fatal("Failed to get relay depth:", err)
	}

	fmt.Printf("\n📊 Relay depth: %d actions\n", depth)
	fmt.Println("\n💡 Now start the worker to see it relay these actions!")
	fmt.Println("   Run: go run cmd/worker/main.go")
}
