package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
)

func setupTestStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis, string) {
	t.Helper()

	// Start miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	// Data directory with the layout the storage expects
	dataDir := t.TempDir()
	for _, sub := range []string{"scripts", "speakers"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0o755); err != nil {
			t.Fatalf("Failed to create %s dir: %v", sub, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	store, err := NewRedisStorage("redis://"+mr.Addr(), dataDir, time.Hour, conversation.MatchStrict, logger)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create redis storage: %v", err)
	}

	return store, mr, dataDir
}

func writeScript(t *testing.T, dataDir, name, content string) {
	t.Helper()
	path := filepath.Join(dataDir, "scripts", name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write script %s: %v", name, err)
	}
}

func writeSpeaker(t *testing.T, dataDir, name, content string) {
	t.Helper()
	path := filepath.Join(dataDir, "speakers", name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write speaker %s: %v", name, err)
	}
}

func TestRedisStorage_Ping(t *testing.T) {
	store, mr, _ := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Expected ping to succeed, got: %v", err)
	}
}

func TestNewRedisStorage_InvalidURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := NewRedisStorage("not a url", "", time.Hour, conversation.MatchStrict, logger)
	if err == nil {
		t.Error("Expected error for invalid redis URL")
	}
}
