package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

func TestRedisStorage_GetSpeaker(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeSpeaker(t, dataDir, "anna.json", `{"name": "Anna", "pronouns": "she/her", "role": "shopkeeper", "color": "212"}`)

	spec, err := store.GetSpeaker(context.Background(), "anna")
	if err != nil {
		t.Fatalf("Failed to get speaker: %v", err)
	}

	if spec.ID != "anna" {
		t.Errorf("Expected ID 'anna' from filename, got %q", spec.ID)
	}
	if spec.Name != "Anna" {
		t.Errorf("Expected name 'Anna', got %q", spec.Name)
	}
	if spec.Pronouns != "she/her" {
		t.Errorf("Expected pronouns 'she/her', got %q", spec.Pronouns)
	}
}

func TestRedisStorage_GetSpeakerNotFound(t *testing.T) {
	store, mr, _ := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	_, err := store.GetSpeaker(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected error for missing speaker")
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestRedisStorage_ListSpeakers(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	writeSpeaker(t, dataDir, "anna.json", `{"name": "Anna"}`)
	writeSpeaker(t, dataDir, "guard.json", `{"name": "Gate Guard"}`)
	writeSpeaker(t, dataDir, "readme.md", "not a speaker")

	ids, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("Failed to list speakers: %v", err)
	}

	if len(ids) != 2 {
		t.Fatalf("Expected 2 speakers, got %d: %v", len(ids), ids)
	}
}

func TestRedisStorage_ListSpeakersMissingDir(t *testing.T) {
	store, mr, dataDir := setupTestStorage(t)
	defer mr.Close()
	defer store.Close()

	if err := os.RemoveAll(filepath.Join(dataDir, "speakers")); err != nil {
		t.Fatalf("Failed to remove speakers dir: %v", err)
	}

	ids, err := store.ListSpeakers(context.Background())
	if err != nil {
		t.Fatalf("Expected no error for missing directory, got: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected empty list, got %v", ids)
	}
}
