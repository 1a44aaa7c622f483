package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jwebster45206/dialogue-engine/pkg/speaker"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// Speaker operations (filesystem-backed)

func (r *RedisStorage) GetSpeaker(ctx context.Context, speakerID string) (*speaker.Spec, error) {
	speakerPath := filepath.Join(r.dataDir, "speakers", speakerID+".json")

	data, err := os.ReadFile(speakerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("speaker %q: %w", speakerID, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read speaker file %s: %w", speakerPath, err)
	}

	var spec speaker.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse speaker JSON from %s: %w", speakerPath, err)
	}
	spec.ID = speakerID // Ensure ID is set from filename

	return &spec, nil
}

func (r *RedisStorage) ListSpeakers(ctx context.Context) ([]string, error) {
	speakersPath := filepath.Join(r.dataDir, "speakers")

	entries, err := os.ReadDir(speakersPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read speakers directory: %w", err)
	}

	var speakerIDs []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			speakerID := entry.Name()[:len(entry.Name())-5] // Remove .json extension
			speakerIDs = append(speakerIDs, speakerID)
		}
	}

	return speakerIDs, nil
}
