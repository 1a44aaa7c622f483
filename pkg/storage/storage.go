package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/speaker"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// ErrNotFound marks a script or speaker name that storage cannot resolve.
var ErrNotFound = errors.New("not found")

// Storage defines a unified interface for all storage operations
// This interface combines session persistence (Redis) with resource loading (filesystem)
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Session operations (Redis-backed)
	SaveSession(ctx context.Context, id uuid.UUID, s *state.SessionState) error
	LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	// Script operations (filesystem-backed)
	// GetGraph returns a shared parsed graph plus its load diagnostics;
	// callers that play it must Clone first.
	ListScripts(ctx context.Context) ([]string, error)
	GetScript(ctx context.Context, filename string) ([]conversation.Record, error)
	GetGraph(ctx context.Context, filename string) (*conversation.Graph, []conversation.Issue, error)
	InvalidateScript(filename string)

	// Speaker operations (filesystem-backed)
	ListSpeakers(ctx context.Context) ([]string, error)
	GetSpeaker(ctx context.Context, speakerID string) (*speaker.Spec, error)
}
