package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/speaker"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

// MockStorage is a mock implementation of Storage for testing
type MockStorage struct {
	mu        sync.RWMutex
	sessions  map[uuid.UUID]*state.SessionState
	scripts   map[string][]conversation.Record
	speakers  map[string]*speaker.Spec
	matching  conversation.MatchMode
	pingError error
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		sessions: make(map[uuid.UUID]*state.SessionState),
		scripts:  make(map[string][]conversation.Record),
		speakers: make(map[string]*speaker.Spec),
	}
}

// SetMatching configures the title match mode used when parsing graphs
func (m *MockStorage) SetMatching(mode conversation.MatchMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matching = mode
}

// SetPingSuccess configures the mock to succeed on ping
func (m *MockStorage) SetPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = nil
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pingError != nil {
		return m.pingError
	}
	return nil
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	// Mock close doesn't need to do anything
	return nil
}

// SaveSession mocks saving a session snapshot
func (m *MockStorage) SaveSession(ctx context.Context, id uuid.UUID, s *state.SessionState) error {
	if s == nil {
		return errors.New("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = s
	return nil
}

// LoadSession mocks loading a session snapshot
func (m *MockStorage) LoadSession(ctx context.Context, id uuid.UUID) (*state.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, exists := m.sessions[id]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return s, nil
}

// DeleteSession mocks deleting a session snapshot
func (m *MockStorage) DeleteSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// ListScripts mocks listing script filenames
func (m *MockStorage) ListScripts(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.scripts))
	for filename := range m.scripts {
		result = append(result, filename)
	}
	sort.Strings(result)
	return result, nil
}

// GetScript mocks getting a script's raw records by filename
func (m *MockStorage) GetScript(ctx context.Context, filename string) ([]conversation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.scripts[filename]
	if !exists {
		return nil, fmt.Errorf("script %q: %w", filename, ErrNotFound)
	}
	return records, nil
}

// GetGraph mocks getting a parsed graph. The mock parses on every call
// rather than caching, so InvalidateScript is a no-op here.
func (m *MockStorage) GetGraph(ctx context.Context, filename string) (*conversation.Graph, []conversation.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.scripts[filename]
	if !exists {
		return nil, nil, fmt.Errorf("script %q: %w", filename, ErrNotFound)
	}
	graph, issues := conversation.Load(records, m.matching)
	return graph, issues, nil
}

// InvalidateScript mocks dropping a cached parse
func (m *MockStorage) InvalidateScript(filename string) {
	// Nothing cached in the mock
}

// AddScript adds a script to the mock storage (for testing)
func (m *MockStorage) AddScript(filename string, records []conversation.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[filename] = records
}

// ListSpeakers mocks listing speaker IDs
func (m *MockStorage) ListSpeakers(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.speakers))
	for id := range m.speakers {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}

// GetSpeaker mocks getting a speaker spec by ID
func (m *MockStorage) GetSpeaker(ctx context.Context, speakerID string) (*speaker.Spec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spec, exists := m.speakers[speakerID]
	if !exists {
		return nil, fmt.Errorf("speaker %q: %w", speakerID, ErrNotFound)
	}
	return spec, nil
}

// AddSpeaker adds a speaker spec to the mock storage (for testing)
func (m *MockStorage) AddSpeaker(speakerID string, spec *speaker.Spec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakers[speakerID] = spec
}
