package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActionEvent is one dispatched script action traveling through Redis:
// pushed when a displayed line carries the action, drained by the host
// boundary and relayed to event subscribers by the worker.
type ActionEvent struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Node      string    `json:"node,omitempty"`
	Tag       string    `json:"tag"`
	Param     string    `json:"param,omitempty"`
	QueuedAt  time.Time `json:"queued_at"`
}

// NewActionEvent stamps an action with an id and queue time.
func NewActionEvent(sessionID uuid.UUID, node, tag, param string) *ActionEvent {
	return &ActionEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		Node:      node,
		Tag:       tag,
		Param:     param,
		QueuedAt:  time.Now().UTC(),
	}
}

// MarshalJSON serializes the event for Redis storage
func (e *ActionEvent) MarshalJSON() ([]byte, error) {
	type Alias ActionEvent
	return json.Marshal(&struct {
		ID        string `json:"id"`
		SessionID string `json:"session_id"`
		*Alias
	}{
		ID:        e.ID.String(),
		SessionID: e.SessionID.String(),
		Alias:     (*Alias)(e),
	})
}

// UnmarshalJSON deserializes the event from JSON in Redis
func (e *ActionEvent) UnmarshalJSON(data []byte) error {
	type Alias ActionEvent
	aux := &struct {
		ID        string `json:"id"`
		SessionID string `json:"session_id"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := uuid.Parse(aux.ID)
	if err != nil {
		return err
	}
	sessionID, err := uuid.Parse(aux.SessionID)
	if err != nil {
		return err
	}

	e.ID = id
	e.SessionID = sessionID
	return nil
}

// ToJSON converts the event to JSON bytes for Redis
func (e *ActionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON parses an event from JSON bytes
func FromJSON(data []byte) (*ActionEvent, error) {
	var event ActionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
