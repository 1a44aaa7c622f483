package state

import (
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

// Session status values, mirroring the session state machine.
const (
	StatusIdle   = "idle"
	StatusActive = "active"
	StatusEnded  = "ended"
	StatusClosed = "closed"
)

// TranscriptLimit caps how many transcript entries a session keeps.
// Older entries fall off; the transcript exists for client redraws, not
// for archival.
const TranscriptLimit = 200

// SessionState is the persisted snapshot of one dialogue session. It
// carries everything needed to rehydrate the state machine between
// requests: which script, which node, where the cursor sits, and the
// replacement variables.
type SessionState struct {
	ID         uuid.UUID         `json:"id"`
	Script     string            `json:"script"`
	NodeTitle  string            `json:"node_title,omitempty"`
	Cursor     int               `json:"cursor"`
	Status     string            `json:"status"`
	Resume     bool              `json:"resume_on_choice,omitempty"` // choice re-entry keeps the destination cursor
	Vars       map[string]string `json:"vars,omitempty"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// NewSessionState creates an idle snapshot for a script.
func NewSessionState(scriptName string) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		ID:        uuid.New(),
		Script:    scriptName,
		Status:    StatusIdle,
		Vars:      make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LineView is the wire form of a displayed line, paired with the node it
// came from.
type LineView struct {
	Node string              `json:"node"`
	Line script.DialogueLine `json:"line"`
}

// TranscriptEntry is one step of a session's visible history.
type TranscriptEntry struct {
	Kind   string    `json:"kind"` // "line", "choice" or "ended"
	Line   *LineView `json:"line,omitempty"`
	Choice string    `json:"choice,omitempty"`
	At     time.Time `json:"at"`
}

// AppendLine records a displayed line in the transcript.
func (s *SessionState) AppendLine(view LineView) {
	s.appendEntry(TranscriptEntry{Kind: "line", Line: &view, At: time.Now().UTC()})
}

// AppendChoice records a selected destination in the transcript.
func (s *SessionState) AppendChoice(destination string) {
	s.appendEntry(TranscriptEntry{Kind: "choice", Choice: destination, At: time.Now().UTC()})
}

// AppendEnded records the end of the conversation in the transcript.
func (s *SessionState) AppendEnded() {
	s.appendEntry(TranscriptEntry{Kind: "ended", At: time.Now().UTC()})
}

func (s *SessionState) appendEntry(e TranscriptEntry) {
	s.Transcript = append(s.Transcript, e)
	if len(s.Transcript) > TranscriptLimit {
		s.Transcript = s.Transcript[len(s.Transcript)-TranscriptLimit:]
	}
}

// Touch bumps the update timestamp.
func (s *SessionState) Touch() {
	s.UpdatedAt = time.Now().UTC()
}
