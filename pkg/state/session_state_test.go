package state

import (
	"encoding/json"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

func TestNewSessionState(t *testing.T) {
	s := NewSessionState("village.json")

	if s.Script != "village.json" {
		t.Errorf("Unexpected script: %q", s.Script)
	}
	if s.Status != StatusIdle {
		t.Errorf("Expected idle status, got %q", s.Status)
	}
	if s.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("Expected a generated id")
	}
	if s.CreatedAt.IsZero() || s.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set")
	}
}

func TestSessionState_Transcript(t *testing.T) {
	s := NewSessionState("village.json")

	s.AppendLine(LineView{Node: "Gate", Line: script.DialogueLine{Speaker: "Guard", Text: "Halt!"}})
	s.AppendChoice("Market")
	s.AppendLine(LineView{Node: "Market", Line: script.DialogueLine{Text: "Stalls everywhere."}})
	s.AppendEnded()

	if len(s.Transcript) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(s.Transcript))
	}
	kinds := []string{"line", "choice", "line", "ended"}
	for i, want := range kinds {
		if s.Transcript[i].Kind != want {
			t.Errorf("Entry %d: expected kind %q, got %q", i, want, s.Transcript[i].Kind)
		}
	}
	if s.Transcript[1].Choice != "Market" {
		t.Errorf("Unexpected choice entry: %+v", s.Transcript[1])
	}
}

func TestSessionState_TranscriptLimit(t *testing.T) {
	s := NewSessionState("village.json")
	for i := 0; i < TranscriptLimit+25; i++ {
		s.AppendLine(LineView{Node: "Gate"})
	}
	if len(s.Transcript) != TranscriptLimit {
		t.Errorf("Expected transcript capped at %d, got %d", TranscriptLimit, len(s.Transcript))
	}
}

func TestSessionState_JSONRoundTrip(t *testing.T) {
	s := NewSessionState("village.json")
	s.NodeTitle = "Gate"
	s.Cursor = 2
	s.Status = StatusActive
	s.Vars["name"] = "Eve"

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var restored SessionState
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if restored.ID != s.ID {
		t.Errorf("ID mismatch: %v vs %v", restored.ID, s.ID)
	}
	if restored.NodeTitle != "Gate" || restored.Cursor != 2 || restored.Status != StatusActive {
		t.Errorf("Unexpected restored state: %+v", restored)
	}
	if restored.Vars["name"] != "Eve" {
		t.Errorf("Unexpected vars: %+v", restored.Vars)
	}
}
