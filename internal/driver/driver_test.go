package driver

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/internal/services/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/session"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) *storage.MockStorage {
	t.Helper()
	store := storage.NewMockStorage()
	store.AddScript("gate.json", []conversation.Record{
		{
			Title: "Gate",
			Tags:  "start[]",
			Body: "Guard: Halt! | actions([alert|north])\n" +
				"Guard: State your business. | options([[Trading|Market]], [[Leaving|END]])",
		},
		{
			Title: "Market",
			Body:  "Eve: Just browsing.\nTrader: Browse faster.",
		},
	})
	return store
}

func testDriver(t *testing.T) (*Driver, *storage.MockStorage) {
	t.Helper()
	store := testStore(t)
	return New(store, nil, nil, testLogger()), store
}

func TestDriver_CreateSession(t *testing.T) {
	d, store := testDriver(t)
	ctx := context.Background()

	st, line, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if st.Status != state.StatusActive {
		t.Errorf("Expected active status, got %q", st.Status)
	}
	if st.NodeTitle != "Gate" {
		t.Errorf("Expected default start Gate, got %q", st.NodeTitle)
	}
	if st.Cursor != 0 {
		t.Errorf("Expected cursor 0, got %d", st.Cursor)
	}
	if line == nil || line.Node != "Gate" || line.Line.Text != "Halt!" {
		t.Errorf("Unexpected first line: %+v", line)
	}

	// Snapshot is persisted
	saved, err := store.LoadSession(ctx, st.ID)
	if err != nil || saved == nil {
		t.Fatalf("Expected persisted session, got %v %v", saved, err)
	}
	if len(saved.Transcript) != 1 || saved.Transcript[0].Kind != "line" {
		t.Errorf("Expected one line transcript entry, got %+v", saved.Transcript)
	}
}

func TestDriver_CreateSessionExplicitStart(t *testing.T) {
	d, _ := testDriver(t)

	st, line, err := d.CreateSession(context.Background(), "gate.json", "Market", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if st.NodeTitle != "Market" {
		t.Errorf("Expected Market, got %q", st.NodeTitle)
	}
	if line == nil || line.Line.Text != "Just browsing." {
		t.Errorf("Unexpected line: %+v", line)
	}
}

func TestDriver_CreateSessionUnknownScript(t *testing.T) {
	d, _ := testDriver(t)

	_, _, err := d.CreateSession(context.Background(), "missing.json", "", nil, false)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDriver_CreateSessionUnknownStart(t *testing.T) {
	d, _ := testDriver(t)

	_, _, err := d.CreateSession(context.Background(), "gate.json", "Atlantis", nil, false)
	if !errors.Is(err, session.ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got %v", err)
	}
}

func TestDriver_Continue(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	st2, line, err := d.Continue(ctx, st.ID)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if line == nil || line.Line.Text != "State your business." {
		t.Errorf("Unexpected line: %+v", line)
	}
	if st2.Cursor != 1 {
		t.Errorf("Expected cursor 1, got %d", st2.Cursor)
	}
	if len(line.Line.Options) != 2 {
		t.Errorf("Expected 2 options, got %+v", line.Line.Options)
	}
}

func TestDriver_ContinueEndsConversation(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	// Past the last line the conversation ends
	st2, line, err := d.Continue(ctx, st.ID)
	if err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	if line != nil {
		t.Errorf("Expected no line at end, got %+v", line)
	}
	if st2.Status != state.StatusEnded {
		t.Errorf("Expected ended status, got %q", st2.Status)
	}

	// Ended sessions reject further operations
	if _, _, err := d.Continue(ctx, st.ID); !errors.Is(err, session.ErrEnded) {
		t.Errorf("Expected ErrEnded, got %v", err)
	}
	if _, _, err := d.Choose(ctx, st.ID, "Market"); !errors.Is(err, session.ErrEnded) {
		t.Errorf("Expected ErrEnded, got %v", err)
	}
}

func TestDriver_Choose(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	st2, line, err := d.Choose(ctx, st.ID, "Market")
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if st2.NodeTitle != "Market" {
		t.Errorf("Expected Market, got %q", st2.NodeTitle)
	}
	if st2.Cursor != 0 {
		t.Errorf("Expected cursor reset to 0, got %d", st2.Cursor)
	}
	if line == nil || line.Line.Text != "Just browsing." {
		t.Errorf("Unexpected line: %+v", line)
	}

	// Transcript carries the choice before the displayed line
	kinds := make([]string, 0, len(st2.Transcript))
	for _, e := range st2.Transcript {
		kinds = append(kinds, e.Kind)
	}
	want := []string{"line", "line", "choice", "line"}
	if len(kinds) != len(want) {
		t.Fatalf("Expected %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Transcript entry %d: expected %q, got %q", i, want[i], kinds[i])
		}
	}
}

func TestDriver_ChooseEnd(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	st2, line, err := d.Choose(ctx, st.ID, "END")
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if line != nil {
		t.Errorf("Expected no line on END, got %+v", line)
	}
	if st2.Status != state.StatusEnded {
		t.Errorf("Expected ended status, got %q", st2.Status)
	}
}

func TestDriver_ChooseUnknownDestination(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	_, _, err = d.Choose(ctx, st.ID, "Atlantis")
	if !errors.Is(err, session.ErrUnknownNode) {
		t.Fatalf("Expected ErrUnknownNode, got %v", err)
	}

	// Position is unchanged and the session still works
	got, _, err := d.Get(ctx, st.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.NodeTitle != "Gate" || got.Cursor != 0 || got.Status != state.StatusActive {
		t.Errorf("Expected unchanged position, got %q@%d %q", got.NodeTitle, got.Cursor, got.Status)
	}

	if _, line, err := d.Choose(ctx, st.ID, "Market"); err != nil || line == nil {
		t.Errorf("Expected recovery choose to work, got %v %v", line, err)
	}
}

func TestDriver_ChooseResetsCursor(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "Market", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	// Re-choosing the node starts it over
	st2, line, err := d.Choose(ctx, st.ID, "Market")
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if st2.Cursor != 0 || line.Line.Text != "Just browsing." {
		t.Errorf("Expected reset to first line, got cursor %d line %q", st2.Cursor, line.Line.Text)
	}
}

func TestDriver_ResumeOnChoice(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "Market", nil, true)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	// Re-choosing the active node keeps its cursor
	st2, line, err := d.Choose(ctx, st.ID, "Market")
	if err != nil {
		t.Fatalf("Choose failed: %v", err)
	}
	if st2.Cursor != 1 || line.Line.Text != "Browse faster." {
		t.Errorf("Expected resumed cursor 1, got cursor %d line %q", st2.Cursor, line.Line.Text)
	}
}

func TestDriver_OperationsOnMissingSession(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()
	id := uuid.New()

	if _, _, err := d.Continue(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from Continue, got %v", err)
	}
	if _, _, err := d.Choose(ctx, id, "Market"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from Choose, got %v", err)
	}
	if _, _, err := d.Get(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from Get, got %v", err)
	}
	if err := d.Finish(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from Finish, got %v", err)
	}
	if _, err := d.SetVars(ctx, id, map[string]string{"a": "b"}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from SetVars, got %v", err)
	}
	if _, err := d.DrainActions(ctx, id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from DrainActions, got %v", err)
	}
}

func TestDriver_Vars(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", map[string]string{"player": "Robin"}, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	st2, err := d.SetVars(ctx, st.ID, map[string]string{"mood": "wary", "player": "Quinn"})
	if err != nil {
		t.Fatalf("SetVars failed: %v", err)
	}
	if st2.Vars["player"] != "Quinn" || st2.Vars["mood"] != "wary" {
		t.Errorf("Expected merged vars, got %v", st2.Vars)
	}

	st3, err := d.DeleteVar(ctx, st.ID, "mood")
	if err != nil {
		t.Fatalf("DeleteVar failed: %v", err)
	}
	if _, ok := st3.Vars["mood"]; ok {
		t.Error("Expected mood var removed")
	}
}

func TestDriver_Get(t *testing.T) {
	d, _ := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	// Get is a pure read; repeated calls do not move the cursor
	for i := 0; i < 2; i++ {
		got, line, err := d.Get(ctx, st.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Cursor != 1 {
			t.Errorf("Expected cursor 1, got %d", got.Cursor)
		}
		if line == nil || line.Line.Text != "State your business." {
			t.Errorf("Unexpected line: %+v", line)
		}
	}
}

func TestDriver_Finish(t *testing.T) {
	d, store := testDriver(t)
	ctx := context.Background()

	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := d.Finish(ctx, st.ID); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}

	saved, err := store.LoadSession(ctx, st.ID)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if saved != nil {
		t.Error("Expected snapshot deleted after finish")
	}

	if err := d.Finish(ctx, st.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second finish, got %v", err)
	}
}

func TestDriver_ActionsFlow(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := queue.NewClient("redis://"+mr.Addr(), testLogger())
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	defer client.Close()

	store := testStore(t)
	aq := queue.NewActionQueue(client, testLogger())
	d := New(store, aq, nil, testLogger())
	ctx := context.Background()

	// First Gate line carries actions([alert|north])
	st, _, err := d.CreateSession(ctx, "gate.json", "", nil, false)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	actions, err := d.DrainActions(ctx, st.ID)
	if err != nil {
		t.Fatalf("DrainActions failed: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("Expected 1 action, got %d", len(actions))
	}
	if actions[0].Tag != "alert" || actions[0].Param != "north" || actions[0].Node != "Gate" {
		t.Errorf("Unexpected action: %+v", actions[0])
	}
	if actions[0].SessionID != st.ID {
		t.Errorf("Expected session %v, got %v", st.ID, actions[0].SessionID)
	}

	// The relay list saw the same action
	depth, err := aq.RelayDepth(ctx)
	if err != nil {
		t.Fatalf("RelayDepth failed: %v", err)
	}
	if depth != 1 {
		t.Errorf("Expected relay depth 1, got %d", depth)
	}

	// Drained queues stay drained
	actions, err = d.DrainActions(ctx, st.ID)
	if err != nil {
		t.Fatalf("DrainActions failed: %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("Expected no actions after drain, got %d", len(actions))
	}

	// Lines without actions dispatch nothing
	if _, _, err := d.Continue(ctx, st.ID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}
	actions, _ = d.DrainActions(ctx, st.ID)
	if len(actions) != 0 {
		t.Errorf("Expected no actions for optionless line, got %d", len(actions))
	}
}
