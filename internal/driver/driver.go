package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/internal/services/events"
	"github.com/jwebster45206/dialogue-engine/internal/services/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	queuePkg "github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/script"
	"github.com/jwebster45206/dialogue-engine/pkg/session"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// ErrSessionNotFound marks session ids with no stored snapshot.
var ErrSessionNotFound = errors.New("session not found")

// Driver runs dialogue sessions across stateless requests. Each operation
// loads the session snapshot, rebuilds the state machine over a clone of
// the script's shared graph, applies one operation, and persists the
// result. Display events and dispatched actions surface through the
// broadcaster and the action queue.
type Driver struct {
	store       storage.Storage
	actions     *queue.ActionQueue
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// New creates a driver. The action queue and broadcaster are optional;
// a nil value disables that output.
func New(store storage.Storage, actions *queue.ActionQueue, broadcaster *events.Broadcaster, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		store:       store,
		actions:     actions,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// opRecorder captures what one operation surfaced: the displayed line,
// whether the conversation ended, and the actions dispatched.
type opRecorder struct {
	line    *state.LineView
	over    bool
	actions []*queuePkg.ActionEvent
}

// wire subscribes the snapshot-and-publish handler plus a relay action
// binding for every tag the graph can dispatch. Creation and rehydration
// share this path so each request sees the same registry lifecycle.
func (d *Driver) wire(ctx context.Context, sess *session.Session, st *state.SessionState, graph *conversation.Graph) *opRecorder {
	rec := &opRecorder{}

	sess.AddHandler(&session.HandlerFuncs{
		OnNodeEntered: func(node *conversation.Node) {
			st.NodeTitle = node.Title
			if d.broadcaster != nil {
				if err := d.broadcaster.PublishNodeEntered(ctx, st.ID, node.Title); err != nil {
					d.logger.Warn("Failed to publish node.entered", "error", err)
				}
			}
		},
		OnLineDisplayed: func(line *script.DialogueLine) {
			node := sess.ActiveNode()
			st.NodeTitle = node.Title
			st.Cursor = node.Cursor()
			st.Status = state.StatusActive
			view := state.LineView{Node: node.Title, Line: *line}
			rec.line = &view
			st.AppendLine(view)
			if d.broadcaster != nil {
				if err := d.broadcaster.PublishLineDisplayed(ctx, st.ID, view); err != nil {
					d.logger.Warn("Failed to publish line.displayed", "error", err)
				}
			}
		},
		OnConversationOver: func() {
			rec.over = true
			st.Status = state.StatusEnded
			st.AppendEnded()
			if d.broadcaster != nil {
				if err := d.broadcaster.PublishConversationOver(ctx, st.ID, st.NodeTitle); err != nil {
					d.logger.Warn("Failed to publish conversation.over", "error", err)
				}
			}
		},
		OnClosed: func() {
			st.Status = state.StatusClosed
			if d.broadcaster != nil {
				if err := d.broadcaster.PublishSessionClosed(ctx, st.ID); err != nil {
					d.logger.Warn("Failed to publish session.closed", "error", err)
				}
			}
		},
	})

	for _, tag := range actionTags(graph) {
		tag := tag
		sess.RegisterAction(tag, "relay", func(param string) {
			node := ""
			if n := sess.ActiveNode(); n != nil {
				node = n.Title
			}
			rec.actions = append(rec.actions, queuePkg.NewActionEvent(st.ID, node, tag, param))
		})
	}

	return rec
}

// actionTags collects the distinct action tags a graph can dispatch, in
// node and line order.
func actionTags(g *conversation.Graph) []string {
	seen := make(map[string]bool)
	var tags []string
	for _, title := range g.Titles() {
		node, ok := g.Node(title)
		if !ok {
			continue
		}
		for _, line := range node.Lines {
			for _, act := range line.Actions {
				if !seen[act.Tag] {
					seen[act.Tag] = true
					tags = append(tags, act.Tag)
				}
			}
		}
	}
	return tags
}

// flush pushes the operation's dispatched actions onto the queue. Queue
// failures are logged, not returned; the session result already stands.
func (d *Driver) flush(ctx context.Context, rec *opRecorder) {
	if d.actions == nil {
		return
	}
	for _, event := range rec.actions {
		if err := d.actions.Enqueue(ctx, event); err != nil {
			d.logger.Warn("Failed to enqueue action",
				"error", err,
				"session_id", event.SessionID,
				"tag", event.Tag)
		}
	}
}

// CreateSession starts a new session on a script. An empty startNode falls
// back to the script's default start. The returned view is the first
// displayed line.
func (d *Driver) CreateSession(ctx context.Context, scriptName, startNode string, vars map[string]string, resume bool) (*state.SessionState, *state.LineView, error) {
	graph, _, err := d.store.GetGraph(ctx, scriptName)
	if err != nil {
		return nil, nil, err
	}

	st := state.NewSessionState(scriptName)
	st.Resume = resume
	for k, v := range vars {
		st.Vars[k] = v
	}

	if d.broadcaster != nil {
		if err := d.broadcaster.PublishSessionCreated(ctx, st.ID, scriptName); err != nil {
			d.logger.Warn("Failed to publish session.created", "error", err)
		}
	}

	clone := graph.Clone()
	sess := session.New(clone, d.logger)
	sess.ResumeOnChoice = resume
	for k, v := range st.Vars {
		sess.SetVar(k, v)
	}
	rec := d.wire(ctx, sess, st, clone)

	title := startNode
	if title == "" {
		title = clone.DefaultStart()
	}
	if err := sess.Start(title); err != nil {
		return nil, nil, err
	}

	if err := d.store.SaveSession(ctx, st.ID, st); err != nil {
		return nil, nil, err
	}
	d.flush(ctx, rec)

	d.logger.Info("Session created",
		"session_id", st.ID,
		"script", scriptName,
		"node", st.NodeTitle)
	return st, rec.line, nil
}

// rehydrate rebuilds a live session from a snapshot, positioned on the
// saved node and cursor.
func (d *Driver) rehydrate(ctx context.Context, st *state.SessionState) (*session.Session, *opRecorder, error) {
	graph, _, err := d.store.GetGraph(ctx, st.Script)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load script for session: %w", err)
	}

	clone := graph.Clone()
	sess := session.New(clone, d.logger)
	sess.ResumeOnChoice = st.Resume
	for k, v := range st.Vars {
		sess.SetVar(k, v)
	}
	rec := d.wire(ctx, sess, st, clone)

	if st.Status == state.StatusActive && st.NodeTitle != "" {
		if err := sess.Restore(st.NodeTitle, st.Cursor); err != nil {
			return nil, nil, fmt.Errorf("failed to restore session position: %w", err)
		}
	}
	return sess, rec, nil
}

// loadActive fetches a snapshot that can still accept operations.
func (d *Driver) loadActive(ctx context.Context, id uuid.UUID) (*state.SessionState, error) {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrSessionNotFound
	}
	switch st.Status {
	case state.StatusEnded:
		return nil, session.ErrEnded
	case state.StatusClosed:
		return nil, session.ErrClosed
	}
	return st, nil
}

// Continue advances the session one line, or ends the conversation when
// the active node is out of lines. The returned view is nil when this
// operation ended the conversation.
func (d *Driver) Continue(ctx context.Context, id uuid.UUID) (*state.SessionState, *state.LineView, error) {
	st, err := d.loadActive(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sess, rec, err := d.rehydrate(ctx, st)
	if err != nil {
		return nil, nil, err
	}

	if err := sess.Continue(); err != nil {
		return nil, nil, err
	}

	if err := d.store.SaveSession(ctx, st.ID, st); err != nil {
		return nil, nil, err
	}
	d.flush(ctx, rec)
	return st, rec.line, nil
}

// Choose jumps the session to a chosen destination. The reserved END
// destination ends the conversation. An unknown destination leaves the
// stored session unchanged and returns the lookup error.
func (d *Driver) Choose(ctx context.Context, id uuid.UUID, destination string) (*state.SessionState, *state.LineView, error) {
	st, err := d.loadActive(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sess, rec, err := d.rehydrate(ctx, st)
	if err != nil {
		return nil, nil, err
	}

	st.AppendChoice(destination)
	if err := sess.Choose(destination); err != nil {
		return nil, nil, err
	}

	if err := d.store.SaveSession(ctx, st.ID, st); err != nil {
		return nil, nil, err
	}
	d.flush(ctx, rec)
	return st, rec.line, nil
}

// SetVars merges replacement variables into the session.
func (d *Driver) SetVars(ctx context.Context, id uuid.UUID, vars map[string]string) (*state.SessionState, error) {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrSessionNotFound
	}

	if st.Vars == nil {
		st.Vars = make(map[string]string, len(vars))
	}
	for k, v := range vars {
		st.Vars[k] = v
	}
	if err := d.store.SaveSession(ctx, st.ID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteVar removes one replacement variable.
func (d *Driver) DeleteVar(ctx context.Context, id uuid.UUID, key string) (*state.SessionState, error) {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrSessionNotFound
	}

	delete(st.Vars, key)
	if err := d.store.SaveSession(ctx, st.ID, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Get returns the stored snapshot and, for active sessions, the line under
// the cursor. The shared graph is read by index, never repositioned.
func (d *Driver) Get(ctx context.Context, id uuid.UUID) (*state.SessionState, *state.LineView, error) {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if st == nil {
		return nil, nil, ErrSessionNotFound
	}
	if st.Status != state.StatusActive || st.NodeTitle == "" {
		return st, nil, nil
	}

	graph, _, err := d.store.GetGraph(ctx, st.Script)
	if err != nil {
		d.logger.Warn("Script unavailable for session view",
			"error", err,
			"session_id", st.ID,
			"script", st.Script)
		return st, nil, nil
	}
	node, ok := graph.Node(st.NodeTitle)
	if !ok || st.Cursor < 0 || st.Cursor >= len(node.Lines) {
		return st, nil, nil
	}
	return st, &state.LineView{Node: node.Title, Line: node.Lines[st.Cursor]}, nil
}

// Finish tears a session down: handlers see Closed, the snapshot and any
// pending actions are deleted.
func (d *Driver) Finish(ctx context.Context, id uuid.UUID) error {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return ErrSessionNotFound
	}

	sess, _, err := d.rehydrate(ctx, st)
	if err != nil {
		// The script may be gone; the session still has to close.
		d.logger.Warn("Finishing session without rehydration",
			"error", err,
			"session_id", st.ID)
		if d.broadcaster != nil {
			if err := d.broadcaster.PublishSessionClosed(ctx, st.ID); err != nil {
				d.logger.Warn("Failed to publish session.closed", "error", err)
			}
		}
	} else {
		sess.Finish()
	}

	if d.actions != nil {
		if err := d.actions.Clear(ctx, st.ID); err != nil {
			d.logger.Warn("Failed to clear pending actions", "error", err, "session_id", st.ID)
		}
	}
	if err := d.store.DeleteSession(ctx, st.ID); err != nil {
		return err
	}

	d.logger.Info("Session finished", "session_id", st.ID)
	return nil
}

// DrainActions removes and returns the session's pending actions in
// dispatch order.
func (d *Driver) DrainActions(ctx context.Context, id uuid.UUID) ([]*queuePkg.ActionEvent, error) {
	st, err := d.store.LoadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrSessionNotFound
	}
	if d.actions == nil {
		return []*queuePkg.ActionEvent{}, nil
	}
	return d.actions.Drain(ctx, id)
}
