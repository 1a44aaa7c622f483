package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

// State is a session's position in its lifecycle.
type State int

const (
	// StateIdle is a session that has not started a node yet.
	StateIdle State = iota
	// StateInNode is a session actively displaying a node's lines.
	StateInNode
	// StateEnded is a finished conversation; only Finish remains useful.
	StateEnded
	// StateClosed is a torn-down session; all calls are rejected.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInNode:
		return "active"
	case StateEnded:
		return "ended"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNoActiveNode marks Continue or Choose before any node started.
	ErrNoActiveNode = errors.New("no active node")
	// ErrEnded marks calls after the conversation finished.
	ErrEnded = errors.New("conversation is over")
	// ErrClosed marks calls after Finish.
	ErrClosed = errors.New("session is closed")
	// ErrUnknownNode marks a start or choose title the graph cannot resolve.
	ErrUnknownNode = errors.New("unknown node")
)

// Session drives one playthrough of a conversation graph. It is not safe
// for concurrent use; callers own the serialization, and concurrent
// playthroughs take their own graph clone.
type Session struct {
	// ResumeOnChoice keeps a destination node's cursor where an earlier
	// visit left it instead of resetting to the first line. Fixed per
	// session; set it before the first Start.
	ResumeOnChoice bool

	graph    *conversation.Graph
	active   *conversation.Node
	state    State
	handlers []Handler
	actions  map[string][]actionBinding
	vars     map[string]string
	log      *slog.Logger
}

// New creates an idle session over a graph. A nil logger falls back to the
// process default.
func New(graph *conversation.Graph, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		graph:   graph,
		state:   StateIdle,
		actions: make(map[string][]actionBinding),
		vars:    make(map[string]string),
		log:     log,
	}
}

// AddHandler subscribes a display handler. Handlers fire in the order they
// were added.
func (s *Session) AddHandler(h Handler) {
	s.handlers = append(s.handlers, h)
}

// RemoveHandler unsubscribes a previously added handler by identity.
func (s *Session) RemoveHandler(h Handler) {
	for i, have := range s.handlers {
		if have == h {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}

// RegisterAction subscribes fn to an action tag under an id. Ids keep
// their registration order; re-registering an id swaps its func in place,
// and distinct ids under one tag all fire, in order.
func (s *Session) RegisterAction(tag, id string, fn ActionFunc) {
	for i, b := range s.actions[tag] {
		if b.id == id {
			s.actions[tag][i].fn = fn
			return
		}
	}
	s.actions[tag] = append(s.actions[tag], actionBinding{id: id, fn: fn})
}

// RemoveAction drops one id's subscription. Unknown tag or id is a no-op.
func (s *Session) RemoveAction(tag, id string) {
	bindings := s.actions[tag]
	for i, b := range bindings {
		if b.id == id {
			s.actions[tag] = append(bindings[:i], bindings[i+1:]...)
			if len(s.actions[tag]) == 0 {
				delete(s.actions, tag)
			}
			return
		}
	}
}

// SetVar records a replacement variable for {key} tokens. The session only
// stores the map; substitution happens at the display boundary.
func (s *Session) SetVar(key, value string) {
	s.vars[key] = value
}

// RemoveVar deletes a replacement variable.
func (s *Session) RemoveVar(key string) {
	delete(s.vars, key)
}

// Var returns one replacement variable.
func (s *Session) Var(key string) (string, bool) {
	v, ok := s.vars[key]
	return v, ok
}

// Vars returns a copy of the replacement variables.
func (s *Session) Vars() map[string]string {
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.state
}

// ActiveNode returns the node being played, or nil.
func (s *Session) ActiveNode() *conversation.Node {
	return s.active
}

// CurrentLine returns the active node's line under the cursor.
func (s *Session) CurrentLine() (*script.DialogueLine, error) {
	if s.active == nil {
		return nil, ErrNoActiveNode
	}
	return s.active.Current()
}

// Start activates the titled node from its first line. The display
// boundary sees NodeEntered, then LineDisplayed, then the line's actions
// dispatch. An unknown title or an empty node changes nothing and fires
// nothing.
func (s *Session) Start(title string) error {
	if s.state == StateClosed {
		return ErrClosed
	}
	node, ok := s.graph.Node(title)
	if !ok {
		s.log.Warn("start of unknown node", "title", title)
		return fmt.Errorf("start: %w: %q", ErrUnknownNode, title)
	}
	node.Reset()
	line, err := node.Current()
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}

	s.active = node
	s.state = StateInNode
	for _, h := range s.handlers {
		h.NodeEntered(node)
	}
	s.display(line)
	return nil
}

// Continue plays the active node's next line, or ends the conversation
// when the node is out of lines.
func (s *Session) Continue() error {
	switch s.state {
	case StateInNode:
	case StateEnded:
		return ErrEnded
	case StateClosed:
		return ErrClosed
	default:
		return ErrNoActiveNode
	}

	if !s.active.HasNext() {
		s.end()
		return nil
	}
	line, _ := s.active.Advance()
	s.display(line)
	return nil
}

// Choose jumps to an option's destination. The reserved terminator ends
// the conversation unconditionally; any other destination activates that
// node and displays its current line without a NodeEntered notification.
// An unknown destination changes nothing.
func (s *Session) Choose(destination string) error {
	switch s.state {
	case StateInNode:
	case StateEnded:
		return ErrEnded
	case StateClosed:
		return ErrClosed
	default:
		return ErrNoActiveNode
	}

	if destination == conversation.EndToken {
		s.end()
		return nil
	}
	node, ok := s.graph.Node(destination)
	if !ok {
		s.log.Warn("choice of unknown node", "destination", destination)
		return fmt.Errorf("choose: %w: %q", ErrUnknownNode, destination)
	}
	if !s.ResumeOnChoice {
		node.Reset()
	}
	line, err := node.Current()
	if err != nil {
		return fmt.Errorf("choose: %w", err)
	}

	s.active = node
	s.display(line)
	return nil
}

// Restore re-activates a node at a saved cursor without firing display
// events. Hosts resuming a persisted session reposition with it before
// applying the next operation.
func (s *Session) Restore(title string, cursor int) error {
	if s.state == StateClosed {
		return ErrClosed
	}
	node, ok := s.graph.Node(title)
	if !ok {
		return fmt.Errorf("restore: %w: %q", ErrUnknownNode, title)
	}
	if err := node.Seek(cursor); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	s.active = node
	s.state = StateInNode
	return nil
}

// Finish tears the session down from any state: the action registry and
// handler list empty, and handlers get a final Closed. A second Finish is
// a no-op.
func (s *Session) Finish() {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.actions = make(map[string][]actionBinding)
	handlers := s.handlers
	s.handlers = nil
	s.active = nil
	for _, h := range handlers {
		h.Closed()
	}
}

func (s *Session) end() {
	s.state = StateEnded
	for _, h := range s.handlers {
		h.ConversationOver()
	}
}

// display notifies handlers of a surfaced line, then dispatches its
// actions in line order. Tags with no registered handler are skipped.
func (s *Session) display(line *script.DialogueLine) {
	for _, h := range s.handlers {
		h.LineDisplayed(line)
	}
	for _, act := range line.Actions {
		bindings := s.actions[act.Tag]
		if len(bindings) == 0 {
			s.log.Debug("action tag has no handler", "tag", act.Tag)
			continue
		}
		for _, b := range bindings {
			b.fn(act.Param)
		}
	}
}
