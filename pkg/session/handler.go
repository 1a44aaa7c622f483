package session

import (
	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

// Handler observes a session's display-facing events. Every registered
// handler fires for every event, in registration order.
type Handler interface {
	// NodeEntered fires when Start activates a node. Choosing an option
	// into a node does not fire it; displays treat a chosen node as a
	// continuation of the running conversation.
	NodeEntered(node *conversation.Node)
	// LineDisplayed fires for each line the session surfaces.
	LineDisplayed(line *script.DialogueLine)
	// ConversationOver fires at most once, when the conversation ends.
	ConversationOver()
	// Closed fires when Finish tears the session down.
	Closed()
}

// HandlerFuncs adapts optional callbacks into a Handler. Nil funcs are
// skipped.
type HandlerFuncs struct {
	OnNodeEntered      func(node *conversation.Node)
	OnLineDisplayed    func(line *script.DialogueLine)
	OnConversationOver func()
	OnClosed           func()
}

func (h *HandlerFuncs) NodeEntered(node *conversation.Node) {
	if h.OnNodeEntered != nil {
		h.OnNodeEntered(node)
	}
}

func (h *HandlerFuncs) LineDisplayed(line *script.DialogueLine) {
	if h.OnLineDisplayed != nil {
		h.OnLineDisplayed(line)
	}
}

func (h *HandlerFuncs) ConversationOver() {
	if h.OnConversationOver != nil {
		h.OnConversationOver()
	}
}

func (h *HandlerFuncs) Closed() {
	if h.OnClosed != nil {
		h.OnClosed()
	}
}

// ActionFunc handles one dispatched action's param string.
type ActionFunc func(param string)

type actionBinding struct {
	id string
	fn ActionFunc
}
