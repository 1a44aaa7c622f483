package script

import "fmt"

// DialogueLine is one parsed body line of a conversation node.
type DialogueLine struct {
	Speaker     string   `json:"speaker,omitempty"`
	Text        string   `json:"text,omitempty"`
	Options     []Option `json:"options,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
	ChoicesOnly bool     `json:"choices_only,omitempty"` // no display text, only a choice list
}

// Option is a branching choice offered by a line. Destination is a node
// title, or the reserved terminator handled by the session layer.
type Option struct {
	Key         string `json:"key"`
	Destination string `json:"destination"`
}

// Action is a side-effect marker embedded in a line, dispatched to
// registered handlers when the line is displayed.
type Action struct {
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Issue is a non-fatal parse diagnostic. Malformed fragments are dropped
// and reported; parsing always continues.
type Issue struct {
	Line     int    `json:"line,omitempty"` // 1-based body line, 0 when not applicable
	Fragment string `json:"fragment,omitempty"`
	Message  string `json:"message"`
}

func (i Issue) String() string {
	if i.Line > 0 {
		return fmt.Sprintf("line %d: %s: %q", i.Line, i.Message, i.Fragment)
	}
	return fmt.Sprintf("%s: %q", i.Message, i.Fragment)
}
