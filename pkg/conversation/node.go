package conversation

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

// EndToken is the reserved option destination that terminates a
// conversation instead of naming a node. It is matched exactly, even when
// the graph folds title case.
const EndToken = "END"

// ErrNoLines marks activation of a node whose body parsed to zero lines.
// That is a content bug, not a playable state.
var ErrNoLines = errors.New("node has no lines")

// Node is one titled block of dialogue lines with a playback cursor.
// The cursor belongs to the node, so sessions that could run concurrently
// must each work on a Clone.
type Node struct {
	Title string                `json:"title"`
	Tags  map[string][]string   `json:"tags,omitempty"`
	Lines []script.DialogueLine `json:"lines,omitempty"`

	cursor int
}

// Reset moves the cursor back to the first line.
func (n *Node) Reset() {
	n.cursor = 0
}

// Current returns the line under the cursor. A node with no lines, or a
// cursor parked past the last line, has no current line; the error names
// the node so content bugs surface immediately.
func (n *Node) Current() (*script.DialogueLine, error) {
	if len(n.Lines) == 0 {
		return nil, fmt.Errorf("node %q: %w", n.Title, ErrNoLines)
	}
	if n.cursor >= len(n.Lines) {
		return nil, fmt.Errorf("node %q: cursor %d is past the last line", n.Title, n.cursor)
	}
	return &n.Lines[n.cursor], nil
}

// HasNext reports whether a line follows the cursor.
func (n *Node) HasNext() bool {
	return n.cursor+1 < len(n.Lines)
}

// Advance moves the cursor to the next line and returns it. On exhaustion
// it returns false and leaves the cursor one past the last index; callers
// should check HasNext or the returned flag, not both.
func (n *Node) Advance() (*script.DialogueLine, bool) {
	if n.cursor < len(n.Lines) {
		n.cursor++
	}
	if n.cursor >= len(n.Lines) {
		return nil, false
	}
	return &n.Lines[n.cursor], true
}

// Seek places the cursor on the given line index. An out-of-range index
// leaves the cursor unchanged.
func (n *Node) Seek(i int) error {
	if i < 0 || i >= len(n.Lines) {
		return fmt.Errorf("node %q: seek %d out of range [0,%d)", n.Title, i, len(n.Lines))
	}
	n.cursor = i
	return nil
}

// Cursor returns the current cursor index.
func (n *Node) Cursor() int {
	return n.cursor
}

// Tag returns the values recorded for a tag key, or nil.
func (n *Node) Tag(key string) []string {
	return n.Tags[key]
}

// HasTag reports whether the node carries a tag key, with or without values.
func (n *Node) HasTag(key string) bool {
	_, ok := n.Tags[key]
	return ok
}

// Clone returns a deep copy with a fresh cursor.
func (n *Node) Clone() *Node {
	c := &Node{Title: n.Title}
	if n.Tags != nil {
		c.Tags = make(map[string][]string, len(n.Tags))
		for k, v := range n.Tags {
			c.Tags[k] = append([]string(nil), v...)
		}
	}
	if n.Lines != nil {
		c.Lines = make([]script.DialogueLine, len(n.Lines))
		for i, line := range n.Lines {
			line.Options = append([]script.Option(nil), line.Options...)
			line.Actions = append([]script.Action(nil), line.Actions...)
			c.Lines[i] = line
		}
	}
	return c
}
