package conversation

import (
	"fmt"

	"golang.org/x/text/cases"

	"github.com/jwebster45206/dialogue-engine/pkg/script"
)

// MatchMode controls how node titles are compared during lookup.
type MatchMode int

const (
	// MatchStrict compares titles byte for byte.
	MatchStrict MatchMode = iota
	// MatchFold compares titles under Unicode case folding.
	MatchFold
)

// ParseMatchMode maps the config strings "strict" and "fold".
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "", "strict":
		return MatchStrict, nil
	case "fold":
		return MatchFold, nil
	default:
		return MatchStrict, fmt.Errorf("unknown title match mode %q", s)
	}
}

// Issue is a per-node load or lint diagnostic.
type Issue struct {
	Node    string `json:"node,omitempty"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Node == "" {
		return i.Message
	}
	return fmt.Sprintf("node %q: %s", i.Node, i.Message)
}

// Graph is a conversation's nodes addressed by title. Record order is kept
// only for default-start selection and diagnostics; lookup is by title.
type Graph struct {
	nodes    map[string]*Node
	order    []string
	matching MatchMode
	folded   map[string]string // folded title -> canonical title
}

// Load builds a graph from node records. Each record's tag string and body
// are parsed through the line grammar; malformed fragments inside them are
// reported and dropped, never fatal. A duplicate title keeps the later
// record and reports the collision.
func Load(records []Record, matching MatchMode) (*Graph, []Issue) {
	g := &Graph{
		nodes:    make(map[string]*Node, len(records)),
		matching: matching,
	}
	if matching == MatchFold {
		g.folded = make(map[string]string, len(records))
	}

	var issues []Issue
	for _, rec := range records {
		tags, tagIssues := script.ParseTags(rec.Tags)
		lines, bodyIssues := script.ParseBody(rec.Body)
		node := &Node{Title: rec.Title, Tags: tags, Lines: lines}
		for _, iss := range tagIssues {
			issues = append(issues, Issue{Node: rec.Title, Message: "tags: " + iss.String()})
		}
		for _, iss := range bodyIssues {
			issues = append(issues, Issue{Node: rec.Title, Message: iss.String()})
		}

		if _, dup := g.nodes[node.Title]; dup {
			issues = append(issues, Issue{Node: node.Title, Message: "duplicate title, later record replaces earlier"})
		} else {
			g.order = append(g.order, node.Title)
		}
		g.nodes[node.Title] = node

		if g.folded != nil {
			key := foldTitle(node.Title)
			if prev, ok := g.folded[key]; ok && prev != node.Title {
				issues = append(issues, Issue{Node: node.Title, Message: fmt.Sprintf("title collides with %q under case folding", prev)})
			}
			g.folded[key] = node.Title
		}
	}
	return g, issues
}

// Node returns the node for a title, honoring the graph's match mode.
func (g *Graph) Node(title string) (*Node, bool) {
	if n, ok := g.nodes[title]; ok {
		return n, true
	}
	if g.matching == MatchFold {
		if canon, ok := g.folded[foldTitle(title)]; ok {
			return g.nodes[canon], true
		}
	}
	return nil, false
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Titles returns node titles in record order.
func (g *Graph) Titles() []string {
	return append([]string(nil), g.order...)
}

// Matching returns the graph's title match mode.
func (g *Graph) Matching() MatchMode {
	return g.matching
}

// DefaultStart returns the first node tagged "start", falling back to the
// first record. Empty graphs return "".
func (g *Graph) DefaultStart() string {
	for _, title := range g.order {
		if g.nodes[title].HasTag("start") {
			return title
		}
	}
	if len(g.order) > 0 {
		return g.order[0]
	}
	return ""
}

// Clone returns a graph whose nodes are deep copies with fresh cursors.
// Sessions clone the shared parse of a script before playing it.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:    make(map[string]*Node, len(g.nodes)),
		order:    append([]string(nil), g.order...),
		matching: g.matching,
	}
	for title, n := range g.nodes {
		c.nodes[title] = n.Clone()
	}
	if g.folded != nil {
		c.folded = make(map[string]string, len(g.folded))
		for k, v := range g.folded {
			c.folded[k] = v
		}
	}
	return c
}

// Lint reports static problems a playthrough would hit: option
// destinations that name no node, nodes with no lines, and nodes no option
// path reaches from the default start. Hosts may still start any node
// directly, so unreachable nodes are advisory.
func (g *Graph) Lint() []Issue {
	var issues []Issue

	for _, title := range g.order {
		node := g.nodes[title]
		if len(node.Lines) == 0 {
			issues = append(issues, Issue{Node: title, Message: "node has no lines"})
		}
		for _, line := range node.Lines {
			for _, opt := range line.Options {
				if opt.Destination == EndToken {
					continue
				}
				if _, ok := g.Node(opt.Destination); !ok {
					issues = append(issues, Issue{Node: title, Message: fmt.Sprintf("option %q points at unknown node %q", opt.Key, opt.Destination)})
				}
			}
		}
	}

	start := g.DefaultStart()
	if start == "" {
		return issues
	}
	reached := make(map[string]bool, len(g.nodes))
	queue := []string{start}
	for len(queue) > 0 {
		title := queue[0]
		queue = queue[1:]
		node, ok := g.Node(title)
		if !ok || reached[node.Title] {
			continue
		}
		reached[node.Title] = true
		for _, line := range node.Lines {
			for _, opt := range line.Options {
				if opt.Destination != EndToken {
					queue = append(queue, opt.Destination)
				}
			}
		}
	}
	for _, title := range g.order {
		if !reached[title] {
			issues = append(issues, Issue{Node: title, Message: fmt.Sprintf("not reachable from start node %q", start)})
		}
	}
	return issues
}

func foldTitle(s string) string {
	return cases.Fold().String(s)
}
