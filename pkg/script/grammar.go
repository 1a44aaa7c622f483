package script

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	actionsMarker = "actions("
	optionsMarker = "options("
)

// ParseBody parses a node body into dialogue lines. Lines keep their body
// order. A line starting with "[[" is a trailing option block: its options
// attach to the most recent line instead of producing a new one. Blank
// lines are skipped.
func ParseBody(body string) ([]DialogueLine, []Issue) {
	var lines []DialogueLine
	var issues []Issue

	for i, raw := range strings.Split(body, "\n") {
		ln := i + 1
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}

		if strings.HasPrefix(s, "[[") {
			opts, iss := parseOptionItems(s, ln)
			issues = append(issues, iss...)
			if len(lines) == 0 {
				issues = append(issues, Issue{Line: ln, Fragment: s, Message: "option block has no preceding line"})
				continue
			}
			last := &lines[len(lines)-1]
			last.Options = append(last.Options, opts...)
			if last.Text == "" && len(last.Options) > 0 {
				last.ChoicesOnly = true
			}
			continue
		}

		dl, iss := parseLine(s, ln)
		issues = append(issues, iss...)
		lines = append(lines, dl)
	}
	return lines, issues
}

// parseLine splits a body line into speaker, display text and metadata.
// The prefix before the first colon is the speaker; the suffix after the
// first pipe is metadata holding options(...) and actions(...) groups.
func parseLine(s string, ln int) (DialogueLine, []Issue) {
	var dl DialogueLine
	var issues []Issue

	rest := s
	if idx := strings.Index(rest, ":"); idx >= 0 {
		dl.Speaker = strings.TrimSpace(rest[:idx])
		rest = rest[idx+1:]
	}

	meta := ""
	if idx := strings.Index(rest, "|"); idx >= 0 {
		meta = rest[idx+1:]
		rest = rest[:idx]
	}
	dl.Text = strings.TrimSpace(rest)

	if meta != "" {
		issues = append(issues, parseMeta(meta, &dl, ln)...)
	}
	if dl.Text == "" && len(dl.Options) > 0 {
		dl.ChoicesOnly = true
	}
	return dl, issues
}

// parseMeta extracts the actions(...) and options(...) groups from line
// metadata. Each group captures up to the first closing paren after its
// marker. The groups may appear in either order.
func parseMeta(meta string, dl *DialogueLine, ln int) []Issue {
	var issues []Issue

	if start := strings.Index(meta, actionsMarker); start >= 0 {
		rest := meta[start+len(actionsMarker):]
		if end := strings.Index(rest, ")"); end >= 0 {
			acts, iss := parseActionItems(rest[:end], ln)
			dl.Actions = acts
			issues = append(issues, iss...)
		} else {
			issues = append(issues, Issue{Line: ln, Fragment: meta, Message: "unterminated actions group"})
		}
	}

	if start := strings.Index(meta, optionsMarker); start >= 0 {
		rest := meta[start+len(optionsMarker):]
		if end := strings.Index(rest, ")"); end >= 0 {
			opts, iss := parseOptionItems(rest[:end], ln)
			dl.Options = opts
			issues = append(issues, iss...)
		} else {
			issues = append(issues, Issue{Line: ln, Fragment: meta, Message: "unterminated options group"})
		}
	}
	return issues
}

// parseOptionItems parses a comma-separated list of [[Key|Destination]]
// items. The destination is mandatory and is taken from the last pipe, so
// keys may contain pipes-free commas and destinations stay unambiguous.
func parseOptionItems(s string, ln int) ([]Option, []Issue) {
	var opts []Option
	var issues []Issue

	for _, item := range splitOutside(s, "]]", "[[") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, "[[") || !strings.HasSuffix(item, "]]") {
			issues = append(issues, Issue{Line: ln, Fragment: item, Message: "malformed option"})
			continue
		}
		inner := item[2 : len(item)-2]
		pipe := strings.LastIndex(inner, "|")
		if pipe < 0 {
			issues = append(issues, Issue{Line: ln, Fragment: item, Message: "option missing destination"})
			continue
		}
		dest := strings.TrimSpace(inner[pipe+1:])
		if dest == "" {
			issues = append(issues, Issue{Line: ln, Fragment: item, Message: "option missing destination"})
			continue
		}
		opts = append(opts, Option{
			Key:         strings.TrimSpace(inner[:pipe]),
			Destination: dest,
		})
	}
	return opts, issues
}

// parseActionItems parses a comma-separated list of [tag|param] or [tag]
// items. The param is optional and is taken from the last pipe.
func parseActionItems(s string, ln int) ([]Action, []Issue) {
	var acts []Action
	var issues []Issue

	for _, item := range splitOutside(s, "]", "[") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.HasPrefix(item, "[") || !strings.HasSuffix(item, "]") {
			issues = append(issues, Issue{Line: ln, Fragment: item, Message: "malformed action"})
			continue
		}
		inner := item[1 : len(item)-1]
		act := Action{Tag: strings.TrimSpace(inner)}
		if pipe := strings.LastIndex(inner, "|"); pipe >= 0 {
			act.Tag = strings.TrimSpace(inner[:pipe])
			act.Param = strings.TrimSpace(inner[pipe+1:])
		}
		if act.Tag == "" {
			issues = append(issues, Issue{Line: ln, Fragment: item, Message: "action missing tag"})
			continue
		}
		acts = append(acts, act)
	}
	return acts, issues
}

// ParseTags parses a node's raw tag string into a key -> values map.
// Blocks look like key[v1, v2] and are separated by commas; only a comma
// whose nearest non-space left neighbor is "]" and whose right side starts
// a new key splits blocks, so commas between values never do. A duplicate
// key replaces the earlier one and is reported.
func ParseTags(raw string) (map[string][]string, []Issue) {
	tags := make(map[string][]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return tags, nil
	}

	var issues []Issue
	for _, block := range splitTagBlocks(raw) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		open := strings.Index(block, "[")
		closing := strings.LastIndex(block, "]")
		if open < 0 || closing < open {
			issues = append(issues, Issue{Fragment: block, Message: "tag block missing brackets"})
			continue
		}
		key := strings.TrimSpace(block[:open])
		if key == "" {
			issues = append(issues, Issue{Fragment: block, Message: "tag block missing key"})
			continue
		}

		var vals []string
		if inner := block[open+1 : closing]; strings.TrimSpace(inner) != "" {
			for _, v := range strings.Split(inner, ",") {
				vals = append(vals, strings.TrimSpace(v))
			}
		}
		if _, dup := tags[key]; dup {
			issues = append(issues, Issue{Fragment: block, Message: fmt.Sprintf("duplicate tag key %q", key)})
		}
		tags[key] = vals
	}
	return tags, issues
}

// splitOutside splits s on commas that sit between a closing and an opening
// bracket sequence, ignoring surrounding spaces. Commas inside the brackets
// never match because their left context does not end with the closer.
func splitOutside(s, closing, opening string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		left := strings.TrimRight(s[start:i], " \t")
		right := strings.TrimLeft(s[i+1:], " \t")
		if strings.HasSuffix(left, closing) && strings.HasPrefix(right, opening) {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// splitTagBlocks splits a raw tag string on commas between one block's "]"
// and the next block's key.
func splitTagBlocks(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		left := strings.TrimRight(s[start:i], " \t")
		right := strings.TrimLeft(s[i+1:], " \t")
		if strings.HasSuffix(left, "]") && startsKey(right) {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func startsKey(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
