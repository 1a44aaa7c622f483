package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/speaker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <script.json|script.yaml|speaker.json>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	validator := &FileValidator{}

	if err := validator.validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("File is valid!")
}

type FileValidator struct {
	errors   []string
	warnings []string
}

func (v *FileValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	format := formatFor(filename)
	if format == "" {
		return fmt.Errorf("unsupported extension on %s (want .json, .yaml or .yml)", filepath.Base(filename))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil
	v.warnings = nil

	if format == "json" && !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	switch topLevelKind(data, format) {
	case "script":
		v.validateScript(data, format)
	case "speaker":
		if format != "json" {
			return fmt.Errorf("speaker specs must be JSON files: %s", filename)
		}
		v.validateSpeaker(data, filename)
	default:
		return fmt.Errorf("file %s is neither a script (list of nodes) nor a speaker spec (object)", filename)
	}

	for _, w := range v.warnings {
		fmt.Println(w)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}

	return nil
}

// formatFor maps a filename to its decode format, or "" when the extension
// is not a supported one.
func formatFor(filename string) string {
	switch filepath.Ext(filename) {
	case ".json":
		return "json"
	case ".yaml":
		return "yaml"
	case ".yml":
		return "yml"
	}
	return ""
}

// topLevelKind distinguishes the two file kinds by shape: scripts are lists
// of node records, speaker specs are single objects.
func topLevelKind(data []byte, format string) string {
	var decoded any
	switch format {
	case "json":
		if err := json.Unmarshal(data, &decoded); err != nil {
			return ""
		}
	default:
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			return ""
		}
	}

	switch decoded.(type) {
	case []any:
		return "script"
	case map[string]any:
		return "speaker"
	}
	return ""
}

func (v *FileValidator) validateScript(data []byte, format string) {
	records, err := conversation.UnmarshalRecords(data, format)
	if err != nil {
		v.addError(err.Error())
		return
	}

	if len(records) == 0 {
		v.addError("script has no node records")
		return
	}

	for i, rec := range records {
		if strings.TrimSpace(rec.Title) == "" {
			v.addError(fmt.Sprintf("record %d has an empty title", i))
		}
	}

	graph, issues := conversation.Load(records, conversation.MatchStrict)
	for _, iss := range issues {
		v.addError(iss.String())
	}

	// Unreachable nodes are advisory; a host may start them directly.
	for _, iss := range graph.Lint() {
		if strings.Contains(iss.Message, "not reachable") {
			v.addWarning("  ! " + iss.String())
		} else {
			v.addError(iss.String())
		}
	}

	// Warn on placeholder names that won't match var naming
	for _, title := range graph.Titles() {
		node, ok := graph.Node(title)
		if !ok {
			continue
		}
		for _, line := range node.Lines {
			for _, name := range placeholderNames(line.Text) {
				if !isValidVarName(name) {
					v.addWarning(fmt.Sprintf("  ! node %q: placeholder '{%s}' should be lowercase snake_case", title, name))
				}
			}
		}
	}

	lineCount := 0
	for _, title := range graph.Titles() {
		if node, ok := graph.Node(title); ok {
			lineCount += len(node.Lines)
		}
	}
	fmt.Printf("Parsed %d nodes, %d lines. Start node: %q\n", graph.Len(), lineCount, graph.DefaultStart())
}

func (v *FileValidator) validateSpeaker(data []byte, filename string) {
	// Speaker IDs come from the filename, so the stem has to follow the
	// same naming rule as the id field.
	stem := strings.TrimSuffix(filepath.Base(filename), ".json")
	if !isValidVarName(stem) {
		v.addError(fmt.Sprintf("speaker filename '%s' must be lowercase snake_case (e.g., gate_guard.json)", filepath.Base(filename)))
	}

	var spec speaker.Spec
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&spec); err != nil {
		v.addError(fmt.Sprintf("strict JSON unmarshaling failed: %v", err))
		return
	}

	if spec.ID == "" {
		spec.ID = stem
	} else if spec.ID != stem {
		v.addWarning(fmt.Sprintf("  ! id %q does not match filename stem %q; the API uses the filename", spec.ID, stem))
	}

	// Building the speaker validates the spec and, when stats are present,
	// exercises the actor construction the API performs.
	sp, err := speaker.NewSpeakerFromSpec(&spec)
	if err != nil {
		v.addError(err.Error())
		return
	}

	fmt.Printf("Speaker: %s\n", sp.Summary())
	if sp.Actor != nil {
		hp := spec.HP
		if hp <= 0 {
			hp = spec.MaxHP
		}
		fmt.Printf("Actor stats: %d/%d HP, AC %d\n", hp, spec.MaxHP, spec.AC)
	}
}

func (v *FileValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *FileValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, msg)
}

// placeholderNames extracts the {key} tokens from a line of display text.
func placeholderNames(text string) []string {
	var names []string
	i := 0
	for i < len(text) {
		open := strings.IndexByte(text[i:], '{')
		if open < 0 {
			break
		}
		open += i
		closing := strings.IndexByte(text[open+1:], '}')
		if closing < 0 {
			break
		}
		closing += open + 1
		names = append(names, text[open+1:closing])
		i = closing + 1
	}
	return names
}

var validVarRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)

func isValidVarName(name string) bool {
	return validVarRegex.MatchString(name)
}
