package runner

import (
	"time"

	"github.com/google/uuid"
)

// Special step inputs that trigger non-choice operations
const (
	// ResetSessionInput finishes the session and starts a fresh one from
	// the suite's script and seed vars. The session ID changes.
	ResetSessionInput = "RESET_SESSION"
	// ContinueInput advances the conversation one line. An empty input
	// does the same.
	ContinueInput = "CONTINUE"
	// InspectInput reads the session without advancing it.
	InspectInput = "INSPECT"
)

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name           string            `json:"name"`
	Script         string            `json:"script,omitempty"`           // Used for regular tests
	StartNode      string            `json:"start_node,omitempty"`       // Optional start node override
	Vars           map[string]string `json:"vars,omitempty"`             // Seed replacement variables
	ResumeOnChoice bool              `json:"resume_on_choice,omitempty"` // Choice re-entry keeps the node cursor
	Steps          []TestStep        `json:"steps,omitempty"`            // Used for regular tests
	Cases          []string          `json:"cases,omitempty"`            // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep defines a single session operation and its expected outcomes.
// Input is a destination title to choose, or one of the special inputs
// above. SetVars, when present, merges replacement variables before the
// operation runs.
type TestStep struct {
	Name         string            `json:"name,omitempty"`
	Input        string            `json:"input"`
	SetVars      map[string]string `json:"set_vars,omitempty"`
	Expectations Expectations      `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Session properties - aligned with pkg/state/session_state.go
	Node   *string           `json:"node,omitempty"`   // Active node title
	Cursor *int              `json:"cursor,omitempty"` // Line cursor within the node
	Status *string           `json:"status,omitempty"` // Session status (idle/active/ended/closed)
	Ended  *bool             `json:"ended,omitempty"`  // Conversation-over flag
	Vars   map[string]string `json:"vars,omitempty"`   // Replacement variables

	// Displayed line analysis. Contains checks run against the line text
	// after variable replacement, case-insensitively.
	Speaker         *string  `json:"speaker,omitempty"`
	LineContains    []string `json:"line_contains,omitempty"`
	LineNotContains []string `json:"line_not_contains,omitempty"`
	LineRegex       string   `json:"line_regex,omitempty"`

	// Option labels on the displayed line, in script order.
	Options     []string `json:"options,omitempty"`
	OptionCount *int     `json:"option_count,omitempty"`

	// Actions drained after the step, in dispatch order, formatted as
	// "tag" or "tag(param)". ActionCount checks the count alone; zero
	// asserts the step dispatched nothing.
	Actions     []string `json:"actions,omitempty"`
	ActionCount *int     `json:"action_count,omitempty"`

	// Event types to await on the session's SSE stream, in order. Waiting
	// skips events of other types, so list them in publish order.
	// "action.dispatched" arrives via the relay worker and requires one
	// to be running.
	Events []string `json:"events,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	LineText string
	IsReset  bool // True if this was a RESET_SESSION step (should not count toward pass/fail metrics)
}

// TestJob represents a test suite to be executed by a worker
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Session  uuid.UUID // ID of the session used for this test (the last one, after any resets)
}
