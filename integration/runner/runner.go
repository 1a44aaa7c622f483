package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/pkg/script"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running dialogue-engine API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
	ScriptOverride    string // If set, overrides the script for all test cases
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	// If this is not a sequence, return it as-is
	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	// This is a sequence - load all referenced cases
	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		// Resolve path relative to casesDir
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite executes a complete test suite
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	scriptName := suite.Script
	if r.ScriptOverride != "" {
		scriptName = r.ScriptOverride
	}

	// Create the session this suite plays through
	sessionID, err := r.createSession(ctx, scriptName, suite)
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.Session = sessionID

	// Creation can dispatch the start line's actions; drain them so step
	// expectations only see their own dispatches.
	if _, err := DrainActions(ctx, r.Client, r.BaseURL, sessionID); err != nil {
		result.Error = fmt.Errorf("failed to drain creation actions: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}

	// Subscribe to the session's event stream before any step runs, so
	// step event expectations observe everything the steps publish.
	collector, err := CollectEvents(ctx, r.Client, r.BaseURL, sessionID)
	if err != nil {
		result.Error = fmt.Errorf("failed to open event stream: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	defer func() { collector.Close() }()

	// Execute each test step
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, &sessionID, &collector, step, scriptName, suite)
		result.Results = append(result.Results, stepResult)
		result.Session = sessionID

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			// Break only if error handling mode is "exit"
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			// Continue to next step if mode is "continue"
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// createSession starts a new session for the suite's script and returns
// its ID
func (r *Runner) createSession(ctx context.Context, scriptName string, suite TestSuite) (uuid.UUID, error) {
	createReq := map[string]interface{}{
		"script": scriptName,
	}
	if suite.StartNode != "" {
		createReq["start_node"] = suite.StartNode
	}
	if len(suite.Vars) > 0 {
		createReq["vars"] = suite.Vars
	}
	if suite.ResumeOnChoice {
		createReq["resume_on_choice"] = true
	}

	createBody, err := json.Marshal(createReq)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to marshal create request: %w", err)
	}

	createURL := r.BaseURL + "/v1/sessions"
	req, err := http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewBuffer(createBody))
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to create session: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return uuid.UUID{}, fmt.Errorf("create session returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope SessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return uuid.UUID{}, fmt.Errorf("failed to decode created session: %w", err)
	}
	if envelope.Session == nil {
		return uuid.UUID{}, fmt.Errorf("create session response carried no session")
	}

	return envelope.Session.ID, nil
}

// finishSession deletes the session server-side
func (r *Runner) finishSession(ctx context.Context, sessionID uuid.UUID) error {
	url := fmt.Sprintf("%s/v1/sessions/%s", r.BaseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create DELETE request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute DELETE request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DELETE request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// postOp executes a continue or choose operation and returns the session
// envelope
func (r *Runner) postOp(ctx context.Context, sessionID uuid.UUID, op string, body map[string]interface{}) (*SessionEnvelope, error) {
	var reader io.Reader
	if body != nil {
		reqBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reader = bytes.NewBuffer(reqBody)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/%s", r.BaseURL, sessionID.String(), op)
	req, err := http.NewRequestWithContext(ctx, "POST", url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, string(respBody))
	}

	var envelope SessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &envelope, nil
}

// runStep executes a single test step and checks expectations.
// If step.Input is ResetSessionInput, the current session is finished and
// replaced with a fresh one; sessionID and collector are updated in place.
func (r *Runner) runStep(ctx context.Context, sessionID *uuid.UUID, collector **EventCollector, step TestStep, scriptName string, suite TestSuite) TestResult {
	start := time.Now()
	result := TestResult{
		StepName: step.Name,
	}

	if len(step.SetVars) > 0 {
		if err := PutVars(ctx, r.Client, r.BaseURL, *sessionID, step.SetVars); err != nil {
			result.Error = fmt.Errorf("failed to set vars: %w", err)
			result.Duration = time.Since(start)
			return result
		}
	}

	// Check if this is a reset step
	if step.Input == ResetSessionInput {
		if err := r.finishSession(ctx, *sessionID); err != nil {
			result.Error = fmt.Errorf("failed to finish session: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		// The finish publishes on the old session's channel; await any
		// event expectations before switching streams.
		if err := r.waitForEvents(*collector, step.Expectations.Events); err != nil {
			result.Error = fmt.Errorf("reset expectation failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		(*collector).Close()

		freshID, err := r.createSession(ctx, scriptName, suite)
		if err != nil {
			result.Error = fmt.Errorf("failed to recreate session: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		*sessionID = freshID

		if _, err := DrainActions(ctx, r.Client, r.BaseURL, freshID); err != nil {
			result.Error = fmt.Errorf("failed to drain creation actions: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		fresh, err := CollectEvents(ctx, r.Client, r.BaseURL, freshID)
		if err != nil {
			result.Error = fmt.Errorf("failed to reopen event stream: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		*collector = fresh

		// Check the remaining expectations against the fresh session
		envelope, err := GetSession(ctx, r.Client, r.BaseURL, freshID)
		if err != nil {
			result.Error = fmt.Errorf("failed to get fresh session for expectations: %w", err)
			result.Duration = time.Since(start)
			return result
		}
		exp := step.Expectations
		exp.Events = nil // already awaited on the old stream
		exp.Actions = nil
		exp.ActionCount = nil
		if err := r.checkExpectations(ctx, exp, envelope, nil, *sessionID); err != nil {
			result.Error = fmt.Errorf("reset expectation failed: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		result.Success = true
		result.IsReset = true
		result.LineText = "[SESSION RESET]"
		result.Duration = time.Since(start)
		return result
	}

	// Execute the operation
	var envelope *SessionEnvelope
	var err error
	switch step.Input {
	case "", ContinueInput:
		envelope, err = r.postOp(ctx, *sessionID, "continue", nil)
	case InspectInput:
		envelope, err = GetSession(ctx, r.Client, r.BaseURL, *sessionID)
	default:
		envelope, err = r.postOp(ctx, *sessionID, "choose", map[string]interface{}{
			"destination": step.Input,
		})
	}
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	if envelope.Line != nil && envelope.Session != nil {
		result.LineText = script.ReplaceVars(envelope.Line.Line.Text, envelope.Session.Vars)
	}

	// Check expectations
	if err := r.checkExpectations(ctx, step.Expectations, envelope, *collector, *sessionID); err != nil {
		result.Error = fmt.Errorf("expectation failed: %w", err)
		result.Duration = time.Since(start)
		return result
	}

	result.Success = true
	result.Duration = time.Since(start)
	return result
}

// waitForEvents awaits each expected event type in order
func (r *Runner) waitForEvents(collector *EventCollector, eventTypes []string) error {
	for _, eventType := range eventTypes {
		if _, err := collector.WaitFor(eventType, EventTimeout); err != nil {
			return err
		}
	}
	return nil
}

// checkExpectations validates the test expectations against the operation
// result. Contains and regex checks run against the displayed line text
// after variable replacement.
func (r *Runner) checkExpectations(ctx context.Context, exp Expectations, envelope *SessionEnvelope, collector *EventCollector, sessionID uuid.UUID) error {
	sess := envelope.Session
	if sess == nil {
		return fmt.Errorf("response carried no session")
	}

	// Node check
	if exp.Node != nil {
		if sess.NodeTitle != *exp.Node {
			return fmt.Errorf("expected node %s, got %s", *exp.Node, sess.NodeTitle)
		}
	}

	// Cursor check
	if exp.Cursor != nil {
		if sess.Cursor != *exp.Cursor {
			return fmt.Errorf("expected cursor %d, got %d", *exp.Cursor, sess.Cursor)
		}
	}

	// Status check
	if exp.Status != nil {
		if sess.Status != *exp.Status {
			return fmt.Errorf("expected status %s, got %s", *exp.Status, sess.Status)
		}
	}

	// Ended check
	if exp.Ended != nil {
		ended := envelope.Ended || sess.Status == state.StatusEnded
		if ended != *exp.Ended {
			return fmt.Errorf("expected ended to be %t, got %t", *exp.Ended, ended)
		}
	}

	// Variables check
	if len(exp.Vars) > 0 {
		for key, expectedValue := range exp.Vars {
			actualValue, exists := sess.Vars[key]
			if !exists {
				return fmt.Errorf("expected variable %s to be set, but it doesn't exist", key)
			}
			if actualValue != expectedValue {
				return fmt.Errorf("expected variable %s to be %s, got %s", key, expectedValue, actualValue)
			}
		}
	}

	// Displayed line checks
	lineChecks := exp.Speaker != nil || len(exp.LineContains) > 0 || len(exp.LineNotContains) > 0 ||
		exp.LineRegex != "" || len(exp.Options) > 0 || exp.OptionCount != nil
	if lineChecks {
		if envelope.Line == nil {
			return fmt.Errorf("expected a displayed line, but the operation surfaced none")
		}
		line := envelope.Line.Line
		display := script.ReplaceVars(line.Text, sess.Vars)

		if exp.Speaker != nil {
			if line.Speaker != *exp.Speaker {
				return fmt.Errorf("expected speaker %q, got %q", *exp.Speaker, line.Speaker)
			}
		}

		if len(exp.LineContains) > 0 {
			lowerLine := strings.ToLower(display)
			for _, expectedText := range exp.LineContains {
				if !strings.Contains(lowerLine, strings.ToLower(expectedText)) {
					return fmt.Errorf("expected line to contain '%s', but it didn't: %q", expectedText, display)
				}
			}
		}

		if len(exp.LineNotContains) > 0 {
			lowerLine := strings.ToLower(display)
			for _, unexpectedText := range exp.LineNotContains {
				if strings.Contains(lowerLine, strings.ToLower(unexpectedText)) {
					return fmt.Errorf("expected line to NOT contain '%s', but it did: %q", unexpectedText, display)
				}
			}
		}

		if exp.LineRegex != "" {
			matched, err := regexp.MatchString(exp.LineRegex, display)
			if err != nil {
				return fmt.Errorf("invalid regex pattern: %w", err)
			}
			if !matched {
				return fmt.Errorf("line didn't match regex pattern: %s", exp.LineRegex)
			}
		}

		// Option labels, in script order
		if len(exp.Options) > 0 {
			if len(line.Options) != len(exp.Options) {
				return fmt.Errorf("expected %d options, got %d", len(exp.Options), len(line.Options))
			}
			for i, label := range exp.Options {
				if line.Options[i].Key != label {
					return fmt.Errorf("expected option %d to be %q, got %q", i, label, line.Options[i].Key)
				}
			}
		}

		if exp.OptionCount != nil {
			if len(line.Options) != *exp.OptionCount {
				return fmt.Errorf("expected %d options, got %d", *exp.OptionCount, len(line.Options))
			}
		}
	}

	// Dispatched action checks. Draining consumes, so each step sees only
	// its own dispatches.
	if len(exp.Actions) > 0 || exp.ActionCount != nil {
		actions, err := DrainActions(ctx, r.Client, r.BaseURL, sessionID)
		if err != nil {
			return fmt.Errorf("failed to drain actions: %w", err)
		}

		formatted := make([]string, 0, len(actions))
		for _, action := range actions {
			if action.Param != "" {
				formatted = append(formatted, fmt.Sprintf("%s(%s)", action.Tag, action.Param))
			} else {
				formatted = append(formatted, action.Tag)
			}
		}

		if exp.ActionCount != nil && len(formatted) != *exp.ActionCount {
			return fmt.Errorf("expected %d actions, got %d: %v", *exp.ActionCount, len(formatted), formatted)
		}

		if len(exp.Actions) > 0 {
			if len(formatted) != len(exp.Actions) {
				return fmt.Errorf("expected actions %v, got %v", exp.Actions, formatted)
			}
			for i, want := range exp.Actions {
				if formatted[i] != want {
					return fmt.Errorf("expected action %d to be %q, got %q", i, want, formatted[i])
				}
			}
		}
	}

	// Event stream checks
	if len(exp.Events) > 0 {
		if collector == nil {
			return fmt.Errorf("no event stream open for event expectations")
		}
		if err := r.waitForEvents(collector, exp.Events); err != nil {
			return err
		}
	}

	return nil
}
