package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

const (
	// EventTimeout is max time to wait for a single SSE event to arrive
	EventTimeout = 30 * time.Second
	// eventBuffer caps how many events a collector holds before dropping
	eventBuffer = 256
)

// SessionEnvelope mirrors the API session response: the stored snapshot,
// the line the operation displayed, and whether the conversation is over.
type SessionEnvelope struct {
	Session *state.SessionState `json:"session"`
	Line    *state.LineView     `json:"line,omitempty"`
	Ended   bool                `json:"ended,omitempty"`
}

// ActionsEnvelope mirrors the API drain response.
type ActionsEnvelope struct {
	Actions []*queue.ActionEvent `json:"actions"`
}

// GetSession retrieves the current session snapshot and line
func GetSession(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*SessionEnvelope, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send session request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("session endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope SessionEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	return &envelope, nil
}

// DrainActions removes and returns the session's pending actions in
// dispatch order
func DrainActions(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) ([]*queue.ActionEvent, error) {
	url := fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create actions request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send actions request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("actions endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope ActionsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}

	return envelope.Actions, nil
}

// PutVars merges replacement variables into the session
func PutVars(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID, vars map[string]string) error {
	reqBody, err := json.Marshal(map[string]interface{}{"vars": vars})
	if err != nil {
		return fmt.Errorf("failed to marshal vars request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sessions/%s/vars", baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create vars request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send vars request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vars endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// SSEEvent is one event received from the session's SSE stream
type SSEEvent struct {
	Type string
	Data map[string]interface{}
}

// EventCollector holds an open SSE stream to a session's event endpoint
// and buffers arriving events. Events published before the collector
// connects are not replayed, so open the collector before the operation
// whose events you want to observe.
type EventCollector struct {
	events chan SSEEvent
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// CollectEvents opens the session's SSE stream and starts buffering its
// events. It returns after the stream's initial "connected" event, so
// operations performed afterwards are guaranteed to be observed.
func CollectEvents(ctx context.Context, client *http.Client, baseURL string, sessionID uuid.UUID) (*EventCollector, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	url := fmt.Sprintf("%s/v1/events/sessions/%s", baseURL, sessionID.String())
	req, err := http.NewRequestWithContext(streamCtx, "GET", url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create events request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any per-request client timeout, so use a
	// dedicated client without one; the context carries cancellation.
	streamClient := &http.Client{Transport: client.Transport}
	resp, err := streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("events endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	c := &EventCollector{
		events: make(chan SSEEvent, eventBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(c.done)
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		currentType := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				currentType = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				event := SSEEvent{Type: currentType}
				payload := strings.TrimPrefix(line, "data: ")
				if err := json.Unmarshal([]byte(payload), &event.Data); err != nil {
					continue
				}
				select {
				case c.events <- event:
				default:
					// Buffer full; drop rather than stall the stream
				}
			}
			// Blank lines and keepalive comments end or pad frames
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			c.err = err
		}
	}()

	// Wait for the handshake event before handing the collector out
	if _, err := c.WaitFor("connected", EventTimeout); err != nil {
		c.Close()
		return nil, fmt.Errorf("event stream handshake failed: %w", err)
	}
	return c, nil
}

// WaitFor blocks until an event of the given type arrives, skipping
// buffered events of other types, or until the timeout elapses.
func (c *EventCollector) WaitFor(eventType string, timeout time.Duration) (SSEEvent, error) {
	deadline := time.After(timeout)
	for {
		select {
		case event := <-c.events:
			if event.Type == eventType {
				return event, nil
			}
			// Skip events the caller is not waiting for
		case <-c.done:
			if c.err != nil {
				return SSEEvent{}, fmt.Errorf("event stream closed: %w", c.err)
			}
			return SSEEvent{}, fmt.Errorf("event stream closed before %q arrived", eventType)
		case <-deadline:
			return SSEEvent{}, fmt.Errorf("timeout waiting for event %q (waited %v)", eventType, timeout)
		}
	}
}

// Close tears down the stream and waits for the reader to finish
func (c *EventCollector) Close() {
	c.cancel()
	<-c.done
}
