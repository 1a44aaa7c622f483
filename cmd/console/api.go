package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/jwebster45206/dialogue-engine/pkg/queue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
)

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// CreateSessionRequest matches the API request structure
type CreateSessionRequest struct {
	Script string `json:"script"`
}

// SessionResponse matches the API session envelope
type SessionResponse struct {
	Session *state.SessionState `json:"session"`
	Line    *state.LineView     `json:"line,omitempty"`
	Ended   bool                `json:"ended,omitempty"`
}

// ScriptInfo matches the API script summary structure
type ScriptInfo struct {
	Script    string   `json:"script"`
	Start     string   `json:"start,omitempty"`
	Nodes     []string `json:"nodes"`
	NodeCount int      `json:"node_count"`
	LineCount int      `json:"line_count"`
	Issues    []string `json:"issues,omitempty"`
}

// SpeakerSpec matches the API speaker response structure
type SpeakerSpec struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func listScripts(client *http.Client, baseURL string) ([]string, error) {
	resp, err := client.Get(baseURL + "/v1/scripts")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var scripts []string
	if err := json.Unmarshal(body, &scripts); err != nil {
		return nil, err
	}

	sort.Strings(scripts)
	return scripts, nil
}

func getScriptSummary(client *http.Client, baseURL string, scriptFile string) (*ScriptInfo, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/scripts/%s", baseURL, scriptFile))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var info ScriptInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse script response: %w", err)
	}
	return &info, nil
}

// loadSpeakerColors maps speaker display names to their terminal color
// hints. Speakers without a color hint are left to the default style.
func loadSpeakerColors(client *http.Client, baseURL string) (map[string]string, error) {
	resp, err := client.Get(baseURL + "/v1/speakers")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var speakerList []map[string]interface{}
	if err := json.Unmarshal(body, &speakerList); err != nil {
		return nil, err
	}

	colors := make(map[string]string)
	for _, sp := range speakerList {
		id, ok := sp["id"].(string)
		if !ok {
			continue
		}
		spec, err := getSpeaker(client, baseURL, id)
		if err != nil {
			continue
		}
		if spec.Name != "" && spec.Color != "" {
			colors[spec.Name] = spec.Color
		}
	}
	return colors, nil
}

func getSpeaker(client *http.Client, baseURL string, id string) (*SpeakerSpec, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/speakers/%s", baseURL, id))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var spec SpeakerSpec
	if err := json.Unmarshal(body, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse speaker response: %w", err)
	}
	return &spec, nil
}

func createSession(client *http.Client, baseURL string, scriptFile string) (*SessionResponse, error) {
	req := CreateSessionRequest{
		Script: scriptFile,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/sessions",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to create session: %s", errorResp.Error)
	}

	var created SessionResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}

	return &created, nil
}

func getSession(client *http.Client, baseURL string, sessionID uuid.UUID) (*SessionResponse, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to get session: %s", errorResp.Error)
	}

	var sessionResp SessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &sessionResp, nil
}

func continueSession(client *http.Client, baseURL string, sessionID uuid.UUID) (*SessionResponse, error) {
	return postSessionOp(client, fmt.Sprintf("%s/v1/sessions/%s/continue", baseURL, sessionID), nil)
}

func chooseOption(client *http.Client, baseURL string, sessionID uuid.UUID, destination string) (*SessionResponse, error) {
	reqBody := map[string]interface{}{
		"destination": destination,
	}
	return postSessionOp(client, fmt.Sprintf("%s/v1/sessions/%s/choose", baseURL, sessionID), reqBody)
}

func postSessionOp(client *http.Client, url string, reqBody map[string]interface{}) (*SessionResponse, error) {
	var payload io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewBuffer(jsonData)
	}

	resp, err := client.Post(url, "application/json", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%s", errorResp.Error)
	}

	var sessionResp SessionResponse
	if err := json.Unmarshal(body, &sessionResp); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &sessionResp, nil
}

func putVars(client *http.Client, baseURL string, sessionID uuid.UUID, vars map[string]string) (*state.SessionState, error) {
	reqBody := map[string]interface{}{
		"vars": vars,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("%s/v1/sessions/%s/vars", baseURL, sessionID),
		bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to set vars: %s", errorResp.Error)
	}

	var st state.SessionState
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("failed to parse session response: %w", err)
	}
	return &st, nil
}

func drainActions(client *http.Client, baseURL string, sessionID uuid.UUID) ([]*queue.ActionEvent, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/sessions/%s/actions", baseURL, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var actionsResp struct {
		Actions []*queue.ActionEvent `json:"actions"`
	}
	if err := json.Unmarshal(body, &actionsResp); err != nil {
		return nil, fmt.Errorf("failed to parse actions response: %w", err)
	}
	return actionsResp.Actions, nil
}

func endSession(client *http.Client, baseURL string, sessionID uuid.UUID) error {
	req, err := http.NewRequest(http.MethodDelete,
		fmt.Sprintf("%s/v1/sessions/%s", baseURL, sessionID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
