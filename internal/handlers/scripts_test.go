package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/dialogue-engine/pkg/conversation"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

func newScriptStorage() *storage.MockStorage {
	mockStorage := newTestStorage()
	mockStorage.AddScript("broken.json", []conversation.Record{
		{
			Title: "Lost",
			Body:  "Ghost: Follow me. | options([[Deeper|Nowhere]])",
		},
	})
	return mockStorage
}

func TestScriptsHandler_List(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	req := httptest.NewRequest(http.MethodGet, "/v1/scripts", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ListScripts() status = %d, want %d", w.Code, http.StatusOK)
	}

	var scripts []string
	if err := json.Unmarshal(w.Body.Bytes(), &scripts); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if len(scripts) != 2 {
		t.Errorf("ListScripts() returned %d scripts, want 2: %v", len(scripts), scripts)
	}
}

func TestScriptsHandler_Get(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	req := httptest.NewRequest(http.MethodGet, "/v1/scripts/gate.json", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("GetScript() status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var summary ScriptSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if summary.Script != "gate.json" {
		t.Errorf("GetScript() script = %q, want 'gate.json'", summary.Script)
	}
	if summary.Start != "Gate" {
		t.Errorf("GetScript() start = %q, want 'Gate'", summary.Start)
	}
	if summary.NodeCount != 2 {
		t.Errorf("GetScript() node_count = %d, want 2", summary.NodeCount)
	}
	if summary.LineCount != 4 {
		t.Errorf("GetScript() line_count = %d, want 4", summary.LineCount)
	}
	if len(summary.Issues) != 0 {
		t.Errorf("GetScript() issues = %v, want none", summary.Issues)
	}
}

func TestScriptsHandler_GetReportsIssues(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	// broken.json points an option at a node that does not exist
	req := httptest.NewRequest(http.MethodGet, "/v1/scripts/broken.json", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GetScript() status = %d, want %d", w.Code, http.StatusOK)
	}

	var summary ScriptSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if len(summary.Issues) == 0 {
		t.Error("GetScript() expected lint issues for broken.json")
	}
}

func TestScriptsHandler_GetNotFound(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	req := httptest.NewRequest(http.MethodGet, "/v1/scripts/nonexistent.json", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("GetScript() with nonexistent script status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestScriptsHandler_GetInvalidFilename(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	req := httptest.NewRequest(http.MethodGet, "/v1/scripts/../../secrets.json", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("GetScript() with traversal path status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestScriptsHandler_MethodNotAllowed(t *testing.T) {
	handler := NewScriptsHandler(testLogger(), newScriptStorage())

	methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/v1/scripts", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s method status = %d, want %d", method, w.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}
