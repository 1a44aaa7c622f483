package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

// ScriptSummary describes one parsed script: its nodes in record order and
// any load or lint diagnostics. Issues are advisory; the script still plays.
type ScriptSummary struct {
	Script    string   `json:"script"`
	Start     string   `json:"start,omitempty"`
	Nodes     []string `json:"nodes"`
	NodeCount int      `json:"node_count"`
	LineCount int      `json:"line_count"`
	Issues    []string `json:"issues,omitempty"`
}

type ScriptsHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewScriptsHandler(log *slog.Logger, storage storage.Storage) *ScriptsHandler {
	return &ScriptsHandler{
		log:     log,
		storage: storage,
	}
}

func (h *ScriptsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Path == "/v1/scripts" || r.URL.Path == "/v1/scripts/" {
			h.handleList(w, r)
		} else {
			h.handleGet(w, r)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScriptsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	scripts, err := h.storage.ListScripts(r.Context())
	if err != nil {
		h.log.Error("Failed to list scripts", "error", err)
		http.Error(w, "Failed to list scripts", http.StatusInternalServerError)
		return
	}

	// Initialize as empty slice instead of nil
	if scripts == nil {
		scripts = make([]string, 0)
	}

	data, err := json.Marshal(scripts)
	if err != nil {
		h.log.Error("Failed to marshal script list", "error", err)
		http.Error(w, "Failed to process script list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error("Failed to write script list response", "error", err)
	}
}

func (h *ScriptsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/scripts/")
	filename := strings.TrimSpace(path)

	if filename == "" {
		http.Error(w, "filename is required in URL path (e.g., /v1/scripts/market.json)", http.StatusBadRequest)
		return
	}

	// Security: prevent directory traversal
	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	graph, loadIssues, err := h.storage.GetGraph(ctx, filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Script not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to get script", "error", err, "filename", filename)
		http.Error(w, "Failed to retrieve script", http.StatusInternalServerError)
		return
	}

	summary := ScriptSummary{
		Script: filename,
		Start:  graph.DefaultStart(),
		Nodes:  graph.Titles(),
	}
	summary.NodeCount = len(summary.Nodes)
	for _, title := range summary.Nodes {
		if node, ok := graph.Node(title); ok {
			summary.LineCount += len(node.Lines)
		}
	}
	for _, iss := range loadIssues {
		summary.Issues = append(summary.Issues, iss.String())
	}
	for _, iss := range graph.Lint() {
		summary.Issues = append(summary.Issues, iss.String())
	}

	data, err := json.Marshal(summary)
	if err != nil {
		h.log.Error("Failed to marshal script summary", "error", err, "filename", filename)
		http.Error(w, "Failed to process script", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error("Failed to write response", "error", err)
	}
}
