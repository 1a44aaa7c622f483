package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/dialogue-engine/pkg/speaker"
	"github.com/jwebster45206/dialogue-engine/pkg/storage"
)

type SpeakersHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewSpeakersHandler(log *slog.Logger, storage storage.Storage) *SpeakersHandler {
	return &SpeakersHandler{
		log:     log,
		storage: storage,
	}
}

// ListSpeakers lists all available speaker files
func (h *SpeakersHandler) ListSpeakers(w http.ResponseWriter, r *http.Request) {
	speakerIDs, err := h.storage.ListSpeakers(r.Context())
	if err != nil {
		h.log.Error("Failed to list speakers", "error", err)
		http.Error(w, "Failed to list speakers", http.StatusInternalServerError)
		return
	}

	// Initialize as empty slice instead of nil
	speakerList := make([]map[string]interface{}, 0)
	for _, speakerID := range speakerIDs {
		// Load each speaker spec to get details
		spec, err := h.storage.GetSpeaker(r.Context(), speakerID)
		if err != nil {
			h.log.Warn("Failed to load speaker spec", "error", err, "id", speakerID)
			continue
		}

		// Create a summary object with just the key fields
		speakerSummary := map[string]interface{}{
			"id":       spec.ID,
			"name":     spec.Name,
			"role":     spec.Role,
			"pronouns": spec.Pronouns,
		}
		speakerList = append(speakerList, speakerSummary)
	}

	data, err := json.Marshal(speakerList)
	if err != nil {
		h.log.Error("Failed to marshal speaker list", "error", err)
		http.Error(w, "Failed to process speaker list", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error("Failed to write speaker list response", "error", err)
	}
}

func (h *SpeakersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if r.URL.Path == "/v1/speakers" || r.URL.Path == "/v1/speakers/" {
			h.ListSpeakers(w, r)
		} else {
			h.handleGet(w, r)
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SpeakersHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/speakers/")
	id := strings.TrimSpace(path)

	if id == "" {
		http.Error(w, "Speaker ID is required in URL path (e.g., /v1/speakers/gate_guard)", http.StatusBadRequest)
		return
	}

	// Security: prevent directory traversal
	if strings.Contains(id, "..") || strings.Contains(id, "/") {
		http.Error(w, "Invalid speaker ID", http.StatusBadRequest)
		return
	}

	spec, err := h.storage.GetSpeaker(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Speaker not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to load speaker spec", "error", err, "id", id)
		http.Error(w, "Failed to load speaker", http.StatusInternalServerError)
		return
	}

	// Build the speaker from the spec; this validates it and derives the
	// actor when the spec carries game stats.
	sp, err := speaker.NewSpeakerFromSpec(spec)
	if err != nil {
		h.log.Error("Failed to build speaker from spec", "error", err, "id", id)
		http.Error(w, "Failed to build speaker", http.StatusInternalServerError)
		return
	}

	resp := struct {
		*speaker.Spec
		Summary string `json:"summary"`
	}{
		Spec:    spec,
		Summary: sp.Summary(),
	}

	data, err := json.Marshal(resp)
	if err != nil {
		h.log.Error("Failed to marshal speaker", "error", err, "id", id)
		http.Error(w, "Failed to process speaker", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.Error("Failed to write response", "error", err, "id", id)
	}
}
