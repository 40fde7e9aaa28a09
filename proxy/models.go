package proxy

import (
	"encoding/json"
	"net/http"
)

// modelEntry is one row of the GET /v1/models union listing
// (spec.md §6), shaped close enough to OpenAI's own /v1/models
// response that existing OpenAI client libraries can parse it
// unmodified.
type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string       `json:"object"`
	Data   []modelEntry `json:"data"`
}

// HandleModels lists the deduplicated union of every model name any
// configured, API-key-bearing upstream declares, across all three
// supported formats.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	cfg := h.snapshot.Get()

	seen := make(map[string]bool)
	var entries []modelEntry
	for _, svc := range cfg.Upstreams {
		if svc.APIKey == "" {
			continue
		}
		for _, m := range svc.Models {
			if seen[m] {
				continue
			}
			seen[m] = true
			entries = append(entries, modelEntry{ID: m, Object: "model", OwnedBy: svc.Name})
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(modelsResponse{Object: "list", Data: entries})
}
