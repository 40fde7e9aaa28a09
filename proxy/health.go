package proxy

import (
	"encoding/json"
	"net/http"
)

type upstreamHealthEntry struct {
	Name        string  `json:"name"`
	Healthy     bool    `json:"healthy"`
	SuccessRate float64 `json:"success_rate"`
}

// HandleUpstreamHealth serves GET /v1/health/upstreams: a read-only
// snapshot of each configured upstream's circuit breaker state and
// rolling success rate. It never feeds back into routing order
// (router.Router.Candidates always sorts by static priority) — this is
// debug/metrics surface only.
func (h *Handler) HandleUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.router.Snapshot()
	entries := make([]upstreamHealthEntry, 0, len(snap))
	for _, s := range snap {
		entries = append(entries, upstreamHealthEntry{Name: s.Name, Healthy: s.Healthy, SuccessRate: s.SuccessRate})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"upstreams": entries})
}
