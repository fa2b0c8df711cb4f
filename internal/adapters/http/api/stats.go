package api

import (
	"net/http"
	"sync/atomic"
	"time"
)

// StatsProvider reports the recommender's state. The "ready" key, when
// present, must be a bool.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the provider's stats plus the listener's own uptime
// and request count.
type StatsHandler struct {
	provider StatsProvider
	started  time.Time
	served   atomic.Int64
}

// NewStatsHandler creates a stats handler; uptime counts from now.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, started: time.Now()}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	n := h.served.Add(1)

	stats := make(map[string]interface{})
	for k, v := range h.provider.GetStats() {
		stats[k] = v
	}
	stats["uptimeSeconds"] = int64(time.Since(h.started).Seconds())
	stats["statsRequests"] = n
	writeJSON(w, http.StatusOK, stats)
}
