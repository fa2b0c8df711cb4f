package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
)

// HealthHandler reports readiness.
type HealthHandler struct {
	stats StatsProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(stats StatsProvider) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// HandleHealth handles GET /healthz. It answers 503 until an index,
// an artifact and a knowledge store are all in place.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	stats := h.stats.GetStats()
	status := http.StatusOK
	if ready, _ := stats["ready"].(bool); !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":      status == http.StatusOK,
		"index_size": stats["indexSize"],
	})
}

// NewMetricsHandler serves the service's private Prometheus registry.
func NewMetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
