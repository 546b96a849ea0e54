package api

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

// StatsProvider defines the interface for getting service status.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	statsProvider StatsProvider
	metrics       http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(statsProvider StatsProvider) *HealthHandler {
	return &HealthHandler{
		statsProvider: statsProvider,
		metrics:       promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests.
// If the Accept header asks for "application/openmetrics-text" or "text/plain"
// it returns Prometheus metrics. Otherwise it returns the JSON service status.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/openmetrics-text") || strings.Contains(accept, "text/plain") {
		h.metrics.ServeHTTP(w, r)
		return
	}

	status := map[string]interface{}{"status": "ok"}
	if h.statsProvider != nil {
		for k, v := range h.statsProvider.GetStats() {
			status[k] = v
		}
	}
	if started, ok := status["started"].(bool); ok && !started {
		status["status"] = "stopped"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleMetrics handles GET /metrics.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
