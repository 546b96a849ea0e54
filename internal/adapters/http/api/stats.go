package api

import (
	"net/http"
	"net/url"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
)

// StatsHandler serves stateless aggregations.
type StatsHandler struct {
	deps Dependencies
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies) *StatsHandler {
	return &StatsHandler{deps: deps}
}

type statsResponse struct {
	Stats    stats.View             `json:"stats"`
	Total    int                    `json:"total"`
	Severity map[stats.Severity]int `json:"severity"`
}

// HandleStats handles GET /stats?facility=&unit=&detection=&dateStart=&dateEnd=.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	view, total, err := h.deps.Stats(r.Context(), filterFromQuery(r.URL.Query()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:    view,
		Total:    total,
		Severity: stats.SeverityCounts(view.Outcome),
	})
}

// HandleFacilities handles GET /facilities.
func (h *StatsHandler) HandleFacilities(w http.ResponseWriter, _ *http.Request) {
	facilities := h.deps.Facilities()
	if facilities == nil {
		facilities = []string{}
	}
	writeJSON(w, http.StatusOK, facilities)
}

func filterFromQuery(q url.Values) stats.FilterState {
	return stats.FilterState{
		Facility:  q.Get("facility"),
		Unit:      q.Get("unit"),
		Detection: q.Get("detection"),
		DateStart: q.Get("dateStart"),
		DateEnd:   q.Get("dateEnd"),
	}.Normalize()
}
