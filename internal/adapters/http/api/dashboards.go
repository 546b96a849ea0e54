package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// keepAliveInterval spaces SSE comments that keep idle proxies open.
const keepAliveInterval = 25 * time.Second

// DashboardHandler serves live dashboards: open, filter, reset, stream, close.
type DashboardHandler struct {
	deps Dependencies
	hub  *streamHub
	log  logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(deps Dependencies, log logger.Logger) *DashboardHandler {
	return &DashboardHandler{deps: deps, hub: newStreamHub(), log: log}
}

type openDashboardResponse struct {
	ID string `json:"id"`
}

// HandleOpen handles POST /dashboards. The response carries the id; the
// initial view is available from GET /dashboards/{id} right away.
func (h *DashboardHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	stream := newViewStream()
	id, err := h.deps.OpenDashboard(r.Context(), stream)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	h.hub.add(id, stream)
	writeJSON(w, http.StatusCreated, openDashboardResponse{ID: id})
}

// HandleView handles GET /dashboards/{id}.
func (h *DashboardHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.deps.Dashboard(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	v, _ := ctrl.View()
	writeJSON(w, http.StatusOK, v)
}

// HandleFilters handles PUT /dashboards/{id}/filters with a filter state.
func (h *DashboardHandler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	const op = "api.dashboard_filters"
	ctrl, err := h.deps.Dashboard(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var state stats.FilterState
	if err := decodeJSON(w, r, op, &state); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := ctrl.OnFilterChanged(r.Context(), state); err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	v, _ := ctrl.View()
	writeJSON(w, http.StatusOK, v)
}

// HandleReset handles POST /dashboards/{id}/reset.
func (h *DashboardHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctrl, err := h.deps.Dashboard(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	ctrl.Reset(r.Context())
	v, _ := ctrl.View()
	writeJSON(w, http.StatusOK, v)
}

// HandleClose handles DELETE /dashboards/{id}.
func (h *DashboardHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deps.CloseDashboard(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	h.hub.remove(id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleEvents handles GET /dashboards/{id}/events as a server-sent event
// stream. Each rendered view is one "view" event; the newest view is sent
// first.
func (h *DashboardHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	stream, ok := h.hub.get(id)
	if !ok {
		if _, err := h.deps.Dashboard(id); err != nil {
			writeServiceError(w, err)
			return
		}
		writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("dashboard %s has no event stream", id))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("streaming unsupported"))
		return
	}
	release, err := h.deps.HoldDashboard(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	defer release()

	views, detach := stream.attach()
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-stream.done:
			_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
			flusher.Flush()
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case v := <-views:
			data, err := json.Marshal(v)
			if err != nil {
				h.log.Error(r.Context(), "encode dashboard view", logger.Error(err))
				return
			}
			_, _ = fmt.Fprintf(w, "id: %d\nevent: view\ndata: %s\n\n", v.Generation, data)
			flusher.Flush()
		}
	}
}
