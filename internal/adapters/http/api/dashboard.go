package api

import (
	"net/http"
)

// pageHandler serves the embedded dashboard page.
type pageHandler struct{}

func newPageHandler() *pageHandler {
	return &pageHandler{}
}

// HandleDashboardPage handles GET /dashboard.
// The page opens a dashboard and renders the views streamed from
// /dashboards/{id}/events.
func (h *pageHandler) HandleDashboardPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, dashboardFS, "dashboard.html")
}
