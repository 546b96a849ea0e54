// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/export"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/repository"
	service "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/app"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/dashboard"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
)

// maxBodyBytes caps request bodies; a restore carries the whole database.
const maxBodyBytes = 32 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Report administration.
	SubmitReport(ctx context.Context, r model.Report) (model.Report, error)
	ListReports(ctx context.Context, query string, lf stats.ListFilter) ([]model.Report, error)
	GetReport(ctx context.Context, id string) (model.Report, error)
	UpdateReport(ctx context.Context, id string, patch map[string]any) (model.Report, error)
	DeleteReport(ctx context.Context, id string) error
	BulkDeleteReports(ctx context.Context, ids []string) (int, error)

	// User administration.
	ListUsers(ctx context.Context) ([]model.User, error)
	SaveUser(ctx context.Context, u model.User) (model.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Read models.
	Facilities() []string
	Stats(ctx context.Context, fs stats.FilterState) (stats.View, int, error)
	SystemStats(ctx context.Context) (stats.SystemStats, error)

	// Export, backup and restore.
	Export(ctx context.Context, w io.Writer, f export.Format) error
	Backup(ctx context.Context) (export.Backup, error)
	Restore(ctx context.Context, b export.Backup) error

	// Live dashboards.
	OpenDashboard(ctx context.Context, pub dashboard.Publisher) (string, error)
	Dashboard(id string) (*dashboard.Controller, error)
	HoldDashboard(id string) (release func(), err error)
	CloseDashboard(ctx context.Context, id string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	reportsHandler   *ReportsHandler
	usersHandler     *UsersHandler
	statsHandler     *StatsHandler
	adminHandler     *AdminHandler
	dashboardHandler *DashboardHandler
	pageHandler      *pageHandler

	limiter *submitLimiter
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	v := newValidator()
	return &Server{
		healthHandler:    NewHealthHandler(statsProvider),
		reportsHandler:   NewReportsHandler(deps, v),
		usersHandler:     NewUsersHandler(deps, v),
		statsHandler:     NewStatsHandler(deps),
		adminHandler:     NewAdminHandler(deps, cfg.now),
		dashboardHandler: NewDashboardHandler(deps, cfg.log),
		pageHandler:      newPageHandler(),
		limiter:          newSubmitLimiter(cfg.submitPerMinute, cfg.submitBurst),
	}
}

// CloseStreams ends every dashboard event stream with a "closed" event.
// Register it with http.Server.RegisterOnShutdown so open streams do not
// hold up a graceful shutdown.
func (s *Server) CloseStreams() {
	s.dashboardHandler.hub.closeAll()
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /dashboard", s.pageHandler.HandleDashboardPage)

	mux.HandleFunc("POST /reports", MetricsMiddleware(s.limiter.Middleware(s.reportsHandler.HandleSubmit), "reports"))
	mux.HandleFunc("GET /reports", MetricsMiddleware(s.reportsHandler.HandleList, "reports"))
	mux.HandleFunc("POST /reports/bulk-delete", MetricsMiddleware(s.reportsHandler.HandleBulkDelete, "reports_bulk_delete"))
	mux.HandleFunc("GET /reports/{id}", MetricsMiddleware(s.reportsHandler.HandleGet, "report"))
	mux.HandleFunc("PATCH /reports/{id}", MetricsMiddleware(s.reportsHandler.HandlePatch, "report"))
	mux.HandleFunc("DELETE /reports/{id}", MetricsMiddleware(s.reportsHandler.HandleDelete, "report"))

	mux.HandleFunc("GET /users", MetricsMiddleware(s.usersHandler.HandleList, "users"))
	mux.HandleFunc("POST /users", MetricsMiddleware(s.usersHandler.HandleSave, "users"))
	mux.HandleFunc("DELETE /users/{id}", MetricsMiddleware(s.usersHandler.HandleDelete, "user"))

	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /facilities", MetricsMiddleware(s.statsHandler.HandleFacilities, "facilities"))

	mux.HandleFunc("POST /dashboards", MetricsMiddleware(s.dashboardHandler.HandleOpen, "dashboards"))
	mux.HandleFunc("GET /dashboards/{id}", MetricsMiddleware(s.dashboardHandler.HandleView, "dashboard"))
	mux.HandleFunc("PUT /dashboards/{id}/filters", MetricsMiddleware(s.dashboardHandler.HandleFilters, "dashboard_filters"))
	mux.HandleFunc("POST /dashboards/{id}/reset", MetricsMiddleware(s.dashboardHandler.HandleReset, "dashboard_reset"))
	mux.HandleFunc("DELETE /dashboards/{id}", MetricsMiddleware(s.dashboardHandler.HandleClose, "dashboard"))
	// No metrics wrapper: the stream must keep http.Flusher.
	mux.HandleFunc("GET /dashboards/{id}/events", s.dashboardHandler.HandleEvents)

	mux.HandleFunc("GET /admin/system-stats", MetricsMiddleware(s.adminHandler.HandleSystemStats, "admin_system_stats"))
	mux.HandleFunc("GET /admin/export", MetricsMiddleware(s.adminHandler.HandleExport, "admin_export"))
	mux.HandleFunc("GET /admin/backup", MetricsMiddleware(s.adminHandler.HandleBackup, "admin_backup"))
	mux.HandleFunc("POST /admin/restore", MetricsMiddleware(s.adminHandler.HandleRestore, "admin_restore"))
}

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	resp := errorResponse{Code: code, Message: msg}
	var fe fieldErrors
	if errors.As(err, &fe) {
		resp.Fields = fe
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps errors from the service layer to a status and code.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrDashboardNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrValidation),
		errors.Is(err, stats.ErrInvalidFilter),
		errors.Is(err, repository.ErrInvalidPatch),
		errors.Is(err, export.ErrUnknownFormat),
		errors.Is(err, export.ErrInvalidBackup),
		errors.Is(err, service.ErrNoReportIDs):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrDashboardLimit),
		errors.Is(err, repository.ErrStorage):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, op string, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
