package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/export"
)

// AdminHandler serves system statistics, export, backup and restore.
type AdminHandler struct {
	deps Dependencies
	now  func() time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps Dependencies, now func() time.Time) *AdminHandler {
	if now == nil {
		now = time.Now
	}
	return &AdminHandler{deps: deps, now: now}
}

// HandleSystemStats handles GET /admin/system-stats.
func (h *AdminHandler) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.SystemStats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleExport handles GET /admin/export?format=csv|json|xlsx.
func (h *AdminHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	// Buffer so a backend failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := h.deps.Export(r.Context(), &buf, format); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// HandleBackup handles GET /admin/backup.
func (h *AdminHandler) HandleBackup(w http.ResponseWriter, r *http.Request) {
	b, err := h.deps.Backup(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBackup(&buf, b); err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.BackupFilename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type restoreResponse struct {
	Users   int `json:"users"`
	Reports int `json:"reports"`
}

// HandleRestore handles POST /admin/restore with a backup document. Both
// collections are replaced.
func (h *AdminHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	const op = "api.restore"
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := export.ReadBackup(r.Body)
	if err != nil {
		writeServiceError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Restore(r.Context(), b); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restoreResponse{Users: len(b.Users), Reports: len(b.Reports)})
}
