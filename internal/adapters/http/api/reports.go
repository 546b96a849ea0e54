package api

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
)

// ReportsHandler serves submission and administration of reports.
type ReportsHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(deps Dependencies, v *validator.Validate) *ReportsHandler {
	return &ReportsHandler{deps: deps, validate: v}
}

// HandleSubmit handles POST /reports.
func (h *ReportsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_report"
	var req reportRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeServiceError(w, toFieldErrors(op, err))
		return
	}
	saved, err := h.deps.SubmitReport(r.Context(), req.toReport())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleList handles GET /reports?q=&facility=&setting=&dateFrom=&dateTo=.
func (h *ReportsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lf := stats.ListFilter{
		Facility: q.Get("facility"),
		Setting:  q.Get("setting"),
		DateFrom: q.Get("dateFrom"),
		DateTo:   q.Get("dateTo"),
	}
	reports, err := h.deps.ListReports(r.Context(), strings.TrimSpace(q.Get("q")), lf)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// HandleGet handles GET /reports/{id}.
func (h *ReportsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandlePatch handles PATCH /reports/{id} with a partial report document.
func (h *ReportsHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.patch_report"
	var patch map[string]any
	if err := decodeJSON(w, r, op, &patch); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := validatePatch(h.validate, op, patch); err != nil {
		writeServiceError(w, err)
		return
	}
	updated, err := h.deps.UpdateReport(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleDelete handles DELETE /reports/{id}.
func (h *ReportsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteReport(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

// HandleBulkDelete handles POST /reports/bulk-delete with {"ids": [...]}.
func (h *ReportsHandler) HandleBulkDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.bulk_delete_reports"
	var req bulkDeleteRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeServiceError(w, toFieldErrors(op, err))
		return
	}
	n, err := h.deps.BulkDeleteReports(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bulkDeleteResponse{Deleted: n})
}
