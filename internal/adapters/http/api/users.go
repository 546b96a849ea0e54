package api

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// UsersHandler serves user administration.
type UsersHandler struct {
	deps     Dependencies
	validate *validator.Validate
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies, v *validator.Validate) *UsersHandler {
	return &UsersHandler{deps: deps, validate: v}
}

// HandleList handles GET /users.
func (h *UsersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleSave handles POST /users. An existing id is replaced.
func (h *UsersHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_user"
	var req userRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeServiceError(w, toFieldErrors(op, err))
		return
	}
	saved, err := h.deps.SaveUser(r.Context(), model.User{
		ID:       req.ID,
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Fullname: req.Fullname,
		Role:     req.Role,
		Approved: req.Approved || req.Role == "admin",
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleDelete handles DELETE /users/{id}. Unknown ids succeed.
func (h *UsersHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
