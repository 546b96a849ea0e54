package api

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// fieldErrors maps a JSON field name to the rule it failed.
type fieldErrors map[string]string

func (fe fieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe[k]
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field errors by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("instant", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseInstant(fl.Field().String())
		return ok
	})
	return v
}

// toFieldErrors converts validator output into fieldErrors tagged with op.
func toFieldErrors(op string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return WrapKind(op, ErrValidation, err)
	}
	out := make(fieldErrors, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return WrapKind(op, ErrValidation, out)
}

// reportRequest mirrors the OpenAPI schema for POST /reports.
type reportRequest struct {
	Facility       string   `json:"facility" validate:"required,max=200"`
	Setting        string   `json:"setting" validate:"required,max=50"`
	Detection      string   `json:"detection" validate:"max=200"`
	Outcome        string   `json:"outcome" validate:"required,max=200"`
	StaffCategory  string   `json:"staffCategory" validate:"max=100"`
	StaffName      string   `json:"staffName" validate:"max=200"`
	StaffEmail     string   `json:"staffEmail" validate:"omitempty,email"`
	ReporterName   string   `json:"reporterName" validate:"max=200"`
	Description    string   `json:"description" validate:"max=10000"`
	Date           string   `json:"date" validate:"required,instant"`
	Time           string   `json:"time" validate:"max=20"`
	ClinicErrors   []string `json:"clinicErrors" validate:"dive,required"`
	PharmacyErrors []string `json:"pharmacyErrors" validate:"dive,required"`
}

func (r reportRequest) toReport() model.Report {
	return model.Report{
		Facility:       strings.TrimSpace(r.Facility),
		Setting:        strings.TrimSpace(r.Setting),
		Detection:      r.Detection,
		Outcome:        r.Outcome,
		StaffCategory:  r.StaffCategory,
		StaffName:      r.StaffName,
		StaffEmail:     r.StaffEmail,
		ReporterName:   r.ReporterName,
		Description:    r.Description,
		Date:           r.Date,
		Time:           r.Time,
		ClinicErrors:   r.ClinicErrors,
		PharmacyErrors: r.PharmacyErrors,
	}
}

// patchRules validates the patchable report fields that have a format.
var patchRules = map[string]string{
	"facility":   "required",
	"setting":    "required",
	"outcome":    "required",
	"staffEmail": "omitempty,email",
	"date":       "required,instant",
}

// validatePatch checks the formatted fields a patch touches. Type
// mismatches are left to the merge, which rejects them.
func validatePatch(v *validator.Validate, op string, patch map[string]any) error {
	if len(patch) == 0 {
		return NewKind(op, ErrBadRequest)
	}
	out := fieldErrors{}
	for field, rule := range patchRules {
		raw, ok := patch[field]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			out[field] = "string"
			continue
		}
		if err := v.Var(s, rule); err != nil {
			var ve validator.ValidationErrors
			if errors.As(err, &ve) && len(ve) > 0 {
				out[field] = ve[0].Tag()
			} else {
				out[field] = fmt.Sprint(err)
			}
		}
	}
	if len(out) > 0 {
		return WrapKind(op, ErrValidation, out)
	}
	return nil
}

// userRequest mirrors the OpenAPI schema for POST /users.
type userRequest struct {
	ID       string `json:"id" validate:"max=100"`
	Email    string `json:"email" validate:"required,email"`
	Fullname string `json:"fullname" validate:"max=200"`
	Role     string `json:"role" validate:"required,oneof=admin reporter"`
	Approved bool   `json:"approved"`
}

// bulkDeleteRequest mirrors the OpenAPI schema for POST /reports/bulk-delete.
type bulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}
