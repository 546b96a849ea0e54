package stats

import (
	"fmt"
	"strings"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// anyValue is the selector value meaning "no restriction" in admin lists.
const anyValue = "all"

// Search keeps reports whose facility, staff name, staff email or
// description contains query, ignoring case. An empty query keeps all.
func Search(reports []model.Report, query string) []model.Report {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Filter(reports, All)
	}
	return Filter(reports, func(r model.Report) bool {
		return strings.Contains(strings.ToLower(r.Facility), q) ||
			strings.Contains(strings.ToLower(r.StaffName), q) ||
			strings.Contains(strings.ToLower(r.StaffEmail), q) ||
			strings.Contains(strings.ToLower(r.Description), q)
	})
}

// ListFilter narrows the admin report list. "all" or empty leaves a field unset.
type ListFilter struct {
	Facility string
	Setting  string
	DateFrom string // YYYY-MM-DD, inclusive
	DateTo   string // YYYY-MM-DD, inclusive at midnight
}

// Compile builds the predicate. Unlike the dashboard filter, a report whose
// event date cannot be parsed is excluded once any date bound is set.
func (l ListFilter) Compile() (Predicate, error) {
	facility := unsetIfAll(l.Facility)
	setting := unsetIfAll(l.Setting)

	bound := func(name, raw string) (func(model.Report) bool, error) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, nil
		}
		limit, ok := model.ParseInstant(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q", ErrInvalidFilter, name, raw)
		}
		if name == "dateFrom" {
			return func(r model.Report) bool {
				d, ok := r.EventDate()
				return ok && !d.Before(limit)
			}, nil
		}
		return func(r model.Report) bool {
			d, ok := r.EventDate()
			return ok && !d.After(limit)
		}, nil
	}

	fromOK, err := bound("dateFrom", l.DateFrom)
	if err != nil {
		return nil, err
	}
	toOK, err := bound("dateTo", l.DateTo)
	if err != nil {
		return nil, err
	}

	return func(r model.Report) bool {
		if facility != "" && r.Facility != facility {
			return false
		}
		if setting != "" && r.Setting != setting {
			return false
		}
		if fromOK != nil && !fromOK(r) {
			return false
		}
		if toOK != nil && !toOK(r) {
			return false
		}
		return true
	}, nil
}

func unsetIfAll(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, anyValue) {
		return ""
	}
	return v
}
