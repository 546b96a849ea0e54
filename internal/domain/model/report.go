// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
	"time"
)

// Report is a single medication-error incident record.
// Fields mirror the JSON documents stored by every backend.
type Report struct {
	ID             string   `json:"id"`
	Facility       string   `json:"facility"`
	Setting        string   `json:"setting"` // unit: ae, outpatient, pharmacy
	Detection      string   `json:"detection"`
	Outcome        string   `json:"outcome"`
	StaffCategory  string   `json:"staffCategory"`
	StaffName      string   `json:"staffName"`
	StaffEmail     string   `json:"staffEmail"`
	ReporterName   string   `json:"reporterName"`
	Description    string   `json:"description"`
	Date           string   `json:"date"` // event date, client-local
	Time           string   `json:"time"`
	ClinicErrors   []string `json:"clinicErrors"`
	PharmacyErrors []string `json:"pharmacyErrors"`
	CreatedAt      string   `json:"createdAt"`
	Timestamp      string   `json:"timestamp"`
	UpdatedAt      string   `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy so callers can hand reports across goroutines.
func (r Report) Clone() Report {
	c := r
	if r.ClinicErrors != nil {
		c.ClinicErrors = append([]string(nil), r.ClinicErrors...)
	}
	if r.PharmacyErrors != nil {
		c.PharmacyErrors = append([]string(nil), r.PharmacyErrors...)
	}
	return c
}

// OrderKey is the record-creation instant used for "most recent" ordering.
// Timestamp wins over CreatedAt; ok is false when neither parses.
func (r Report) OrderKey() (time.Time, bool) {
	if t, ok := ParseInstant(r.Timestamp); ok {
		return t, true
	}
	return ParseInstant(r.CreatedAt)
}

// EventDate parses the client-local event date.
func (r Report) EventDate() (time.Time, bool) {
	return ParseInstant(r.Date)
}

// SortNewestFirst orders reports by OrderKey descending in place.
// Reports without a parseable key keep their relative order at the end.
func SortNewestFirst(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		ti, okI := reports[i].OrderKey()
		tj, okJ := reports[j].OrderKey()
		switch {
		case okI && okJ:
			return ti.After(tj)
		case okI:
			return true
		default:
			return false
		}
	})
}

// CloneReports deep-copies a report slice. A nil input yields an empty slice.
func CloneReports(in []Report) []Report {
	out := make([]Report, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

var instantLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstant accepts the timestamp shapes browsers and backends emit.
// Values without a zone are read as UTC.
func ParseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatInstant renders t the way every backend stores timestamps.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
