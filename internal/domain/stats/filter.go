package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// FilterState holds the dashboard selections. Empty fields match everything.
type FilterState struct {
	Facility  string `json:"facility"`
	Unit      string `json:"unit"`
	Detection string `json:"detection"`
	DateStart string `json:"dateStart"` // YYYY-MM-DD, inclusive
	DateEnd   string `json:"dateEnd"`   // YYYY-MM-DD, inclusive through 23:59:59.999
}

// IsZero reports whether no criterion is set.
func (f FilterState) IsZero() bool {
	return f == FilterState{}
}

// Normalize trims whitespace from every field.
func (f FilterState) Normalize() FilterState {
	return FilterState{
		Facility:  strings.TrimSpace(f.Facility),
		Unit:      strings.TrimSpace(f.Unit),
		Detection: strings.TrimSpace(f.Detection),
		DateStart: strings.TrimSpace(f.DateStart),
		DateEnd:   strings.TrimSpace(f.DateEnd),
	}
}

// Compile builds the conjunctive predicate for f.
//
// Dates compare against the report's event date, not its creation time.
// A report whose event date cannot be parsed is not excluded by the date range.
func (f FilterState) Compile() (Predicate, error) {
	f = f.Normalize()

	var (
		start, end       time.Time
		hasStart, hasEnd bool
	)
	if f.DateStart != "" {
		t, ok := model.ParseInstant(f.DateStart)
		if !ok {
			return nil, fmt.Errorf("%w: dateStart %q", ErrInvalidFilter, f.DateStart)
		}
		start, hasStart = t, true
	}
	if f.DateEnd != "" {
		t, ok := model.ParseInstant(f.DateEnd)
		if !ok {
			return nil, fmt.Errorf("%w: dateEnd %q", ErrInvalidFilter, f.DateEnd)
		}
		end, hasEnd = endOfDay(t), true
	}
	if f.IsZero() {
		return All, nil
	}

	return func(r model.Report) bool {
		if f.Facility != "" && r.Facility != f.Facility {
			return false
		}
		if f.Unit != "" && r.Setting != f.Unit {
			return false
		}
		if f.Detection != "" && r.Detection != f.Detection {
			return false
		}
		if hasStart || hasEnd {
			d, ok := r.EventDate()
			if !ok {
				return true
			}
			if hasStart && d.Before(start) {
				return false
			}
			if hasEnd && d.After(end) {
				return false
			}
		}
		return true
	}, nil
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
