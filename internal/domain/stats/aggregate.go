// Package stats turns report collections into grouped counts for charts and tables.
//
// Everything here is a pure function of its inputs. Callers may share the
// same report slice across goroutines as long as nobody writes to it.
package stats

import (
	"sort"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// maxFrequencyRows caps the ranked frequency table.
const maxFrequencyRows = 10

// FrequencyRow is one (facility, unit, outcome) group of the frequency table.
type FrequencyRow struct {
	Facility string `json:"facility"`
	Unit     string `json:"unit"`
	Category string `json:"cat"` // outcome
	Count    int    `json:"count"`
}

// View is the aggregation result handed to renderers. Maps are never nil.
type View struct {
	Facility       map[string]int `json:"facility"`
	Unit           map[string]int `json:"unit"`
	Outcome        map[string]int `json:"outcome"`
	StaffCategory  map[string]int `json:"staffCategory"`
	ClinicErrors   map[string]int `json:"clinicErrors"`
	PharmacyErrors map[string]int `json:"pharmacyErrors"`
	FrequencyData  []FrequencyRow `json:"frequencyData"`
}

// Predicate selects the reports that take part in an aggregation.
type Predicate func(model.Report) bool

// All matches every report.
func All(model.Report) bool { return true }

// NewView returns a View with empty, non-nil collections.
func NewView() View {
	return View{
		Facility:       map[string]int{},
		Unit:           map[string]int{},
		Outcome:        map[string]int{},
		StaffCategory:  map[string]int{},
		ClinicErrors:   map[string]int{},
		PharmacyErrors: map[string]int{},
		FrequencyData:  []FrequencyRow{},
	}
}

// Aggregate counts the reports that satisfy match. A nil match counts all of them.
// Missing fields group under the empty string key. The input is not modified.
func Aggregate(reports []model.Report, match Predicate) View {
	if match == nil {
		match = All
	}
	v := NewView()

	type freqKey struct{ facility, unit, outcome string }
	groups := make(map[freqKey]int) // index into v.FrequencyData

	for i := range reports {
		r := &reports[i]
		if !match(*r) {
			continue
		}
		v.Facility[r.Facility]++
		v.Unit[r.Setting]++
		v.Outcome[r.Outcome]++
		v.StaffCategory[r.StaffCategory]++
		for _, tag := range r.ClinicErrors {
			v.ClinicErrors[tag]++
		}
		for _, tag := range r.PharmacyErrors {
			v.PharmacyErrors[tag]++
		}

		k := freqKey{r.Facility, r.Setting, r.Outcome}
		idx, ok := groups[k]
		if !ok {
			idx = len(v.FrequencyData)
			groups[k] = idx
			v.FrequencyData = append(v.FrequencyData, FrequencyRow{
				Facility: r.Facility,
				Unit:     r.Setting,
				Category: r.Outcome,
			})
		}
		v.FrequencyData[idx].Count++
	}

	// Stable keeps first-occurrence order among equal counts.
	sort.SliceStable(v.FrequencyData, func(i, j int) bool {
		return v.FrequencyData[i].Count > v.FrequencyData[j].Count
	})
	if len(v.FrequencyData) > maxFrequencyRows {
		v.FrequencyData = v.FrequencyData[:maxFrequencyRows]
	}
	return v
}

// Filter returns the reports that satisfy match, preserving order.
func Filter(reports []model.Report, match Predicate) []model.Report {
	if match == nil {
		match = All
	}
	out := make([]model.Report, 0, len(reports))
	for _, r := range reports {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Total sums the values of a count mapping.
func Total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}
	return n
}
