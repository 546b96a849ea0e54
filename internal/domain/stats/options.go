package stats

import (
	"sort"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// Option is one selectable filter value with its display label.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterOptions lists the distinct non-empty values seen in a report collection.
type FilterOptions struct {
	Facilities []Option `json:"facilities"`
	Units      []Option `json:"units"`
	Detections []Option `json:"detections"`
}

var unitLabels = map[string]string{
	"ae":         "A&E",
	"outpatient": "Outpatient",
	"pharmacy":   "Pharmacy",
}

// UnitLabel returns the display name of a setting.
func UnitLabel(unit string) string {
	if l, ok := unitLabels[unit]; ok {
		return l
	}
	return unit
}

// Options collects sorted, distinct selector values from reports.
func Options(reports []model.Report) FilterOptions {
	facilities := map[string]struct{}{}
	units := map[string]struct{}{}
	detections := map[string]struct{}{}
	for _, r := range reports {
		if r.Facility != "" {
			facilities[r.Facility] = struct{}{}
		}
		if r.Setting != "" {
			units[r.Setting] = struct{}{}
		}
		if r.Detection != "" {
			detections[r.Detection] = struct{}{}
		}
	}
	return FilterOptions{
		Facilities: toOptions(facilities, nil),
		Units:      toOptions(units, UnitLabel),
		Detections: toOptions(detections, nil),
	}
}

func toOptions(set map[string]struct{}, label func(string) string) []Option {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v}
		if label != nil {
			out[i].Label = label(v)
		}
	}
	return out
}
