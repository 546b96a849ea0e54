package stats

import "strings"

// Severity is the display bucket of an outcome string.
type Severity string

const (
	SeverityUnknown Severity = "secondary" // no outcome recorded
	SeverityNoHarm  Severity = "warning"
	SeverityHarm    Severity = "danger"
	SeverityNoError Severity = "success"
	SeverityOther   Severity = "primary"
)

// Classify buckets a free-text outcome. "no harm" is checked before "harm".
func Classify(outcome string) Severity {
	if outcome == "" {
		return SeverityUnknown
	}
	lower := strings.ToLower(outcome)
	switch {
	case strings.Contains(lower, "no harm"):
		return SeverityNoHarm
	case strings.Contains(lower, "harm"):
		return SeverityHarm
	case strings.Contains(lower, "no error"):
		return SeverityNoError
	default:
		return SeverityOther
	}
}

// SeverityCounts groups an outcome mapping by severity bucket.
func SeverityCounts(outcomes map[string]int) map[Severity]int {
	out := make(map[Severity]int, 5)
	for outcome, n := range outcomes {
		out[Classify(outcome)] += n
	}
	return out
}
