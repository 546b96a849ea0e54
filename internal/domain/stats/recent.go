package stats

import "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"

// RecentRows is how many reports the general table shows.
const RecentRows = 10

// Recent returns up to n reports, newest first. The input is not reordered.
func Recent(reports []model.Report, n int) []model.Report {
	if n <= 0 {
		return []model.Report{}
	}
	sorted := append([]model.Report(nil), reports...)
	model.SortNewestFirst(sorted)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []model.Report{}
	}
	return sorted
}
