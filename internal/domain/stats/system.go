package stats

import (
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

// SystemStats summarizes the whole store for the admin overview.
type SystemStats struct {
	TotalReports  int            `json:"totalReports"`
	TotalUsers    int            `json:"totalUsers"`
	RecentReports int            `json:"recentReports"`
	FacilityStats map[string]int `json:"facilityStats"`
	SettingStats  map[string]int `json:"settingStats"`
	LatestReport  *model.Report  `json:"latestReport"`
}

// System computes SystemStats. A report is recent when its createdAt falls
// within window of now. Empty facility and setting values are skipped.
func System(reports []model.Report, users []model.User, now time.Time, window time.Duration) SystemStats {
	out := SystemStats{
		TotalReports:  len(reports),
		TotalUsers:    len(users),
		FacilityStats: map[string]int{},
		SettingStats:  map[string]int{},
	}
	since := now.Add(-window)

	var (
		latest    *model.Report
		latestKey time.Time
	)
	for i := range reports {
		r := reports[i]
		if r.Facility != "" {
			out.FacilityStats[r.Facility]++
		}
		if r.Setting != "" {
			out.SettingStats[r.Setting]++
		}
		if created, ok := model.ParseInstant(r.CreatedAt); ok && !created.Before(since) {
			out.RecentReports++
		}
		key, ok := r.OrderKey()
		switch {
		case latest == nil:
			c := r.Clone()
			latest, latestKey = &c, key
		case ok && key.After(latestKey):
			c := r.Clone()
			latest, latestKey = &c, key
		}
	}
	out.LatestReport = latest
	return out
}
