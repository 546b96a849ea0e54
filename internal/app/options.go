package service

import (
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
			s.customLogger = true
		}
	}
}

// WithChangeQueueSize bounds the pending change notifications of the feed.
func WithChangeQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.changeQueueSize = size
		}
	}
}

// WithRecentWindow sets what "recent" means for the system statistics.
func WithRecentWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recentWindow = d
		}
	}
}

// WithFacilities sets the facility list offered to reporters.
func WithFacilities(facilities []string) Option {
	return func(s *Service) {
		s.facilities = append([]string(nil), facilities...)
	}
}

// WithClock overrides the time source for backups and system statistics.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how dashboard ids are minted.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithDashboardIdleTTL sets how long a dashboard may go untouched before it
// is reaped. Dashboards with a connected event stream are never reaped.
func WithDashboardIdleTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.dashboardTTL = d
		}
	}
}

// WithMaxDashboards caps how many dashboards may be open at once.
func WithMaxDashboards(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDashboards = n
		}
	}
}
