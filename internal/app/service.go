// Package service wires the persistence gateway, the change feed and the
// dashboard controllers into the operations served over HTTP.
package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/export"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/feed"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/repository"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/dashboard"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

const (
	defaultChangeQueueSize = 1024
	defaultRecentWindow    = 7 * 24 * time.Hour
	defaultDashboardTTL    = 15 * time.Minute
	defaultMaxDashboards   = 256
	maxReapInterval        = time.Minute
)

// session is one open dashboard and its feed subscription.
type session struct {
	controller  *dashboard.Controller
	unsubscribe feed.Unsubscribe
	publisher   dashboard.Publisher

	// lastSeen and holds are guarded by Service.mu.
	lastSeen time.Time
	holds    int
}

// expired reports whether nobody has touched the session for ttl and no
// stream is holding it open.
func (sess *session) expired(now time.Time, ttl time.Duration) bool {
	return sess.holds == 0 && now.Sub(sess.lastSeen) > ttl
}

// Service implements the API dependencies for report administration and
// live dashboards.
type Service struct {
	mu sync.RWMutex

	// Core components
	gateway *repository.Gateway
	feed    *feed.Feed

	// Configuration
	changeQueueSize int
	recentWindow    time.Duration
	dashboardTTL    time.Duration
	maxDashboards   int
	facilities      []string
	now             func() time.Time
	newID           func() string

	// State
	started    bool
	dashboards map[string]*session
	stopReap   chan struct{}

	// Logging
	logger       logger.Logger
	customLogger bool
}

// New constructs a Service over gw with default configuration.
func New(gw *repository.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway:         gw,
		changeQueueSize: defaultChangeQueueSize,
		recentWindow:    defaultRecentWindow,
		now:             time.Now,
		newID:           uuid.NewString,
		dashboardTTL:    defaultDashboardTTL,
		maxDashboards:   defaultMaxDashboards,
		dashboards:      make(map[string]*session),
		logger:          logger.Nop(), // replaced by the global logger on Start
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the change feed. Calling it twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if !s.customLogger {
		s.logger = logger.Get()
	}

	backend := s.gateway.Backend()
	s.feed = feed.New(s.gateway,
		feed.WithQueueSize(s.changeQueueSize),
		feed.WithLogger(s.logger.Named("feed")),
	)
	s.stopReap = make(chan struct{})
	go s.reapLoop(s.stopReap)
	s.started = true

	s.logger.Info(ctx, "medsafety service started",
		logger.String("backend", backend.Name()),
		logger.Any("push", backend.SupportsPush()),
		logger.Int("changeQueueSize", s.changeQueueSize),
		logger.Int("maxDashboards", s.maxDashboards),
		logger.String("dashboardTTL", s.dashboardTTL.String()),
	)
	return nil
}

func (s *Service) reapLoop(stop <-chan struct{}) {
	interval := s.dashboardTTL / 2
	if interval > maxReapInterval {
		interval = maxReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.ReapIdleDashboards(context.Background())
		}
	}
}

// Stop closes every dashboard, the feed and the backend connection.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(context.Background(), "stopping medsafety service...")

	close(s.stopReap)
	for id, sess := range s.dashboards {
		sess.unsubscribe()
		delete(s.dashboards, id)
	}
	metrics.UpdateActiveDashboards(0)
	s.feed.Close()

	if err := s.gateway.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing backend failed", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "medsafety service stopped")
}

// SubmitReport stores a new report.
func (s *Service) SubmitReport(ctx context.Context, r model.Report) (model.Report, error) {
	saved, err := s.gateway.SaveReport(ctx, r)
	if err != nil {
		return model.Report{}, err
	}
	s.logger.Info(ctx, "report submitted",
		logger.String("id", saved.ID),
		logger.String("facility", saved.Facility))
	return saved, nil
}

// ListReports returns reports newest first, narrowed by a search query and
// the admin list filter.
func (s *Service) ListReports(ctx context.Context, query string, lf stats.ListFilter) ([]model.Report, error) {
	match, err := lf.Compile()
	if err != nil {
		return nil, err
	}
	reports, err := s.gateway.GetAllReports(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Filter(stats.Search(reports, query), match), nil
}

// GetReport returns a report by id.
func (s *Service) GetReport(ctx context.Context, id string) (model.Report, error) {
	return s.gateway.GetReport(ctx, id)
}

// UpdateReport merges patch into a stored report.
func (s *Service) UpdateReport(ctx context.Context, id string, patch map[string]any) (model.Report, error) {
	return s.gateway.UpdateReport(ctx, id, patch)
}

// DeleteReport removes a report by id.
func (s *Service) DeleteReport(ctx context.Context, id string) error {
	return s.gateway.DeleteReport(ctx, id)
}

// BulkDeleteReports removes several reports and returns how many existed.
func (s *Service) BulkDeleteReports(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, ErrNoReportIDs
	}
	return s.gateway.BulkDeleteReports(ctx, ids)
}

// ListUsers returns every user record.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.gateway.GetAllUsers(ctx)
}

// SaveUser creates or replaces a user record.
func (s *Service) SaveUser(ctx context.Context, u model.User) (model.User, error) {
	return s.gateway.SaveUser(ctx, u)
}

// DeleteUser removes a user. An unknown id is not an error.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.gateway.DeleteUser(ctx, id)
}

// Facilities returns the configured facility list.
func (s *Service) Facilities() []string {
	return append([]string(nil), s.facilities...)
}

// Stats aggregates the current collection under fs without any dashboard
// state. The second result is the number of reports that matched.
func (s *Service) Stats(ctx context.Context, fs stats.FilterState) (stats.View, int, error) {
	match, err := fs.Compile()
	if err != nil {
		return stats.View{}, 0, err
	}
	reports, err := s.gateway.GetAllReports(ctx)
	if err != nil {
		return stats.View{}, 0, err
	}
	start := time.Now()
	view := stats.Aggregate(reports, match)
	metrics.RecordAggregation(float64(time.Since(start).Microseconds())/1000.0, len(reports))
	return view, stats.Total(view.Facility), nil
}

// SystemStats summarizes both collections for the admin overview.
func (s *Service) SystemStats(ctx context.Context) (stats.SystemStats, error) {
	reports, err := s.gateway.GetAllReports(ctx)
	if err != nil {
		return stats.SystemStats{}, err
	}
	users, err := s.gateway.GetAllUsers(ctx)
	if err != nil {
		return stats.SystemStats{}, err
	}
	return stats.System(reports, users, s.now(), s.recentWindow), nil
}

// Export writes every report in format f.
func (s *Service) Export(ctx context.Context, w io.Writer, f export.Format) error {
	reports, err := s.gateway.GetAllReports(ctx)
	if err != nil {
		return err
	}
	return export.Write(w, f, reports, stats.Aggregate(reports, nil))
}

// Backup snapshots both collections.
func (s *Service) Backup(ctx context.Context) (export.Backup, error) {
	users, err := s.gateway.GetAllUsers(ctx)
	if err != nil {
		return export.Backup{}, err
	}
	reports, err := s.gateway.GetAllReports(ctx)
	if err != nil {
		return export.Backup{}, err
	}
	return export.NewBackup(users, reports, s.now()), nil
}

// Restore replaces both collections with the contents of b. Reports are
// replaced before users; a failure in between leaves the old users in place.
func (s *Service) Restore(ctx context.Context, b export.Backup) error {
	if err := s.gateway.Restore(ctx, b.Reports, b.Users); err != nil {
		return err
	}
	s.logger.Info(ctx, "data restored from backup",
		logger.Int("reports", len(b.Reports)),
		logger.Int("users", len(b.Users)),
		logger.String("backupTimestamp", b.Timestamp))
	return nil
}

// OpenDashboard creates a dashboard controller publishing to pub and
// subscribes it to the change feed. The initial render has happened when
// OpenDashboard returns.
func (s *Service) OpenDashboard(ctx context.Context, pub dashboard.Publisher) (string, error) {
	s.mu.RLock()
	started, f, open := s.started, s.feed, len(s.dashboards)
	s.mu.RUnlock()
	if !started {
		return "", ErrNotStarted
	}
	if open >= s.maxDashboards {
		return "", ErrDashboardLimit
	}

	id := s.newID()
	ctrl := dashboard.NewController(
		dashboard.WithPublisher(pub),
		dashboard.WithLogger(s.logger.Named("dashboard")),
	)
	// Feed callbacks outlive the request that opened the dashboard.
	cbCtx := context.WithoutCancel(ctx)
	unsubscribe, err := f.Subscribe(ctx, func(u feed.Update) {
		if u.Err != nil {
			ctrl.OnFeedError(cbCtx, u.Err)
			return
		}
		ctrl.OnFeedUpdate(cbCtx, u.Reports)
	})
	if err != nil {
		return "", fmt.Errorf("subscribe dashboard: %w", err)
	}

	s.mu.Lock()
	if len(s.dashboards) >= s.maxDashboards {
		s.mu.Unlock()
		unsubscribe()
		return "", ErrDashboardLimit
	}
	s.dashboards[id] = &session{
		controller:  ctrl,
		unsubscribe: unsubscribe,
		publisher:   pub,
		lastSeen:    s.now(),
	}
	n := len(s.dashboards)
	s.mu.Unlock()
	metrics.UpdateActiveDashboards(n)

	s.logger.Debug(ctx, "dashboard opened", logger.String("id", id))
	return id, nil
}

// Dashboard returns the controller of an open dashboard and marks it as
// recently used.
func (s *Service) Dashboard(id string) (*dashboard.Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.dashboards[id]
	if !ok {
		return nil, ErrDashboardNotFound
	}
	sess.lastSeen = s.now()
	return sess.controller, nil
}

// HoldDashboard keeps a dashboard from being reaped until release is
// called, for as long as a client is streaming its views.
func (s *Service) HoldDashboard(id string) (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.dashboards[id]
	if !ok {
		return nil, ErrDashboardNotFound
	}
	sess.holds++
	sess.lastSeen = s.now()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			sess.holds--
			sess.lastSeen = s.now()
		})
	}, nil
}

// ReapIdleDashboards closes every dashboard that has been idle for longer
// than the configured TTL and is not held. It returns how many were closed.
func (s *Service) ReapIdleDashboards(ctx context.Context) int {
	s.mu.Lock()
	now := s.now()
	var idle []*session
	for id, sess := range s.dashboards {
		if sess.expired(now, s.dashboardTTL) {
			idle = append(idle, sess)
			delete(s.dashboards, id)
			s.logger.Info(ctx, "reaping idle dashboard",
				logger.String("id", id),
				logger.String("idleFor", now.Sub(sess.lastSeen).String()))
		}
	}
	n := len(s.dashboards)
	s.mu.Unlock()
	if len(idle) == 0 {
		return 0
	}

	for _, sess := range idle {
		sess.unsubscribe()
		if c, ok := sess.publisher.(interface{ Close() }); ok {
			c.Close()
		}
	}
	metrics.UpdateActiveDashboards(n)
	return len(idle)
}

// CloseDashboard unsubscribes and forgets a dashboard.
func (s *Service) CloseDashboard(ctx context.Context, id string) error {
	s.mu.Lock()
	sess, ok := s.dashboards[id]
	delete(s.dashboards, id)
	n := len(s.dashboards)
	s.mu.Unlock()
	if !ok {
		return ErrDashboardNotFound
	}

	sess.unsubscribe()
	metrics.UpdateActiveDashboards(n)
	s.logger.Debug(ctx, "dashboard closed", logger.String("id", id))
	return nil
}

// GetStats returns service status for health checks and monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backend := s.gateway.Backend()
	out := map[string]interface{}{
		"started":    s.started,
		"backend":    backend.Name(),
		"push":       backend.SupportsPush(),
		"dashboards": len(s.dashboards),
	}
	if s.started {
		subscribers := s.feed.Subscribers()
		out["subscribers"] = subscribers

		metrics.UpdateFeedSubscribers(subscribers)
		metrics.UpdateActiveDashboards(len(s.dashboards))
	}
	return out
}
