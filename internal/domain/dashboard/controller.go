// Package dashboard holds the per-viewer dashboard state: the cached report
// collection, the active filters, and the last view rendered from them.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/stats"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

// View is everything a dashboard renders after one change.
type View struct {
	Generation uint64                 `json:"generation"`
	Stats      stats.View             `json:"stats"`
	Total      int                    `json:"total"`
	Filter     stats.FilterState      `json:"filter"`
	Options    stats.FilterOptions    `json:"options"`
	Severity   map[stats.Severity]int `json:"severity"`
	Recent     []model.Report         `json:"recent"`
	Error      string                 `json:"error,omitempty"`
}

// Publisher receives every rendered view. Publish is called with the
// controller lock held, so it must not call back into the controller.
type Publisher interface {
	Publish(ctx context.Context, v View)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, v View)

// Publish calls f(ctx, v).
func (f PublisherFunc) Publish(ctx context.Context, v View) { f(ctx, v) }

// Controller re-renders the dashboard whenever the collection or the
// filters change.
type Controller struct {
	mu sync.Mutex

	reports     []model.Report
	state       stats.FilterState
	initialized bool
	last        View
	generation  uint64

	publisher Publisher
	log       logger.Logger
}

// NewController creates a controller with no data and no filters.
func NewController(opts ...Option) *Controller {
	c := &Controller{log: logger.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnFeedUpdate replaces the cached collection and re-renders with the
// current filters. The first call performs the initial render.
func (c *Controller) OnFeedUpdate(ctx context.Context, reports []model.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reports = reports
	if !c.initialized {
		c.initialized = true
		c.log.Debug(ctx, "initial render", logger.Int("reports", len(reports)))
	}
	c.renderLocked(ctx, "")
}

// OnFeedError publishes the current view annotated with err. The cached
// collection and filters are kept.
func (c *Controller) OnFeedError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Warn(ctx, "live updates stopped", logger.Error(err))
	c.renderLocked(ctx, err.Error())
}

// OnFilterChanged replaces the filters and re-renders over the cached
// collection. An invalid state is rejected and the previous one kept.
// Before the first feed update the state is stored without rendering.
func (c *Controller) OnFilterChanged(ctx context.Context, state stats.FilterState) error {
	state = state.Normalize()
	if _, err := state.Compile(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = state
	if c.initialized {
		c.renderLocked(ctx, "")
	}
	return nil
}

// Reset clears every filter and re-renders over the full collection.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = stats.FilterState{}
	if c.initialized {
		c.renderLocked(ctx, "")
	}
}

// View returns the last rendered view; ok is false before the first render.
func (c *Controller) View() (v View, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.generation > 0
}

// Filter returns the active filter state.
func (c *Controller) Filter() stats.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) renderLocked(ctx context.Context, errMsg string) {
	// Compile cannot fail here: every stored state was validated.
	match, err := c.state.Compile()
	if err != nil {
		match = stats.All
	}

	start := time.Now()
	view := stats.Aggregate(c.reports, match)
	filtered := stats.Filter(c.reports, match)
	metrics.RecordAggregation(float64(time.Since(start).Microseconds())/1000.0, len(c.reports))

	c.generation++
	c.last = View{
		Generation: c.generation,
		Stats:      view,
		Total:      len(filtered),
		Filter:     c.state,
		Options:    stats.Options(c.reports),
		Severity:   stats.SeverityCounts(view.Outcome),
		Recent:     stats.Recent(filtered, stats.RecentRows),
		Error:      errMsg,
	}

	if c.publisher != nil {
		c.publisher.Publish(ctx, c.last)
		metrics.RecordDashboardPublish()
	}
}
