// Package feed delivers the report collection to subscribers, once on
// request or continuously while the backend pushes change notifications.
//
// Each live subscription receives the full collection immediately and again
// after every committed change. Deliveries are serialized: callbacks never
// run concurrently with each other. A callback must not call Subscribe.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/mq/queue"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/mq/worker"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/repository"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/metrics"
)

const defaultQueueSize = 1024

// Source is the slice of the persistence gateway the feed reads from.
type Source interface {
	GetAllReports(ctx context.Context) ([]model.Report, error)
	WatchReports(ctx context.Context) (<-chan repository.Event, error)
}

// Update is one delivery. Exactly one of Reports or Err is meaningful.
// Reports is shared between subscribers and must be treated as read-only.
type Update struct {
	Reports []model.Report
	Err     error
}

// Callback receives updates.
type Callback func(Update)

// Unsubscribe detaches a subscription. It is safe to call more than once
// and from inside the subscription's own callback. No invocation of the
// callback starts after it returns.
type Unsubscribe func()

type observer struct {
	id uint64
	cb Callback

	// callMu is held from the detached check until cb returns, so a detach
	// from another goroutine waits out a delivery that already passed the
	// check. inCallback lets a detach from inside cb skip that wait.
	callMu     sync.Mutex
	detached   atomic.Bool
	inCallback atomic.Bool
}

// deliver invokes cb unless the observer has been detached.
func (o *observer) deliver(u Update) bool {
	o.callMu.Lock()
	defer o.callMu.Unlock()
	if o.detached.Load() {
		return false
	}
	o.inCallback.Store(true)
	defer o.inCallback.Store(false)
	o.cb(u)
	return true
}

// detach stops further deliveries. When it returns no new invocation of cb
// can start.
func (o *observer) detach() {
	o.detached.Store(true)
	if o.inCallback.Load() {
		// A delivery is running; it started before this call.
		return
	}
	o.callMu.Lock()
	o.callMu.Unlock() //nolint:staticcheck // waits for an in-flight check
}

// Feed fans the report collection out to subscribers.
type Feed struct {
	src       Source
	log       logger.Logger
	queueSize int

	// dispatchMu serializes every delivery, including each subscriber's
	// initial snapshot, so no observer sees a change before its snapshot.
	dispatchMu sync.Mutex

	mu        sync.Mutex
	observers map[uint64]*observer
	nextID    atomic.Uint64
	pump      *pump
}

// New creates a Feed over src.
func New(src Source, opts ...Option) *Feed {
	f := &Feed{
		src:       src,
		log:       logger.Nop(),
		queueSize: defaultQueueSize,
		observers: make(map[uint64]*observer),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchOnce returns the current collection, newest first.
func (f *Feed) FetchOnce(ctx context.Context) ([]model.Report, error) {
	return f.src.GetAllReports(ctx)
}

// Subscribe registers cb and invokes it with the current collection before
// returning. With a push-capable backend cb is invoked again after every
// change until Unsubscribe is called or the change stream fails; a failure
// is delivered once as Update.Err and ends the subscription. Without push
// support only the initial snapshot is delivered.
func (f *Feed) Subscribe(ctx context.Context, cb Callback) (Unsubscribe, error) {
	if cb == nil {
		return nil, ErrNilCallback
	}

	f.dispatchMu.Lock()
	defer f.dispatchMu.Unlock()

	// Start watching before taking the snapshot so a write landing in
	// between is seen by the pump and re-fetched afterwards.
	p, startedPump, err := f.ensurePump()
	if err != nil {
		return nil, err
	}

	reports, err := f.src.GetAllReports(ctx)
	if err != nil {
		if startedPump {
			f.stopPumpIfIdle()
		}
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	o := &observer{id: f.nextID.Add(1), cb: cb}
	var unsubscribe Unsubscribe = o.detach
	streamLost := false
	if p != nil {
		f.mu.Lock()
		if f.pump == p {
			f.observers[o.id] = o
			var once sync.Once
			unsubscribe = func() { once.Do(func() { f.unsubscribe(o) }) }
		} else {
			// The stream failed after it was started for us.
			streamLost = true
		}
		n := len(f.observers)
		f.mu.Unlock()
		metrics.UpdateFeedSubscribers(n)
	}

	o.deliver(Update{Reports: reports})
	metrics.RecordFeedNotification()
	if streamLost {
		o.deliver(Update{Err: repository.ErrWatchClosed})
		o.detach()
	}
	return unsubscribe, nil
}

// Subscribers reports how many live subscriptions exist.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

// Close detaches every subscriber without notifying them and stops watching.
func (f *Feed) Close() {
	f.mu.Lock()
	observers := f.takeObserversLocked()
	p := f.pump
	f.pump = nil
	f.mu.Unlock()

	for _, o := range observers {
		o.detach()
	}
	if p != nil {
		p.stop()
	}
	metrics.UpdateFeedSubscribers(0)
}

func (f *Feed) unsubscribe(o *observer) {
	o.detach()

	f.mu.Lock()
	delete(f.observers, o.id)
	n := len(f.observers)
	var idle *pump
	if n == 0 && f.pump != nil {
		idle = f.pump
		f.pump = nil
	}
	f.mu.Unlock()

	metrics.UpdateFeedSubscribers(n)
	if idle != nil {
		idle.stop()
	}
}

// ensurePump returns the running change pump, starting one when needed.
// A nil pump means the backend cannot push.
func (f *Feed) ensurePump() (p *pump, started bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.pump != nil {
		return f.pump, false, nil
	}
	p, err = f.startPump()
	if errors.Is(err, repository.ErrPushUnsupported) {
		return nil, false, nil
	}
	if err != nil {
		metrics.RecordFeedError()
		return nil, false, err
	}
	f.pump = p
	return p, true, nil
}

func (f *Feed) stopPumpIfIdle() {
	f.mu.Lock()
	var idle *pump
	if len(f.observers) == 0 && f.pump != nil {
		idle = f.pump
		f.pump = nil
	}
	f.mu.Unlock()
	if idle != nil {
		idle.stop()
	}
}

// broadcast fetches the collection and hands it to every live observer.
func (f *Feed) broadcast(ctx context.Context) error {
	f.dispatchMu.Lock()
	defer f.dispatchMu.Unlock()

	reports, err := f.src.GetAllReports(ctx)
	if err != nil {
		metrics.RecordFeedError()
		return err
	}

	f.mu.Lock()
	observers := make([]*observer, 0, len(f.observers))
	for _, o := range f.observers {
		observers = append(observers, o)
	}
	f.mu.Unlock()

	for _, o := range observers {
		if o.deliver(Update{Reports: reports}) {
			metrics.RecordFeedNotification()
		}
	}
	return nil
}

// fail ends every subscription of pump p with err, once.
func (f *Feed) fail(p *pump, err error) {
	f.mu.Lock()
	if f.pump != p {
		f.mu.Unlock()
		return
	}
	f.pump = nil
	observers := f.takeObserversLocked()
	f.mu.Unlock()

	p.stop()
	metrics.RecordFeedError()
	metrics.UpdateFeedSubscribers(0)
	f.log.Warn(context.Background(), "change stream failed; subscriptions ended",
		logger.Int("subscribers", len(observers)),
		logger.Error(err))

	f.dispatchMu.Lock()
	defer f.dispatchMu.Unlock()
	for _, o := range observers {
		o.deliver(Update{Err: err})
		o.detach()
	}
}

func (f *Feed) takeObserversLocked() []*observer {
	out := make([]*observer, 0, len(f.observers))
	for id, o := range f.observers {
		out = append(out, o)
		delete(f.observers, id)
	}
	return out
}

// pump moves backend change notifications through a bounded queue to a
// single dispatch worker.
type pump struct {
	cancel context.CancelFunc
	q      *queue.InMemoryQueue
	w      *worker.InMemoryWorker
}

func (p *pump) stop() { p.cancel() }

func (f *Feed) startPump() (*pump, error) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := f.src.WatchReports(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	q := queue.NewInMemoryQueue(queue.WithCapacity(f.queueSize))
	p := &pump{cancel: cancel, q: q}
	p.w = worker.NewInMemoryWorker(q, worker.HandlerFunc(func(ctx context.Context, _ queue.Event) error {
		// Every delivery is a full re-fetch, so a change with later ones
		// still queued is covered by the last of them.
		if q.Len(ctx) > 0 {
			return nil
		}
		return f.broadcast(ctx)
	}), worker.WithName("feed-dispatch"), worker.WithLogger(f.log))

	go p.w.Run(ctx)
	go f.forward(ctx, p, events)
	return p, nil
}

// forward copies the watch stream into the queue. A full queue drops the
// change: the pending ones already guarantee a later re-fetch.
func (f *Feed) forward(ctx context.Context, p *pump, events <-chan repository.Event) {
	for ev := range events {
		if ev.Err != nil {
			_ = p.q.Close()
			select {
			case <-p.w.Done():
			case <-ctx.Done():
			}
			f.fail(p, ev.Err)
			return
		}
		if !p.q.Enqueue(ctx, ev.Change) {
			f.log.Debug(ctx, "change coalesced",
				logger.String("op", string(ev.Change.Op)),
				logger.String("id", ev.Change.ID))
		}
	}
	_ = p.q.Close()
	if ctx.Err() == nil {
		// The stream ended without an error or a cancel.
		f.fail(p, repository.ErrWatchClosed)
	}
}
