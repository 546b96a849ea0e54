package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/repository"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

type stream struct {
	ch     chan repository.Event
	closed bool
}

// fakeSource is an in-memory gateway with a controllable change stream.
type fakeSource struct {
	mu       sync.Mutex
	reports  []model.Report
	push     bool
	fetchErr error
	watchErr error
	streams  []*stream
	watches  int
}

func (s *fakeSource) GetAllReports(context.Context) ([]model.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return model.CloneReports(s.reports), nil
}

func (s *fakeSource) WatchReports(ctx context.Context) (<-chan repository.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.push {
		return nil, repository.ErrPushUnsupported
	}
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	st := &stream{ch: make(chan repository.Event, 16)}
	s.streams = append(s.streams, st)
	s.watches++
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		if !st.closed {
			st.closed = true
			close(st.ch)
		}
	}()
	return st.ch, nil
}

// add stores a report and announces it on every open stream.
func (s *fakeSource) add(r model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.emitLocked(repository.Event{Change: model.Change{Collection: model.CollectionReports, Op: model.OpSet, ID: r.ID}})
}

// disconnect sends a terminal error and closes every open stream.
func (s *fakeSource) disconnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.streams {
		if !st.closed {
			st.ch <- repository.Event{Err: err}
			st.closed = true
			close(st.ch)
		}
	}
}

func (s *fakeSource) emitLocked(ev repository.Event) {
	for _, st := range s.streams {
		if !st.closed {
			st.ch <- ev
		}
	}
}

func (s *fakeSource) openStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.streams {
		if !st.closed {
			n++
		}
	}
	return n
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) callback(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func (r *recorder) count() int { return len(r.all()) }

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestFeedLocalBackend(t *testing.T) {
	Convey("Given a feed over a backend without push", t, func() {
		ctx := context.Background()
		src := &fakeSource{}
		f := New(src)
		rec := &recorder{}

		unsubscribe, err := f.Subscribe(ctx, rec.callback)
		So(err, ShouldBeNil)

		Convey("Then the empty collection is delivered once before Subscribe returns", func() {
			updates := rec.all()
			So(len(updates), ShouldEqual, 1)
			So(updates[0].Err, ShouldBeNil)
			So(updates[0].Reports, ShouldNotBeNil)
			So(updates[0].Reports, ShouldBeEmpty)
		})

		Convey("Then later writes are not pushed", func() {
			src.add(model.Report{ID: "r1"})
			time.Sleep(20 * time.Millisecond)
			So(rec.count(), ShouldEqual, 1)
			So(f.Subscribers(), ShouldEqual, 0)
		})

		Convey("Then unsubscribing repeatedly is harmless", func() {
			unsubscribe()
			unsubscribe()
		})

		Convey("Then FetchOnce still sees new writes", func() {
			src.add(model.Report{ID: "r1"})
			reports, err := f.FetchOnce(ctx)
			So(err, ShouldBeNil)
			So(len(reports), ShouldEqual, 1)
		})
	})
}

func TestFeedLiveSubscription(t *testing.T) {
	Convey("Given a feed over a push-capable backend", t, func() {
		ctx := context.Background()
		src := &fakeSource{push: true, reports: []model.Report{{ID: "r0"}}}
		f := New(src, WithQueueSize(8))
		defer f.Close()

		first, second := &recorder{}, &recorder{}
		unsubFirst, err := f.Subscribe(ctx, first.callback)
		So(err, ShouldBeNil)
		unsubSecond, err := f.Subscribe(ctx, second.callback)
		So(err, ShouldBeNil)

		Convey("Then each subscriber got exactly one initial snapshot", func() {
			So(first.count(), ShouldEqual, 1)
			So(second.count(), ShouldEqual, 1)
			So(len(first.all()[0].Reports), ShouldEqual, 1)
			So(f.Subscribers(), ShouldEqual, 2)
			So(src.watches, ShouldEqual, 1)
		})

		Convey("When a report is written", func() {
			src.add(model.Report{ID: "r1"})

			Convey("Then both subscribers receive the full new collection", func() {
				latest := func(r *recorder) int {
					all := r.all()
					return len(all[len(all)-1].Reports)
				}
				So(eventually(func() bool { return latest(first) == 2 && latest(second) == 2 }), ShouldBeTrue)
			})
		})

		Convey("When one subscriber detaches", func() {
			unsubFirst()
			unsubFirst()
			before := first.count()
			src.add(model.Report{ID: "r1"})

			Convey("Then only the other keeps receiving", func() {
				So(eventually(func() bool { return second.count() >= 2 }), ShouldBeTrue)
				So(first.count(), ShouldEqual, before)
				So(f.Subscribers(), ShouldEqual, 1)
			})
		})

		Convey("When every subscriber detaches", func() {
			unsubFirst()
			unsubSecond()

			Convey("Then the change stream is released", func() {
				So(eventually(func() bool { return src.openStreams() == 0 }), ShouldBeTrue)
				So(f.Subscribers(), ShouldEqual, 0)
			})
		})
	})
}

func TestFeedSelfUnsubscribe(t *testing.T) {
	Convey("Given a subscriber that detaches from inside its callback", t, func() {
		ctx := context.Background()
		src := &fakeSource{push: true}
		f := New(src)
		defer f.Close()

		var (
			mu    sync.Mutex
			calls int
			unsub Unsubscribe
		)
		ready := make(chan struct{})
		u, err := f.Subscribe(ctx, func(Update) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 2 {
				<-ready
				unsub()
			}
		})
		So(err, ShouldBeNil)
		unsub = u
		close(ready)

		src.add(model.Report{ID: "r1"})
		So(eventually(func() bool { return f.Subscribers() == 0 }), ShouldBeTrue)
		src.add(model.Report{ID: "r2"})
		time.Sleep(20 * time.Millisecond)

		Convey("Then no deadlock occurs and no further calls arrive", func() {
			mu.Lock()
			defer mu.Unlock()
			So(calls, ShouldEqual, 2)
		})
	})
}

func TestFeedStreamFailure(t *testing.T) {
	Convey("Given live subscribers", t, func() {
		ctx := context.Background()
		src := &fakeSource{push: true}
		f := New(src)
		defer f.Close()

		a, b := &recorder{}, &recorder{}
		_, err := f.Subscribe(ctx, a.callback)
		So(err, ShouldBeNil)
		_, err = f.Subscribe(ctx, b.callback)
		So(err, ShouldBeNil)

		Convey("When the backend disconnects", func() {
			cause := errors.New("connection reset")
			src.disconnect(cause)

			Convey("Then each subscriber sees the error exactly once and nothing after", func() {
				hasErr := func(r *recorder) bool {
					for _, u := range r.all() {
						if u.Err != nil {
							return true
						}
					}
					return false
				}
				So(eventually(func() bool { return hasErr(a) && hasErr(b) }), ShouldBeTrue)

				src.add(model.Report{ID: "late"})
				time.Sleep(20 * time.Millisecond)

				for _, r := range []*recorder{a, b} {
					updates := r.all()
					errs := 0
					for _, u := range updates {
						if u.Err != nil {
							errs++
							So(errors.Is(u.Err, cause), ShouldBeTrue)
						}
					}
					So(errs, ShouldEqual, 1)
					So(updates[len(updates)-1].Err, ShouldNotBeNil)
				}
				So(f.Subscribers(), ShouldEqual, 0)
			})

			Convey("Then a fresh Subscribe re-establishes the stream", func() {
				So(eventually(func() bool { return f.Subscribers() == 0 }), ShouldBeTrue)
				c := &recorder{}
				_, err := f.Subscribe(ctx, c.callback)
				So(err, ShouldBeNil)
				So(src.watches, ShouldEqual, 2)

				src.add(model.Report{ID: "again"})
				So(eventually(func() bool { return c.count() == 2 }), ShouldBeTrue)
			})
		})
	})
}

func TestFeedSubscribeErrors(t *testing.T) {
	Convey("Given failing backends", t, func() {
		ctx := context.Background()

		Convey("When the initial fetch fails", func() {
			src := &fakeSource{push: true, fetchErr: errors.New("unreachable")}
			f := New(src)
			rec := &recorder{}

			_, err := f.Subscribe(ctx, rec.callback)

			Convey("Then Subscribe fails, nothing is delivered and the stream is released", func() {
				So(err, ShouldNotBeNil)
				So(rec.count(), ShouldEqual, 0)
				So(eventually(func() bool { return src.openStreams() == 0 }), ShouldBeTrue)
			})
		})

		Convey("When the watch cannot start", func() {
			src := &fakeSource{push: true, watchErr: errors.New("subscribe refused")}
			_, err := New(src).Subscribe(ctx, (&recorder{}).callback)
			So(err, ShouldNotBeNil)
		})

		Convey("When the callback is nil", func() {
			_, err := New(&fakeSource{}).Subscribe(ctx, nil)
			So(errors.Is(err, ErrNilCallback), ShouldBeTrue)
		})
	})
}

func TestObserverDetachOrdering(t *testing.T) {
	Convey("Given an observer whose delivery has passed the detached check", t, func() {
		var calls int
		o := &observer{cb: func(Update) { calls++ }}
		o.callMu.Lock()

		detached := make(chan struct{})
		go func() {
			o.detach()
			close(detached)
		}()

		Convey("Then detach waits for that delivery to finish", func() {
			select {
			case <-detached:
				t.Fatal("detach returned while a delivery was between check and callback")
			case <-time.After(50 * time.Millisecond):
			}
			o.callMu.Unlock()
			<-detached

			Convey("And no later delivery starts", func() {
				So(o.deliver(Update{}), ShouldBeFalse)
				So(calls, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a callback that detaches its own observer", t, func() {
		var o *observer
		calls := 0
		o = &observer{cb: func(Update) {
			calls++
			o.detach()
		}}

		Convey("Then detach returns without waiting on itself", func() {
			done := make(chan bool, 1)
			go func() { done <- o.deliver(Update{}) }()
			select {
			case ok := <-done:
				So(ok, ShouldBeTrue)
			case <-time.After(time.Second):
				t.Fatal("self-detach deadlocked")
			}
			So(o.deliver(Update{}), ShouldBeFalse)
			So(calls, ShouldEqual, 1)
		})
	})
}
