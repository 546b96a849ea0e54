package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/mq/queue"
	worker "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/adapters/mq/worker"
	model "github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

// recordingHandler remembers handled ids and fails for configured ones.
type recordingHandler struct {
	mu      sync.Mutex
	handled []string
	fail    map[string]error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{fail: map[string]error{}}
}

func (h *recordingHandler) Handle(_ context.Context, e queue.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err, ok := h.fail[e.ID]; ok {
		return err
	}
	h.handled = append(h.handled, e.ID)
	return nil
}

func (h *recordingHandler) ids() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.handled...)
}

func change(id string) model.Change {
	return model.Change{Collection: model.CollectionReports, Op: model.OpSet, ID: id, At: time.Now()}
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		h := newRecordingHandler()
		w := worker.NewInMemoryWorker(q, h, worker.WithName("feed-dispatch"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go w.Run(ctx)

		convey.Convey("When changes are queued", func() {
			q.Enqueue(ctx, change("r1"))
			q.Enqueue(ctx, change("r2"))
			q.Enqueue(ctx, change("r3"))

			convey.Convey("Then they are handled in order", func() {
				convey.So(eventually(func() bool { return len(h.ids()) == 3 }), convey.ShouldBeTrue)
				convey.So(h.ids(), convey.ShouldResemble, []string{"r1", "r2", "r3"})
			})
		})

		convey.Convey("When the handler fails for one change", func() {
			h.fail["bad"] = errors.New("backend down")
			q.Enqueue(ctx, change("bad"))
			q.Enqueue(ctx, change("good"))

			convey.Convey("Then the worker keeps going", func() {
				convey.So(eventually(func() bool { return len(h.ids()) == 1 }), convey.ShouldBeTrue)
				convey.So(h.ids(), convey.ShouldResemble, []string{"good"})
			})
		})

		convey.Convey("When the queue is closed", func() {
			q.Enqueue(ctx, change("last"))
			_ = q.Close()

			convey.Convey("Then the worker drains it and stops", func() {
				select {
				case <-w.Done():
				case <-time.After(time.Second):
				}
				convey.So(h.ids(), convey.ShouldResemble, []string{"last"})
			})
		})

		convey.Convey("When shutting down twice", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a worker that never started", t, func() {
		w := worker.NewInMemoryWorker(queue.NewInMemoryQueue(), worker.HandlerFunc(func(context.Context, queue.Event) error {
			return nil
		}))

		convey.Convey("When shutdown has a deadline", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			convey.Convey("Then it reports the timeout", func() {
				convey.So(errors.Is(w.Shutdown(ctx), context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
