package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/model"
)

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, NewRedisStore(client, WithRedisKeyPrefix("test:"))
}

func nextEvent(ch <-chan Event) (Event, bool) {
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(2 * time.Second):
		return Event{}, false
	}
}

func TestRedisStoreDocuments(t *testing.T) {
	Convey("Given a redis document store", t, func() {
		ctx := context.Background()
		mr, store := newRedisStore(t)
		defer func() { _ = store.Close() }()

		Convey("When documents are set", func() {
			So(store.Set(ctx, model.CollectionReports, "a", json.RawMessage(`{"id":"a","facility":"A"}`)), ShouldBeNil)
			So(store.Set(ctx, model.CollectionReports, "b", json.RawMessage(`{"id":"b","facility":"B"}`)), ShouldBeNil)

			Convey("Then they live in one hash per collection", func() {
				So(mr.HGet("test:reports", "a"), ShouldEqual, `{"id":"a","facility":"A"}`)
				docs, err := store.List(ctx, model.CollectionReports)
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 2)
			})

			Convey("Then a single document can be fetched", func() {
				doc, err := store.Get(ctx, model.CollectionReports, "b")
				So(err, ShouldBeNil)
				So(string(doc), ShouldEqual, `{"id":"b","facility":"B"}`)
			})

			Convey("Then a missing document is ErrNotFound", func() {
				_, err := store.Get(ctx, model.CollectionReports, "zzz")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("Then delete counts only existing ids", func() {
				n, err := store.Delete(ctx, model.CollectionReports, "a", "ghost")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
				n, err = store.Delete(ctx, model.CollectionReports, "ghost")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})

			Convey("Then replace swaps the whole collection", func() {
				err := store.Replace(ctx, model.CollectionReports, map[string]json.RawMessage{
					"c": json.RawMessage(`{"id":"c"}`),
				})
				So(err, ShouldBeNil)
				docs, err := store.List(ctx, model.CollectionReports)
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 1)
				So(mr.Exists("test:lock:restore"), ShouldBeFalse)
			})

			Convey("Then replace with nothing empties the collection", func() {
				So(store.Replace(ctx, model.CollectionReports, nil), ShouldBeNil)
				docs, err := store.List(ctx, model.CollectionReports)
				So(err, ShouldBeNil)
				So(docs, ShouldBeEmpty)
			})
		})
	})
}

func TestRedisStoreWatch(t *testing.T) {
	Convey("Given a watch on the reports collection", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		mr, store := newRedisStore(t)
		events, err := store.Watch(ctx, model.CollectionReports)
		So(err, ShouldBeNil)

		Convey("When reports and users change", func() {
			So(store.Set(ctx, model.CollectionUsers, "u", json.RawMessage(`{"id":"u"}`)), ShouldBeNil)
			So(store.Set(ctx, model.CollectionReports, "r", json.RawMessage(`{"id":"r"}`)), ShouldBeNil)

			Convey("Then only report changes are delivered", func() {
				ev, ok := nextEvent(events)
				So(ok, ShouldBeTrue)
				So(ev.Err, ShouldBeNil)
				So(ev.Change.Collection, ShouldEqual, model.CollectionReports)
				So(ev.Change.Op, ShouldEqual, model.OpSet)
				So(ev.Change.ID, ShouldEqual, "r")
			})
		})

		Convey("When the server goes away", func() {
			mr.Close()

			Convey("Then one terminal error arrives and the stream closes", func() {
				ev, ok := nextEvent(events)
				So(ok, ShouldBeTrue)
				So(errors.Is(ev.Err, ErrStorage), ShouldBeTrue)
				_, ok = nextEvent(events)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the context is cancelled", func() {
			cancel()

			Convey("Then the stream closes without an error", func() {
				ev, ok := nextEvent(events)
				So(ok, ShouldBeFalse)
				So(ev.Err, ShouldBeNil)
			})
		})
	})
}

func TestRedisBackedGateway(t *testing.T) {
	Convey("Given a gateway over redis", t, func() {
		ctx := context.Background()
		_, store := newRedisStore(t)
		g := NewGateway(RemoteBackend(store),
			WithIDGenerator(sequence("r")),
			WithClock(tickingClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))))

		So(g.Backend().Name(), ShouldEqual, "redis")
		So(g.Backend().SupportsPush(), ShouldBeTrue)

		for _, f := range []string{"A", "B", "C"} {
			_, err := g.SaveReport(ctx, model.Report{Facility: f})
			So(err, ShouldBeNil)
		}

		Convey("Then the list is ordered by timestamp descending", func() {
			reports, err := g.GetAllReports(ctx)
			So(err, ShouldBeNil)
			So(ids(reports), ShouldResemble, []string{"r-3", "r-2", "r-1"})
		})

		Convey("Then deleting a missing user is a no-op", func() {
			So(g.DeleteUser(ctx, "ghost"), ShouldBeNil)
		})
	})
}

func ids(reports []model.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}
