package api

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/domain/dashboard"
)

func TestStreamHub(t *testing.T) {
	Convey("Given a hub with two streams", t, func() {
		hub := newStreamHub()
		a, b := newViewStream(), newViewStream()
		hub.add("a", a)
		hub.add("b", b)
		views, detach := a.attach()
		defer detach()

		Convey("When the service closes a reaped dashboard's stream", func() {
			a.Close()
			a.Close()

			Convey("Then its clients are ended and the hub forgets it", func() {
				_, open := <-a.done
				So(open, ShouldBeFalse)
				_, ok := hub.get("a")
				So(ok, ShouldBeFalse)
				So(hub.size(), ShouldEqual, 1)
			})

			Convey("Then later views are dropped", func() {
				a.Publish(context.Background(), dashboard.View{Generation: 7})
				So(len(views), ShouldEqual, 0)
			})
		})

		Convey("When the old stream of a re-registered id is closed", func() {
			c := newViewStream()
			hub.add("a", c)
			a.Close()

			Convey("Then the new stream stays registered", func() {
				got, ok := hub.get("a")
				So(ok, ShouldBeTrue)
				So(got, ShouldPointTo, c)
			})
		})

		Convey("When the server shuts down", func() {
			hub.closeAll()

			Convey("Then every stream is ended", func() {
				_, openA := <-a.done
				_, openB := <-b.done
				So(openA, ShouldBeFalse)
				So(openB, ShouldBeFalse)
				So(hub.size(), ShouldEqual, 0)
			})
		})
	})
}
