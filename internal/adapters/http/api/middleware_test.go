package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestClassifyStatus(t *testing.T) {
	Convey("Given error statuses", t, func() {
		cases := []struct {
			status   int
			code     string
			severity string
		}{
			{http.StatusBadRequest, "bad_request", "medium"},
			{http.StatusRequestEntityTooLarge, "bad_request", "medium"},
			{http.StatusNotFound, "not_found", "low"},
			{http.StatusTooManyRequests, "rate_limited", "low"},
			{http.StatusServiceUnavailable, "unavailable", "critical"},
			{http.StatusInternalServerError, "internal", "high"},
		}
		for _, c := range cases {
			code, severity := classifyStatus(c.status)
			So(code, ShouldEqual, c.code)
			So(severity, ShouldEqual, c.severity)
		}
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler that writes its status twice", t, func() {
		var seen int
		h := MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.WriteHeader(http.StatusOK)
			seen = w.(*statusRecorder).status
		}, "test")

		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))

		Convey("Then the first status is the one recorded", func() {
			So(seen, ShouldEqual, http.StatusNotFound)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a submit limiter with a burst of two", t, func() {
		lim := newSubmitLimiter(60, 2)
		ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) }
		h := lim.Middleware(ok)

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/reports", http.NoBody)
			r.RemoteAddr = "10.0.0.1:5000"
			h(w, r)
			codes = append(codes, w.Code)
		}

		Convey("Then the third request from the same address is throttled", func() {
			So(codes, ShouldResemble, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests})
		})

		Convey("Then another address has its own budget", func() {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/reports", http.NoBody)
			r.RemoteAddr = "10.0.0.2:5000"
			h(w, r)
			So(w.Code, ShouldEqual, http.StatusCreated)
		})
	})

	Convey("Given a disabled limiter", t, func() {
		So(newSubmitLimiter(0, 5), ShouldBeNil)
	})
}
