package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestRegister(t *testing.T) {
	convey.Convey("Given a mux with the docs routes", t, func() {
		mux := http.NewServeMux()
		Register(context.Background(), mux)

		get := func(method, path string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
			return w
		}

		convey.Convey("When fetching each document", func() {
			docs := []struct {
				path        string
				contentType string
				contains    []string
			}{
				{"/api-docs", "text/html; charset=utf-8", []string{"MedSafety API Docs", "redoc-container", redocScript}},
				{"/openapi.yaml", "application/yaml; charset=utf-8", []string{"openapi:", "/reports/{id}", "/dashboards/{id}/events", "/admin/backup"}},
			}

			convey.Convey("Then it is served with its content type and cache header", func() {
				for _, d := range docs {
					w := get(http.MethodGet, d.path)
					convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
					convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, d.contentType)
					convey.So(w.Header().Get("Cache-Control"), convey.ShouldContainSubstring, "max-age")
					for _, s := range d.contains {
						convey.So(w.Body.String(), convey.ShouldContainSubstring, s)
					}
				}
			})
		})

		convey.Convey("When writing to a docs route", func() {
			w := get(http.MethodPost, "/openapi.yaml")

			convey.So(w.Code, convey.ShouldEqual, http.StatusMethodNotAllowed)
		})

		convey.Convey("When the embedded document is inspected", func() {
			convey.So(len(OpenAPI), convey.ShouldBeGreaterThan, 0)
		})
	})

	convey.Convey("Given a nil mux", t, func() {
		convey.So(func() { Register(context.Background(), nil) }, convey.ShouldPanic)
	})
}
