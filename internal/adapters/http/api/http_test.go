package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Aruomeng/JobRec-KG/internal/adapters/http/api"
	"github.com/Aruomeng/JobRec-KG/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestServer(t *testing.T) {
	Convey("Given an ops server", t, func() {
		provider := &mockStatsProvider{stats: map[string]interface{}{
			"ready":     true,
			"indexSize": 42,
			"dimension": 8,
		}}
		h := api.NewServer(provider).Handler()

		Convey("When the service is ready", func() {
			w := serve(h, http.MethodGet, "/healthz")

			Convey("Then health answers 200 with the index size", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]any
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["ready"], ShouldEqual, true)
				So(body["index_size"], ShouldEqual, float64(42))
			})
		})

		Convey("When the service is not ready", func() {
			provider.stats["ready"] = false
			w := serve(h, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When stats are requested", func() {
			w := serve(h, http.MethodGet, "/stats")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			So(w.Body.String(), ShouldContainSubstring, `"dimension":8`)
			So(w.Body.String(), ShouldContainSubstring, `"uptimeSeconds":`)

			Convey("Then the provider's map is not modified", func() {
				_, leaked := provider.stats["uptimeSeconds"]
				So(leaked, ShouldBeFalse)
			})

			Convey("Then repeated calls are counted", func() {
				w = serve(h, http.MethodGet, "/stats")
				So(w.Body.String(), ShouldContainSubstring, `"statsRequests":2`)
			})
		})

		Convey("When a route is called with the wrong verb", func() {
			w := serve(h, http.MethodPost, "/stats")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			So(w.Header().Get("Allow"), ShouldEqual, "GET, HEAD")
			So(w.Body.String(), ShouldContainSubstring, "method_not_allowed")
		})

		Convey("When metrics are scraped after a request", func() {
			serve(h, http.MethodGet, "/stats")
			w := serve(h, http.MethodGet, "/metrics")

			Convey("Then the HTTP collectors are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "jobrec_http_requests_total")
				So(strings.Contains(w.Body.String(), `endpoint="stats"`), ShouldBeTrue)
			})
		})

		Convey("When an unknown path is requested", func() {
			So(serve(h, http.MethodGet, "/nope").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler that fails", t, func() {
		So(metrics.Enabled(), ShouldBeTrue)
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}, "teapot")

		Convey("Then the status passes through unchanged", func() {
			w := serve(h, http.MethodGet, "/")
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})
	})
}
