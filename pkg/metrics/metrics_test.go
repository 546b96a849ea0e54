package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.reportsSaved.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, mf := range families {
					if mf.GetName() == "test_unit_reports_saved_total" {
						found = true
						So(mf.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording persistence metrics", func() {
			before := testutil.ToFloat64(globalManager.storageOps.WithLabelValues("local", "save_report"))
			RecordStorageOp("local", "save_report", 1.5)
			RecordStorageError("redis", "get_all_reports")
			RecordReportSaved()
			RecordReportsDeleted(3)
			UpdateReportsTotal(42)
			UpdateUsersTotal(7)

			Convey("Then counters and gauges move", func() {
				So(testutil.ToFloat64(globalManager.storageOps.WithLabelValues("local", "save_report")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.storageErrors.WithLabelValues("redis", "get_all_reports")), ShouldBeGreaterThanOrEqualTo, 1)
				So(testutil.ToFloat64(globalManager.reportsTotal), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.usersTotal), ShouldEqual, 7)
			})
		})

		Convey("When recording feed and dashboard metrics", func() {
			UpdateFeedSubscribers(2)
			UpdateActiveDashboards(1)

			So(func() {
				RecordFeedNotification()
				RecordFeedError()
				RecordAggregation(0.3, 500)
				RecordDashboardPublish()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.feedSubscribers), ShouldEqual, 2)
			So(testutil.ToFloat64(globalManager.activeDashboards), ShouldEqual, 1)
		})

		Convey("When recording queue and worker metrics", func() {
			UpdateQueueCapacity(1024)
			UpdateQueueSize(16)
			UpdateQueueUtilization(16.0 / 1024.0)

			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.1)
				RecordWorkerProcessingLatency(4)
				RecordWorkerError()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 1024)
			So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 16)
		})

		Convey("When recording HTTP and error metrics with odd labels", func() {
			So(func() {
				RecordHTTPRequest("", "", "200")
				RecordHTTPRequestDuration("/reports", "POST", "201", 12)
				RecordErrorByComponent("component-with-dash", "error_with_underscore")
				RecordErrorByType("error.with.dots", "high")
				RecordErrorByEndpoint("/reports/{id}", "PATCH", "not_found")
				RecordErrorLatency("http", "server_error", 30)
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			UpdateSystemMemoryUsage(1024 * 1024)
			UpdateSystemGoroutineCount(12)
			RecordSystemGCPauseTime(0.2)
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldEqual, 12)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		registry := GetRegistry()
		RecordReportSaved()

		Convey("Then it exposes medsafety metrics only", func() {
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, mf := range families {
				So(strings.HasPrefix(mf.GetName(), "medsafety_"), ShouldBeTrue)
			}
		})
	})
}
