package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with options", func() {
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithRefreshInterval(time.Second),
			)

			Convey("Then metrics are registered under the namespace", func() {
				m.ticketRenewals.WithLabelValues(OutcomeSuccess).Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_ticket_renewals_total")
				So(m.RefreshInterval(), ShouldEqual, time.Second)
			})
		})

		Convey("When ignoring empty option values", func() {
			m := NewManager(
				WithPrometheusRegistry(registry),
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(0),
			)

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "divtracker")
				So(len(m.histogramBuckets), ShouldBeGreaterThan, 0)
				So(m.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording lookup metrics", func() {
			before := testutil.ToFloat64(globalManager.batchesTotal.WithLabelValues("2", OutcomeSuccess))
			RecordBatch("2", OutcomeSuccess)
			RecordFetchTask("2", OutcomeFailure)
			RecordFetchLatency("2", 42)
			RecordResolve(OutcomeSuccess)

			Convey("Then the counters move", func() {
				after := testutil.ToFloat64(globalManager.batchesTotal.WithLabelValues("2", OutcomeSuccess))
				So(after-before, ShouldEqual, 1)
			})
		})

		Convey("When recording the remaining families", func() {
			So(func() {
				RecordTicketRenewal(OutcomeExhausted)
				UpdateTicketValid(true)
				UpdateTicketValid(false)
				RecordNameRecord(OutcomeSuccess)
				RecordStoreLatency("record", 1.5)
				RecordBrowserSession("webdriver", OutcomeSuccess)
				RecordHTTPRequest("/api/v1/stats", "GET", "200")
				RecordHTTPRequestDuration("/api/v1/stats", "GET", "200", 12)
				RecordErrorByComponent("resolver", "api")
				RecordErrorByEndpoint("/api/v1/stats", "GET", "not_found")
				UpdateSystemMetrics()
			}, ShouldNotPanic)

			Convey("Then the ticket gauge holds the last value", func() {
				So(testutil.ToFloat64(globalManager.ticketValid), ShouldEqual, 0)
			})
		})

		Convey("Then the custom registry is exposed", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
			So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
		})
	})
}
