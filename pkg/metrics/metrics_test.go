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
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics are registered under the tailor namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsAccepted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "tailor_personalize_events_accepted_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and labels follow the options", func() {
				manager.queueSize.Set(3)
				expected := `
# HELP test_unit_queue_size Current size of the event queue (backlog indicator)
# TYPE test_unit_queue_size gauge
test_unit_queue_size{env="test"} 3
`
				So(testutil.GatherAndCompare(registry, strings.NewReader(expected), "test_unit_queue_size"), ShouldBeNil)
			})
		})
	})
}

func TestMetricsConfigure(t *testing.T) {
	Convey("Given the global manager reconfigured for a named instance", t, func() {
		Configure(WithNamespace("shop"), WithSubsystem("ranker"), WithConstLabels(map[string]string{"instance": "eu-1"}))
		defer Configure()

		RecordPageServed("reel", false)

		Convey("Then the served registry carries the new names and labels", func() {
			expected := `
# HELP shop_ranker_pages_served_total Pages served by surface and cold start
# TYPE shop_ranker_pages_served_total counter
shop_ranker_pages_served_total{cold_start="false",instance="eu-1",surface="reel"} 1
`
			So(testutil.GatherAndCompare(GetRegistry(), strings.NewReader(expected), "shop_ranker_pages_served_total"), ShouldBeNil)
		})
	})

	Convey("Given the default configuration", t, func() {
		Configure()
		RecordEventAccepted()

		Convey("Then metrics are served under the tailor namespace", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			names := map[string]bool{}
			for _, f := range families {
				names[f.GetName()] = true
			}
			So(names["tailor_personalize_events_accepted_total"], ShouldBeTrue)
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When ranking counters are recorded", func() {
			before := testutil.ToFloat64(globalManager.rankingCounters.WithLabelValues("reel", "category_switch_prevented"))
			RecordRankingCounter("reel", "category_switch_prevented", 3)
			RecordRankingCounter("reel", "category_switch_prevented", 0)

			Convey("Then only positive increments are added", func() {
				after := testutil.ToFloat64(globalManager.rankingCounters.WithLabelValues("reel", "category_switch_prevented"))
				So(after-before, ShouldEqual, 3)
			})
		})

		Convey("When pages and cache lookups are recorded", func() {
			before := testutil.ToFloat64(globalManager.pagesServed.WithLabelValues("feed", "true"))
			RecordPageServed("feed", true)
			RecordPoolCacheLookup(true)
			RecordPoolCacheLookup(false)

			Convey("Then the labelled series move", func() {
				So(testutil.ToFloat64(globalManager.pagesServed.WithLabelValues("feed", "true"))-before, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.poolCacheLookups.WithLabelValues("hit")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When every recorder is called", func() {
			So(func() {
				RecordEventAccepted()
				RecordEventDuplicate()
				RecordEventApplied()
				RecordEventRejected("backpressure")
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.3)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(1)
				UpdateWorkerIdleCount(3)
				RecordWorkerProcessingLatency(2)
				RecordWorkerError()
				RecordRankingLatency("feed", 12)
				RecordSourceRequest("newest", "ok", 4)
				UpdateBreakerState("newest", BreakerOpen)
				RecordProfileBytes(2048)
				RecordCompaction("as_is")
				RecordProfileStoreLatency("get", 0.2)
				RecordProfileStoreError("set")
				RecordHTTPRequest("/feed", "GET", "200")
				RecordHTTPRequestDuration("/feed", "GET", "200", 5)
				RecordErrorByComponent("api", "bad_request")
				RecordErrorByType("bad_request", "warning")
				RecordErrorByEndpoint("/events", "POST", "bad_request")
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
