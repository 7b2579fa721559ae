package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "repdao")
				So(manager.subsystem, ShouldEqual, "engine")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then options are applied to registered metrics", func() {
				manager.scoreSaturation.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_score_saturation_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
			})
		})

		Convey("When empty options are given", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "repdao")
				So(manager.subsystem, ShouldEqual, "engine")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
			})
		})
	})
}

func TestEngineMetrics(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording operations", func() {
			before := testutil.ToFloat64(globalManager.operations.WithLabelValues("record_interaction", "ok"))
			RecordOperation("record_interaction", "ok")
			RecordOperation("record_interaction", "ok")
			RecordOperation("record_interaction", "cooldown_active")

			Convey("Then counts are kept per outcome", func() {
				after := testutil.ToFloat64(globalManager.operations.WithLabelValues("record_interaction", "ok"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording counters", func() {
			saturation := testutil.ToFloat64(globalManager.scoreSaturation)
			evictions := testutil.ToFloat64(globalManager.cooldownEviction)
			rollbacks := testutil.ToFloat64(globalManager.repositoryRollbacks)
			RecordScoreSaturation()
			RecordCooldownEviction()
			RecordRepositoryRollback()
			RecordRepositoryRollback()

			Convey("Then each counter moves independently", func() {
				So(testutil.ToFloat64(globalManager.scoreSaturation)-saturation, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.cooldownEviction)-evictions, ShouldEqual, 1)
				So(testutil.ToFloat64(globalManager.repositoryRollbacks)-rollbacks, ShouldEqual, 2)
			})
		})

		Convey("When setting gauges", func() {
			UpdateRepositoryShardCount(64)
			UpdateRepositoryRecordsTotal(10)
			UpdateRepositoryRealmsTotal(2)
			UpdateRepositoryEventsTotal(30)
			UpdateQueueCapacity(100)
			UpdateQueueSize(25)
			UpdateQueueUtilization(0.25)

			Convey("Then the last value wins", func() {
				So(testutil.ToFloat64(globalManager.repositoryShardCount), ShouldEqual, 64)
				So(testutil.ToFloat64(globalManager.repositoryRecordsTotal), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.repositoryRealmsTotal), ShouldEqual, 2)
				So(testutil.ToFloat64(globalManager.repositoryEventsTotal), ShouldEqual, 30)
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 25)
				So(testutil.ToFloat64(globalManager.queueUtilization), ShouldEqual, 0.25)
			})
		})

		Convey("When recording histograms and labelled metrics", func() {
			Convey("Then none of them panic", func() {
				So(func() {
					RecordOperationLatency("claim_badge", 1.5)
					RecordScoreDelta("innovation", 350)
					RecordChangeDropped("interaction_recorded")
					RecordRepositoryUpdateLatency(0.2)
					RecordRepositoryQueryLatency(0.1)
					RecordHTTPRequest("/v1/interactions", "POST", "201")
					RecordHTTPRequestDuration("/v1/interactions", "POST", "201", 3.0)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueProcessingLatency(4.0)
					UpdateWorkerCount(4)
					UpdateWorkerActiveCount(1)
					UpdateWorkerIdleCount(3)
					UpdateWorkerMessagesPerSecond(12.5)
					RecordWorkerProcessingLatency(2.0)
					RecordWorkerError()
					RecordWorkerRetry()
					RecordSinkDelivery("kafka", "ok")
					RecordSinkLatency("kafka", 8.0)
					RecordErrorByComponent("engine", "record_interaction")
					RecordErrorByType("timeout", "error")
					RecordErrorByEndpoint("/v1/badges", "POST", "invalid_proof")
					RecordErrorLatency("api", "not_found", 1.0)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(42)
					RecordSystemGCPauseTime(0.3)
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering the custom registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then engine metrics are exposed under the repdao namespace", func() {
				So(err, ShouldBeNil)
				names := make(map[string]bool, len(families))
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["repdao_engine_operations_total"], ShouldBeTrue)
			})
		})
	})
}
