package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// sumFamily gathers reg and sums counter and gauge values of the named family.
func sumFamily(reg prometheus.Gatherer, name string) (float64, bool) {
	families, err := reg.Gather()
	if err != nil {
		return 0, false
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total, true
	}
	return 0, false
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))
			manager.syncRuns.WithLabelValues("ok").Inc()

			Convey("Then it should register every collector", func() {
				So(manager, ShouldNotBeNil)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 10)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.duels.WithLabelValues("backfire").Inc()

			Convey("Then metric names should carry the namespace and subsystem", func() {
				value, ok := sumFamily(registry, "test_unit_duels_total")
				So(ok, ShouldBeTrue)
				So(value, ShouldEqual, 1.0)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording sync triggers", func() {
			before, _ := sumFamily(GetRegistry(), "podium_ranks_sync_triggers_total")
			RecordSyncTrigger("coalesced")
			RecordSyncTrigger("started")
			after, ok := sumFamily(GetRegistry(), "podium_ranks_sync_triggers_total")

			Convey("Then the counter family should grow by two", func() {
				So(ok, ShouldBeTrue)
				So(after, ShouldEqual, before+2)
			})
		})

		Convey("When recording gauges", func() {
			UpdateCooldownEntries(7)
			UpdateRankedSubjects(12)

			Convey("Then the gauge should hold the last value", func() {
				cooldowns, _ := sumFamily(GetRegistry(), "podium_ranks_cooldown_entries")
				ranked, _ := sumFamily(GetRegistry(), "podium_ranks_ranked_subjects")
				So(cooldowns, ShouldEqual, 7.0)
				So(ranked, ShouldEqual, 12.0)
			})
		})

		Convey("When recording the remaining recorders", func() {
			So(func() {
				RecordContributionProcessed()
				RecordContributionDuplicate()
				RecordContributionRemoved()
				RecordContributionError()
				UpdateQueueSize(3)
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateWorkerCount(4)
				RecordWorkerProcessingLatency(1.5)
				RecordSyncRun("failed", 20)
				RecordRoleChange("add")
				RecordRoleChangeError()
				RecordSkippedSlot()
				UpdateSyncLastSuccess(1700000000)
				RecordDuel("direct_success")
				RecordDuelRejection("self_target")
				RecordDuelRoll(500)
				RecordCooldownPruned(2)
				RecordRepositoryQueryLatency(0.2)
				RecordRepositoryUpdateLatency(0.4)
				UpdateRepositorySubjects(9)
				RecordHTTPRequest("duels", "POST", "200")
				RecordHTTPRequestDuration("duels", "POST", "200", 3)
				RecordErrorByComponent("rolesync", "list_holders")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.5)
			}, ShouldNotPanic)
		})
	})
}
