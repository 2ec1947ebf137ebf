package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/podium/internal/app/rolesync"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeMaintainer struct {
	syncs  atomic.Int32
	prunes atomic.Int32
	purges atomic.Int32
}

func (f *fakeMaintainer) TriggerSync(context.Context) (rolesync.TriggerResult, error) {
	f.syncs.Add(1)
	return rolesync.Started, nil
}

func (f *fakeMaintainer) PruneCooldowns(context.Context) (int, error) {
	f.prunes.Add(1)
	return 0, nil
}

func (f *fakeMaintainer) PurgeExpired(context.Context) (int, error) {
	f.purges.Add(1)
	return 0, errors.New("storage offline")
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestScheduler(t *testing.T) {
	Convey("Given a scheduler with maintenance jobs", t, func() {
		s := New(WithLogger(logger.Nop()))
		m := &fakeMaintainer{}
		Register(s, m, Intervals{
			Sync:          10 * time.Millisecond,
			CooldownPrune: 15 * time.Millisecond,
			Purge:         20 * time.Millisecond,
		})

		Convey("Then disabled jobs are not registered", func() {
			So(s.Jobs(), ShouldResemble, []string{"sync", "cooldown_prune", "purge_expired"})
		})

		Convey("When it runs until cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.Start(ctx)

			ok := eventually(func() bool {
				return m.syncs.Load() >= 2 && m.prunes.Load() >= 2 && m.purges.Load() >= 2
			})
			cancel()
			s.Wait()
			after := m.syncs.Load()
			time.Sleep(30 * time.Millisecond)

			Convey("Then every job ran repeatedly, failures included", func() {
				So(ok, ShouldBeTrue)
			})

			Convey("Then nothing runs after cancellation", func() {
				So(m.syncs.Load(), ShouldEqual, after)
			})
		})

		Convey("When a job is added after start", func() {
			ctx, cancel := context.WithCancel(context.Background())
			s.Start(ctx)
			s.Add(Job{Name: "late", Interval: time.Millisecond, Run: func(context.Context) error { return nil }})
			cancel()
			s.Wait()

			Convey("Then it is ignored", func() {
				So(len(s.Jobs()), ShouldEqual, 3)
			})
		})
	})
}

func TestSystemMetricsJob(t *testing.T) {
	Convey("Given the system metrics job", t, func() {
		s := New(WithLogger(logger.Nop()))
		Register(s, &fakeMaintainer{}, Intervals{SystemMetrics: time.Millisecond})

		Convey("Then it runs without panicking", func() {
			So(s.Jobs(), ShouldResemble, []string{"system_metrics"})
			So(updateSystemMetrics, ShouldNotPanic)
		})
	})
}
