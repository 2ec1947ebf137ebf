package scheduler

import (
	"context"
	"runtime"
	"time"

	"github.com/okian/podium/internal/app/rolesync"
	"github.com/okian/podium/pkg/metrics"
)

const nanosecondsPerMillisecond = 1e6

// Maintainer is the slice of the service the periodic jobs drive.
type Maintainer interface {
	TriggerSync(ctx context.Context) (rolesync.TriggerResult, error)
	PruneCooldowns(ctx context.Context) (int, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// Intervals selects how often each maintenance job runs.
type Intervals struct {
	Sync          time.Duration
	CooldownPrune time.Duration
	Purge         time.Duration
	SystemMetrics time.Duration
}

// Register adds the standard maintenance jobs for m to s.
func Register(s *Scheduler, m Maintainer, iv Intervals) {
	s.Add(Job{
		Name:     "sync",
		Interval: iv.Sync,
		Run: func(ctx context.Context) error {
			_, err := m.TriggerSync(ctx)
			return err
		},
	})
	s.Add(Job{
		Name:     "cooldown_prune",
		Interval: iv.CooldownPrune,
		Run: func(ctx context.Context) error {
			_, err := m.PruneCooldowns(ctx)
			return err
		},
	})
	s.Add(Job{
		Name:     "purge_expired",
		Interval: iv.Purge,
		Run: func(ctx context.Context) error {
			_, err := m.PurgeExpired(ctx)
			return err
		},
	})
	s.Add(Job{
		Name:     "system_metrics",
		Interval: iv.SystemMetrics,
		Run: func(context.Context) error {
			updateSystemMetrics()
			return nil
		},
	})
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
