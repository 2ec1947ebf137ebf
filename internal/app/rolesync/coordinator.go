// Package rolesync keeps rank roles in the directory in step with the
// leaderboard. Runs are serialized by a Coordinator: at most one is in
// flight and any number of triggers during a run collapse into a single
// follow-up run.
package rolesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// TriggerResult reports what a Trigger call did.
type TriggerResult int

const (
	// Started means the coordinator was idle and a run began.
	Started TriggerResult = iota
	// Queued means a run was in flight and a follow-up run was scheduled.
	Queued
	// Coalesced means a follow-up run was already scheduled.
	Coalesced
	// Rejected means the coordinator was closed and nothing was scheduled.
	Rejected
)

func (r TriggerResult) String() string {
	switch r {
	case Started:
		return "started"
	case Queued:
		return "queued"
	case Coalesced:
		return "coalesced"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Runner performs one synchronization run.
type Runner interface {
	Sync(ctx context.Context) (Report, error)
}

// Status is a snapshot of the coordinator.
type Status struct {
	Running    bool      `json:"running"`
	Queued     bool      `json:"queued"`
	Runs       uint64    `json:"runs"`
	Failures   uint64    `json:"failures"`
	LastRunAt  time.Time `json:"last_run_at,omitempty"`
	LastReport Report    `json:"last_report"`
	LastError  string    `json:"last_error,omitempty"`
}

// Coordinator is the Idle/Running/Queued state machine around a Runner.
type Coordinator struct {
	runner Runner
	logger logger.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	queued  bool
	closed  bool
	idle    chan struct{} // closed when the current busy period ends
	status  Status
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the coordinator logger.
func WithCoordinatorLogger(l logger.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(runner Runner, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{runner: runner, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("rolesync")
	}
	return c
}

// Trigger requests a run. It never blocks on the run itself.
// The run uses a context detached from ctx's cancellation.
func (c *Coordinator) Trigger(ctx context.Context) TriggerResult {
	c.mu.Lock()
	var res TriggerResult
	switch {
	case c.closed:
		res = Rejected
	case !c.running:
		c.running = true
		c.idle = make(chan struct{})
		res = Started
	case !c.queued:
		c.queued = true
		res = Queued
	default:
		res = Coalesced
	}
	c.mu.Unlock()

	metrics.RecordSyncTrigger(res.String())
	if res == Started {
		go c.loop(context.WithoutCancel(ctx))
	}
	return res
}

func (c *Coordinator) loop(ctx context.Context) {
	for {
		c.runOnce(ctx)

		c.mu.Lock()
		if c.queued {
			c.queued = false
			c.mu.Unlock()
			continue
		}
		c.running = false
		close(c.idle)
		c.mu.Unlock()
		return
	}
}

func (c *Coordinator) runOnce(ctx context.Context) {
	start := c.now()
	var (
		report Report
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("sync run panicked: %v", p)
			}
		}()
		report, err = c.runner.Sync(ctx)
	}()
	took := c.now().Sub(start)

	c.mu.Lock()
	c.status.Runs++
	c.status.LastRunAt = start
	c.status.LastReport = report
	c.status.LastError = ""
	if err != nil {
		c.status.Failures++
		c.status.LastError = err.Error()
	}
	c.mu.Unlock()

	if err != nil {
		metrics.RecordSyncRun("failed", float64(took.Milliseconds()))
		metrics.RecordErrorByComponent("rolesync", "run_failed")
		c.logger.Error(ctx, "sync run failed", logger.Duration("took", took), logger.Error(err))
		return
	}
	metrics.RecordSyncRun("ok", float64(took.Milliseconds()))
	metrics.UpdateSyncLastSuccess(float64(c.now().Unix()))
	c.logger.Info(ctx, "sync run complete",
		logger.Int("ranked", report.Ranked),
		logger.Int("changes", report.Changes),
		logger.Int("failed", report.Failed),
		logger.Duration("took", took),
	)
}

// Wait blocks until the coordinator is idle or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting triggers and waits for the current busy period,
// including an already queued follow-up run, to end.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Wait(ctx)
}

// Status returns a snapshot of the coordinator state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.status
	s.Running = c.running
	s.Queued = c.queued
	return s
}
