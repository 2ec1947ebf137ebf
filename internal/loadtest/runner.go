package loadtest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/podium/pkg/logger"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultSettleTimeout = 30 * time.Second
	settlePollInterval   = 100 * time.Millisecond
	progressInterval     = time.Second
)

// Option configures a Run.
type Option func(*runner)

// WithLogger sets the run logger.
func WithLogger(l logger.Logger) Option {
	return func(r *runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for contribution timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *runner) {
		if now != nil {
			r.now = now
		}
	}
}

type runner struct {
	cfg    Config
	client *client
	logger logger.Logger
	now    func() time.Time
}

// Run executes a complete load test against cfg.BaseURL.
func Run(ctx context.Context, cfg Config, opts ...Option) (Report, error) {
	if err := cfg.validate(); err != nil {
		return Report{}, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SettleTimeout <= 0 {
		cfg.SettleTimeout = defaultSettleTimeout
	}
	r := &runner{cfg: cfg, client: newClient(cfg.BaseURL, cfg.Timeout), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get()
	}
	r.logger = r.logger.Named("loadtest")
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (Report, error) {
	start := r.now()
	var report Report

	r.logger.Info(ctx, "starting load test",
		logger.String("baseURL", r.cfg.BaseURL),
		logger.Int("contributions", r.cfg.Contributions),
		logger.Int("subjects", r.cfg.Subjects),
		logger.Int("workers", r.cfg.Workers),
		logger.Float64("rate", r.cfg.Rate),
	)

	if err := r.client.getJSON(ctx, "/healthz", nil); err != nil {
		return report, fmt.Errorf("service health check failed: %w", err)
	}

	contributions := generate(r.cfg, start)
	report.Generated = len(contributions)

	if err := r.submit(ctx, contributions, &report); err != nil {
		return report, fmt.Errorf("submission failed: %w", err)
	}
	if err := r.settle(ctx); err != nil {
		return report, fmt.Errorf("waiting for ingestion: %w", err)
	}

	expected := expectedRanking(contributions)
	if len(expected) > r.cfg.TopN {
		expected = expected[:r.cfg.TopN]
	}
	actual := make([]Entry, 0, len(expected))
	for _, e := range expected {
		var got Entry
		if err := r.client.getJSON(ctx, "/rank/"+url.PathEscape(e.SubjectID), &got); err != nil {
			report.Mismatches = append(report.Mismatches, fmt.Sprintf("%s: %v", e.SubjectID, err))
			continue
		}
		actual = append(actual, got)
	}
	report.Compared = len(actual)
	report.Mismatches = append(report.Mismatches, compare(expected, actual)...)
	report.Duration = r.now().Sub(start)

	r.logger.Info(ctx, "load test finished",
		logger.Int("accepted", report.Accepted),
		logger.Int("duplicate", report.Duplicate),
		logger.Int("failed", report.Failed),
		logger.Int("compared", report.Compared),
		logger.Int("mismatches", len(report.Mismatches)),
		logger.Duration("duration", report.Duration),
	)
	return report, nil
}

// submit posts contributions from cfg.Workers goroutines, paced by a token
// bucket when cfg.Rate is set.
func (r *runner) submit(ctx context.Context, contributions []Contribution, report *Report) error {
	var limiter *rate.Limiter
	if r.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate), r.cfg.Workers)
	}

	var accepted, duplicate, failed atomic.Int64
	work := make(chan Contribution, r.cfg.Workers*2)
	var wg sync.WaitGroup

	for range r.cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						failed.Add(1)
						continue
					}
				}
				switch r.client.submit(ctx, c) {
				case submitAccepted:
					accepted.Add(1)
				case submitDuplicate:
					duplicate.Add(1)
				default:
					failed.Add(1)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				r.logger.Info(ctx, "submission progress",
					logger.Int64("accepted", accepted.Load()),
					logger.Int64("failed", failed.Load()),
					logger.Int("total", len(contributions)),
				)
			}
		}
	}()

feed:
	for _, c := range contributions {
		select {
		case <-ctx.Done():
			break feed
		case work <- c:
		}
	}
	close(work)
	wg.Wait()
	close(done)

	report.Accepted = int(accepted.Load())
	report.Duplicate = int(duplicate.Load())
	report.Failed = int(failed.Load())
	return ctx.Err()
}

type statsResponse struct {
	QueueLength int `json:"queue_length"`
}

// settle waits until the server reports an empty queue on two consecutive polls.
func (r *runner) settle(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.SettleTimeout)
	defer cancel()

	empty := 0
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		var st statsResponse
		if err := r.client.getJSON(ctx, "/stats", &st); err != nil {
			return err
		}
		if st.QueueLength == 0 {
			empty++
		} else {
			empty = 0
		}
		if empty >= 2 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
