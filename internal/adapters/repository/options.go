package repository

import "time"

// DefaultWindow is how far back contributions and duels count.
const DefaultWindow = 30 * 24 * time.Hour

// Options is shared by every Store implementation.
type Options struct {
	Window                time.Duration
	Now                   func() time.Time
	MetricsUpdateInterval time.Duration
}

// Option applies a configuration option to a Store.
type Option func(*Options)

// WithWindow sets the rolling window.
func WithWindow(window time.Duration) Option {
	return func(o *Options) {
		if window > 0 {
			o.Window = window
		}
	}
}

// WithClock sets the time source used for window cutoffs and default timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *Options) {
		if interval > 0 {
			o.MetricsUpdateInterval = interval
		}
	}
}

// BuildOptions applies opts over the defaults.
func BuildOptions(opts ...Option) Options {
	o := Options{
		Window:                DefaultWindow,
		Now:                   time.Now,
		MetricsUpdateInterval: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Cutoff is the oldest timestamp still inside the window at now.
func (o Options) Cutoff(now time.Time) time.Time {
	return now.Add(-o.Window)
}
