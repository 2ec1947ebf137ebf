// Package loadtest drives a running podium server with generated
// contributions and checks the leaderboard it reports.
package loadtest

import (
	"errors"
	"time"
)

// ErrInvalidConfig reports an unusable load test configuration.
var ErrInvalidConfig = errors.New("invalid load test config")

// Config holds configuration for a load test run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Contributions int           // Number of contributions to submit
	Subjects      int           // Number of distinct subjects credited
	Workers       int           // Number of concurrent submitters
	Rate          float64       // Submissions per second, 0 for unlimited
	Timeout       time.Duration // HTTP request timeout
	SettleTimeout time.Duration // How long to wait for the queue to drain
	TopN          int           // Leaderboard entries to compare
	Seed          uint64        // Generator seed, 0 for time-based
}

func (c Config) validate() error {
	switch {
	case c.BaseURL == "":
		return errors.Join(ErrInvalidConfig, errors.New("base url is required"))
	case c.Contributions <= 0 || c.Subjects <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("contributions and subjects must be positive"))
	case c.Workers <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("workers must be positive"))
	case c.TopN <= 0:
		return errors.Join(ErrInvalidConfig, errors.New("top must be positive"))
	}
	return nil
}

// Contribution is the request body of POST /contributions.
type Contribution struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

// Entry is one leaderboard row as served by the API.
type Entry struct {
	Rank      int     `json:"rank"`
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
}

// Report holds the statistics of a run.
type Report struct {
	Generated  int
	Accepted   int
	Duplicate  int
	Failed     int
	Compared   int
	Mismatches []string
	Duration   time.Duration
}

// OK reports whether the run submitted everything and the leaderboard matched.
func (r Report) OK() bool {
	return r.Failed == 0 && len(r.Mismatches) == 0
}
