package cli

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/podium/internal/loadtest"
	"github.com/okian/podium/pkg/logger"
)

// ErrLoadMismatch is returned when a load run ends with failures or a
// leaderboard that disagrees with the submitted contributions.
var ErrLoadMismatch = errors.New("load test found problems")

func (a *app) loadCmd() *cobra.Command {
	cfg := loadtest.Config{}
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Submit generated contributions to a running server and verify its ranking",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := loadtest.Run(cmd.Context(), cfg, loadtest.WithLogger(logger.Get()))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Generated:  %d\nAccepted:   %d\nDuplicate:  %d\nFailed:     %d\nCompared:   %d\nDuration:   %s\n",
				report.Generated, report.Accepted, report.Duplicate, report.Failed, report.Compared,
				report.Duration.Round(time.Millisecond))
			for _, m := range report.Mismatches {
				fmt.Fprintf(a.out, "mismatch: %s\n", m)
			}
			if !report.OK() {
				return ErrLoadMismatch
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.Contributions, "contributions", 10_000, "number of contributions to submit")
	f.IntVar(&cfg.Subjects, "subjects", 500, "number of distinct subjects")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "number of concurrent submitters")
	f.Float64Var(&cfg.Rate, "rate", 0, "submissions per second, 0 for unlimited")
	f.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	f.DurationVar(&cfg.SettleTimeout, "settle", 30*time.Second, "how long to wait for ingestion to finish")
	f.IntVar(&cfg.TopN, "top", 50, "number of subjects to verify")
	f.Uint64Var(&cfg.Seed, "seed", 0, "generator seed, 0 for time-based")
	return cmd
}
