package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/config"
)

const timeLayout = "2006-01-02 15:04:05"

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show contribution and duel counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store repository.Store, cfg config.Config) error {
				st, err := store.Stats(ctx)
				if err != nil {
					return fmt.Errorf("read stats: %w", err)
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "Storage:\t%s\n", describe(cfg))
				fmt.Fprintf(w, "Active contributions (all time):\t%d\n", st.ActiveContributions)
				fmt.Fprintf(w, "Active contributions (window):\t%d\n", st.WindowContributions)
				fmt.Fprintf(w, "Removed contributions:\t%d\n", st.RemovedContributions)
				fmt.Fprintf(w, "Unique subjects:\t%d\n", st.Subjects)
				fmt.Fprintf(w, "Total amount (window):\t%.2f\n", st.WindowTotal)
				fmt.Fprintf(w, "Duel events:\t%d\n", st.DuelEvents)
				return w.Flush()
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list [subject]",
		Short: "List active contributions in the window, or every contribution of one subject",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := ""
			if len(args) == 1 {
				subject = strings.TrimSpace(args[0])
			}
			return a.withStore(cmd, func(ctx context.Context, store repository.Store, _ config.Config) error {
				rows, err := store.ListContributions(ctx, subject, limit)
				if err != nil {
					return fmt.Errorf("list contributions: %w", err)
				}
				if len(rows) == 0 {
					fmt.Fprintln(a.out, "No contributions found.")
					return nil
				}
				w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSUBJECT\tAMOUNT\tDATE\tREMOVED")
				for _, c := range rows {
					removed := "no"
					if c.Removed {
						removed = "yes"
					}
					fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
						c.ID, c.SubjectID, c.Amount, c.CreatedAt.UTC().Format(timeLayout), removed)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "\n%d contribution(s) found.\n", len(rows))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows, 0 for all")
	return cmd
}

func (a *app) purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-expired",
		Short: "Permanently delete contributions older than the rolling window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store repository.Store, cfg config.Config) error {
				n, err := store.PurgeExpired(ctx, time.Now().Add(-cfg.RollingWindow))
				if err != nil {
					return fmt.Errorf("purge expired: %w", err)
				}
				fmt.Fprintf(a.out, "Permanently deleted %d expired contribution(s).\n", n)
				return nil
			})
		},
	}
}

func (a *app) clearSubjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-subject <id>",
		Short: "Remove every active contribution of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := strings.TrimSpace(args[0])
			if subject == "" {
				return errors.New("subject id must not be empty")
			}
			return a.withStore(cmd, func(ctx context.Context, store repository.Store, _ config.Config) error {
				n, err := store.ClearSubject(ctx, subject)
				if err != nil {
					return fmt.Errorf("clear subject: %w", err)
				}
				fmt.Fprintf(a.out, "Removed %d contribution(s) for subject %s.\n", n, subject)
				return nil
			})
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the database file; it is recreated on next start",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.StorageDriver != config.DriverSQLite {
				fmt.Fprintln(a.out, "Memory storage has nothing to reset.")
				return nil
			}
			if _, err := os.Stat(cfg.DatabasePath); errors.Is(err, os.ErrNotExist) {
				fmt.Fprintln(a.out, "No database found. Nothing to reset.")
				return nil
			}
			for _, path := range []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"} {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("remove %s: %w", path, err)
				}
			}
			fmt.Fprintln(a.out, "Database deleted. It will be recreated on next start.")
			return nil
		},
	}
}

func describe(cfg config.Config) string {
	if cfg.StorageDriver == config.DriverSQLite {
		return "sqlite " + cfg.DatabasePath
	}
	return cfg.StorageDriver
}
