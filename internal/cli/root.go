// Package cli implements podiumctl, the storage administration tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/podium/internal/adapters/repository"
	service "github.com/okian/podium/internal/app"
	"github.com/okian/podium/internal/config"
)

// ErrNoDatabase is returned when a command needs an existing database file.
var ErrNoDatabase = errors.New("no database found")

type flags struct {
	configPath string
	driver     string
	dbPath     string
}

type app struct {
	out   io.Writer
	flags flags
}

// NewRootCommand builds the podiumctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "podiumctl",
		Short:         "Inspect and maintain the podium contribution store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", os.Getenv(config.EnvFile), "YAML config file")
	pf.StringVar(&a.flags.driver, "driver", "", "storage driver override (memory|sqlite)")
	pf.StringVar(&a.flags.dbPath, "db", "", "database path override")

	root.AddCommand(
		a.statsCmd(),
		a.listCmd(),
		a.purgeCmd(),
		a.clearSubjectCmd(),
		a.resetCmd(),
		a.loadCmd(),
	)
	return root
}

// Execute runs podiumctl with os.Args.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout).ExecuteContext(ctx)
}

func (a *app) config(ctx context.Context) (config.Config, error) {
	cfg, err := config.LoadFile(ctx, a.flags.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if a.flags.driver != "" {
		cfg.StorageDriver = a.flags.driver
	}
	if a.flags.dbPath != "" {
		cfg.DatabasePath = a.flags.dbPath
	}
	return *cfg, cfg.Validate()
}

// openStore opens the configured store. The sqlite file must already exist.
func (a *app) openStore(ctx context.Context) (repository.Store, config.Config, error) {
	cfg, err := a.config(ctx)
	if err != nil {
		return nil, cfg, err
	}
	if cfg.StorageDriver == config.DriverSQLite {
		if _, err := os.Stat(cfg.DatabasePath); err != nil {
			return nil, cfg, fmt.Errorf("%w at %s", ErrNoDatabase, cfg.DatabasePath)
		}
	}
	store, err := service.OpenStore(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}
	return store, cfg, nil
}

func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, store repository.Store, cfg config.Config) error) error {
	ctx := cmd.Context()
	store, cfg, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, store, cfg)
}
