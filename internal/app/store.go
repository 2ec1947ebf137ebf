package service

import (
	"context"
	"fmt"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/adapters/repository/sqlite"
	"github.com/okian/podium/internal/config"
)

// OpenStore opens the store selected by cfg.StorageDriver.
func OpenStore(ctx context.Context, cfg config.Config, opts ...repository.Option) (repository.Store, error) {
	opts = append([]repository.Option{repository.WithWindow(cfg.RollingWindow)}, opts...)
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.DatabasePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.DriverMemory, "":
		return repository.NewMemoryStore(ctx, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage_driver %q", config.ErrInvalidConfig, cfg.StorageDriver)
	}
}
