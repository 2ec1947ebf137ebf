package service

import (
	"time"

	"github.com/okian/podium/internal/adapters/directory"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/duel"
	"github.com/okian/podium/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service and its components.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore uses store instead of opening one from the configuration.
// The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDirectory uses dir instead of an in-memory directory.
func WithDirectory(dir directory.Client) Option {
	return func(s *Service) {
		if dir != nil {
			s.rawDir = dir
		}
	}
}

// WithDuelSource sets the random source used for duel rolls.
func WithDuelSource(src duel.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets how ids are minted for contributions submitted without one.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}
