// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and PODIUM_ environment variables on top.
// - A loaded Config is treated as immutable and passed by value.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/okian/podium/internal/domain/odds"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ScopeID is the community the leaderboard and duels belong to.
	ScopeID string `koanf:"scope_id"`

	// RankSlots is the number of rank roles; RankRoleIDs[i] is slot i+1.
	RankSlots   int      `koanf:"rank_slots"`
	RankRoleIDs []string `koanf:"rank_role_ids"`

	// ExcludedSubjects can never be duel targets.
	ExcludedSubjects []string `koanf:"excluded_subjects"`

	// Success percentages at rank distances 1, 3, 5, 10 and 12.
	ChanceDiff1  float64 `koanf:"chance_diff_1"`
	ChanceDiff3  float64 `koanf:"chance_diff_3"`
	ChanceDiff5  float64 `koanf:"chance_diff_5"`
	ChanceDiff10 float64 `koanf:"chance_diff_10"`
	ChanceDiff12 float64 `koanf:"chance_diff_12"`

	// UnrankedRank is the effective rank of a subject without a slot.
	UnrankedRank int `koanf:"unranked_rank"`

	CooldownTTL       time.Duration `koanf:"cooldown_ttl"`
	BaseDuration      time.Duration `koanf:"base_duration"`
	RestrictionReason string        `koanf:"restriction_reason"`

	// Periodic jobs. Zero disables a job.
	SyncInterval          time.Duration `koanf:"sync_interval"`
	CooldownPruneInterval time.Duration `koanf:"cooldown_prune_interval"`
	PurgeInterval         time.Duration `koanf:"purge_interval"`

	// RollingWindow is how far back contributions count toward totals.
	RollingWindow time.Duration `koanf:"rolling_window"`

	StorageDriver string `koanf:"storage_driver"`
	DatabasePath  string `koanf:"database_path"`

	// Outbound directory call pacing. DirectoryRPS <= 0 disables it.
	DirectoryRPS   float64 `koanf:"directory_rps"`
	DirectoryBurst int     `koanf:"directory_burst"`

	// QueueSize bounds the in-memory contribution queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of ingestion workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many recent contribution ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		ScopeID:               "default",
		RankSlots:             12,
		RankRoleIDs:           []string{},
		ExcludedSubjects:      []string{},
		ChanceDiff1:           25,
		ChanceDiff3:           10,
		ChanceDiff5:           5,
		ChanceDiff10:          1,
		ChanceDiff12:          0.1,
		UnrankedRank:          13,
		CooldownTTL:           time.Hour,
		BaseDuration:          71 * time.Second,
		RestrictionReason:     "duel",
		SyncInterval:          24 * time.Hour,
		CooldownPruneInterval: 10 * time.Minute,
		PurgeInterval:         24 * time.Hour,
		RollingWindow:         30 * 24 * time.Hour,
		StorageDriver:         DriverMemory,
		DatabasePath:          "podium.db",
		DirectoryRPS:          50,
		DirectoryBurst:        10,
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU(),
		DedupeSize:            100_000,
		MaxLeaderboardLimit:   100,
	}
}

// Anchors returns the probability curve anchors.
func (c Config) Anchors() []odds.Anchor {
	return []odds.Anchor{
		{Distance: 1, Percent: c.ChanceDiff1},
		{Distance: 3, Percent: c.ChanceDiff3},
		{Distance: 5, Percent: c.ChanceDiff5},
		{Distance: 10, Percent: c.ChanceDiff10},
		{Distance: 12, Percent: c.ChanceDiff12},
	}
}

// IsExcluded reports whether subjectID is configured as ineligible.
func (c Config) IsExcluded(subjectID string) bool {
	for _, id := range c.ExcludedSubjects {
		if id == subjectID {
			return true
		}
	}
	return false
}

// Validate checks invariants the rest of the service relies on.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.RankSlots <= 0 {
		return fmt.Errorf("%w: rank_slots must be positive", ErrInvalidConfig)
	}
	if c.UnrankedRank <= c.RankSlots {
		return fmt.Errorf("%w: unranked_rank must exceed rank_slots", ErrInvalidConfig)
	}
	seen := make(map[string]int, len(c.RankRoleIDs))
	for i, id := range c.RankRoleIDs {
		if id == "" {
			continue
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: role %s used by slots %d and %d", ErrInvalidConfig, id, prev+1, i+1)
		}
		seen[id] = i
	}
	if c.BaseDuration <= 0 {
		return fmt.Errorf("%w: base_duration must be positive", ErrInvalidConfig)
	}
	if c.CooldownTTL < 0 || c.RollingWindow <= 0 {
		return fmt.Errorf("%w: cooldown_ttl must not be negative and rolling_window must be positive", ErrInvalidConfig)
	}
	if _, err := odds.New(c.Anchors()...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.StorageDriver {
	case DriverMemory:
	case DriverSQLite:
		if c.DatabasePath == "" {
			return fmt.Errorf("%w: database_path is required for sqlite", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}
	if c.QueueSize <= 0 || c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: queue_size and max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
