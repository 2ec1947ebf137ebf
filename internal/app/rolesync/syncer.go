package rolesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/podium/internal/adapters/directory"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/ranking"
	"github.com/okian/podium/internal/domain/roles"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Leaderboard returns subjects ordered best first.
type Leaderboard interface {
	TopSubjects(ctx context.Context, scopeID string, limit int) ([]model.ScoredSubject, error)
}

// Directory is the part of the directory client a sync run uses.
type Directory interface {
	RoleHolders(ctx context.Context, roleID string) ([]string, error)
	AddRole(ctx context.Context, subjectID, roleID string) error
	RemoveRole(ctx context.Context, subjectID, roleID string) error
}

// Report summarizes one run.
type Report struct {
	Ranked       int `json:"ranked"`
	Changes      int `json:"changes"`
	Added        int `json:"added"`
	Removed      int `json:"removed"`
	Failed       int `json:"failed"`
	SkippedSlots int `json:"skipped_slots"`
}

// Syncer runs one leaderboard to directory reconciliation.
type Syncer struct {
	board   Leaderboard
	dir     Directory
	scopeID string
	roleIDs []string
	slots   int
	logger  logger.Logger
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithSyncerLogger sets the syncer logger.
func WithSyncerLogger(l logger.Logger) SyncerOption {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSyncer creates a syncer for slots rank roles. roleIDs[i] is the role of
// slot i+1; missing or empty entries leave the slot unassigned.
func NewSyncer(board Leaderboard, dir Directory, scopeID string, roleIDs []string, slots int, opts ...SyncerOption) (*Syncer, error) {
	if slots <= 0 {
		return nil, ranking.ErrInvalidSlots
	}
	s := &Syncer{
		board:   board,
		dir:     dir,
		scopeID: scopeID,
		roleIDs: append([]string(nil), roleIDs...),
		slots:   slots,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("rolesync")
	}
	return s, nil
}

// slotRole returns the role configured for slot, or "".
func (s *Syncer) slotRole(slot int) string {
	if slot < 1 || slot > len(s.roleIDs) {
		return ""
	}
	return s.roleIDs[slot-1]
}

// Verify checks every slot has a role that exists in the directory and logs
// a warning for each that does not. It returns the number of problems.
func (s *Syncer) Verify(ctx context.Context) int {
	missing := 0
	for slot := 1; slot <= s.slots; slot++ {
		id := s.slotRole(slot)
		if id == "" {
			missing++
			s.logger.Warn(ctx, "rank slot has no role configured", logger.Int("slot", slot))
			continue
		}
		if _, err := s.dir.RoleHolders(ctx, id); errors.Is(err, directory.ErrNotFound) {
			missing++
			s.logger.Warn(ctx, "rank role not found in directory", logger.Int("slot", slot), logger.String("role", id))
		}
	}
	return missing
}

// Sync fetches the top subjects and current holders, diffs them, and applies
// the changes. A failing subject is skipped; a failing holder listing aborts
// the run before any mutation.
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	var report Report

	top, err := s.board.TopSubjects(ctx, s.scopeID, s.slots)
	if err != nil {
		return report, fmt.Errorf("fetch leaderboard: %w", err)
	}
	desired, err := ranking.Resolve(top, s.slots)
	if err != nil {
		return report, err
	}
	report.Ranked = desired.Len()
	metrics.UpdateRankedSubjects(report.Ranked)

	roleIDs := make([]string, s.slots)
	current := roles.Holders{}
	for slot := 1; slot <= s.slots; slot++ {
		id := s.slotRole(slot)
		if id == "" {
			report.SkippedSlots++
			metrics.RecordSkippedSlot()
			s.logger.Warn(ctx, "skipping rank slot without role", logger.Int("slot", slot))
			continue
		}
		holders, err := s.dir.RoleHolders(ctx, id)
		if errors.Is(err, directory.ErrNotFound) {
			report.SkippedSlots++
			metrics.RecordSkippedSlot()
			s.logger.Warn(ctx, "skipping rank slot with unknown role", logger.Int("slot", slot), logger.String("role", id))
			continue
		}
		if err != nil {
			return report, fmt.Errorf("list holders of %s: %w", id, err)
		}
		roleIDs[slot-1] = id
		for _, subjectID := range holders {
			current.Add(subjectID, id)
		}
	}

	changes := roles.Diff(desired, roleIDs, current)
	report.Changes = len(changes)
	for _, c := range changes {
		added, removed, err := s.apply(ctx, c)
		report.Added += added
		report.Removed += removed
		if err != nil {
			report.Failed++
			metrics.RecordRoleChangeError()
			s.logger.Warn(ctx, "updating roles failed", logger.String("subject", c.SubjectID), logger.Error(err))
		}
	}
	return report, nil
}

// apply removes then adds, stopping at the first error for this subject.
func (s *Syncer) apply(ctx context.Context, c roles.Change) (added, removed int, err error) {
	for _, r := range c.Remove {
		if err := s.dir.RemoveRole(ctx, c.SubjectID, r); err != nil {
			return added, removed, fmt.Errorf("remove %s: %w", r, err)
		}
		removed++
		metrics.RecordRoleChange("remove")
	}
	for _, r := range c.Add {
		if err := s.dir.AddRole(ctx, c.SubjectID, r); err != nil {
			return added, removed, fmt.Errorf("add %s: %w", r, err)
		}
		added++
		metrics.RecordRoleChange("add")
	}
	return added, removed, nil
}
