// Package repository stores contributions and duel events and serves the
// rolling leaderboard derived from them.
package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/podium/internal/domain/model"
)

// LeaderboardSource returns subjects by rolling total, best first. Ties are
// broken by earliest contribution in the window, then by subject id.
type LeaderboardSource interface {
	TopSubjects(ctx context.Context, scopeID string, limit int) ([]model.ScoredSubject, error)
}

// EventStore records applied duels.
type EventStore interface {
	RecordDuel(ctx context.Context, e model.DuelEvent) error
}

// Store is the full persistence surface of the service.
type Store interface {
	LeaderboardSource
	EventStore

	// AddContribution persists c. CreatedAt defaults to now.
	AddContribution(ctx context.Context, c model.Contribution) (model.Contribution, error)
	// RemoveContribution soft-removes a contribution. An empty ownerID skips
	// the ownership check.
	RemoveContribution(ctx context.Context, id, ownerID string) (model.Contribution, error)

	SubjectTotal(ctx context.Context, scopeID, subjectID string) (float64, error)
	// Position is the subject's 1-based leaderboard position, 0 without a total.
	Position(ctx context.Context, scopeID, subjectID string) (int, error)
	// SubjectContributions lists active contributions in the window, newest first.
	SubjectContributions(ctx context.Context, scopeID, subjectID string) ([]model.Contribution, error)

	TopRestricted(ctx context.Context, scopeID string, limit int) ([]model.RestrictionTotal, error)
	RestrictionStats(ctx context.Context, scopeID, subjectID string) (model.RestrictionTotal, error)

	Stats(ctx context.Context) (model.StoreStats, error)
	// ListContributions lists every contribution of subjectID including
	// removed ones, or every active contribution in the window when
	// subjectID is empty. Newest first; limit <= 0 means no limit.
	ListContributions(ctx context.Context, subjectID string, limit int) ([]model.Contribution, error)
	// PurgeExpired permanently deletes contributions created before before.
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
	// ClearSubject soft-removes every active contribution of subjectID.
	ClearSubject(ctx context.Context, subjectID string) (int, error)

	Close() error
}

// MinAmount is the smallest contribution amount a store can represent.
const MinAmount = 1.0 / amountScale

// ValidateContribution checks the fields every store requires.
func ValidateContribution(c model.Contribution) error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidContribution)
	case strings.TrimSpace(c.SubjectID) == "":
		return fmt.Errorf("%w: subject_id is required", ErrInvalidContribution)
	case strings.TrimSpace(c.ScopeID) == "":
		return fmt.Errorf("%w: scope_id is required", ErrInvalidContribution)
	case math.IsNaN(c.Amount) || math.IsInf(c.Amount, 0) || c.Amount <= 0:
		return fmt.Errorf("%w: amount must be a positive number", ErrInvalidContribution)
	case c.Amount < MinAmount:
		return fmt.Errorf("%w: amount must be at least %g", ErrInvalidContribution, MinAmount)
	}
	return nil
}
