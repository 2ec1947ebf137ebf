// Package duel resolves a rank-gated contest between two subjects.
//
// The outcome is decided first from the ranks (a roll only when the actor
// does not strictly outrank a ranked target), then the directed cooldown
// gate is consulted. A higher ranked actor may roll to bypass an active
// cooldown. Only a resolution that proceeds touches the directory, and
// only a successful restriction writes the cooldown and the event log.
package duel

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/podium/internal/domain/cooldown"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/odds"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// Restrictor applies a timed restriction to a subject.
type Restrictor interface {
	ApplyTimedRestriction(ctx context.Context, subjectID string, d time.Duration, reason string) error
}

// EventRecorder persists applied duels.
type EventRecorder interface {
	RecordDuel(ctx context.Context, e model.DuelEvent) error
}

// Settings is the configuration consumed by the resolver.
type Settings struct {
	ScopeID      string
	Slots        int
	UnrankedRank int
	BaseDuration time.Duration
	CooldownTTL  time.Duration
	Reason       string
}

func (s Settings) validate() error {
	switch {
	case s.Slots <= 0:
		return fmt.Errorf("%w: slots must be positive", ErrInvalidSettings)
	case s.UnrankedRank <= 0:
		return fmt.Errorf("%w: unranked rank must be positive", ErrInvalidSettings)
	case s.BaseDuration <= 0:
		return fmt.Errorf("%w: base duration must be positive", ErrInvalidSettings)
	case s.CooldownTTL < 0:
		return fmt.Errorf("%w: cooldown ttl must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Request is one duel attempt. Ranks are 1-based; 0 means unranked.
type Request struct {
	ActorID        string
	TargetID       string
	ActorRank      int
	TargetRank     int
	TargetExcluded bool
}

// Resolver is safe for concurrent use.
type Resolver struct {
	model      *odds.Model
	cooldowns  *cooldown.Store
	restrictor Restrictor
	events     EventRecorder
	settings   Settings
	source     Source
	now        func() time.Time
	logger     logger.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSource sets the random source.
func WithSource(src Source) Option {
	return func(r *Resolver) {
		if src != nil {
			r.source = src
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithEventRecorder sets where applied duels are recorded.
func WithEventRecorder(rec EventRecorder) Option {
	return func(r *Resolver) {
		r.events = rec
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver validates settings and builds a resolver.
func NewResolver(m *odds.Model, cooldowns *cooldown.Store, restrictor Restrictor, settings Settings, opts ...Option) (*Resolver, error) {
	if m == nil || cooldowns == nil || restrictor == nil {
		return nil, fmt.Errorf("%w: model, cooldown store and restrictor are required", ErrInvalidSettings)
	}
	if err := settings.validate(); err != nil {
		return nil, err
	}
	r := &Resolver{
		model:      m,
		cooldowns:  cooldowns,
		restrictor: restrictor,
		settings:   settings,
		source:     NewSource(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("duel")
	}
	return r, nil
}

// Settings returns the resolver configuration.
func (r *Resolver) Settings() Settings {
	return r.settings
}

func (r *Resolver) effective(rank int) int {
	if rank > 0 {
		return rank
	}
	return r.settings.UnrankedRank
}

// roll draws once against the curve at distance.
func (r *Resolver) roll(distance int) Odds {
	chance := r.model.Chance(float64(distance))
	return Odds{
		Rolled:    true,
		Distance:  distance,
		Chance:    chance,
		Threshold: odds.Threshold(chance),
		Roll:      r.source.IntN(odds.RollSides) + 1,
	}
}

// contest decides the primary outcome from the ranks.
func (r *Resolver) contest(req Request) Odds {
	if req.TargetRank <= 0 {
		return Odds{Chance: 100, Threshold: odds.RollSides}
	}
	if req.ActorRank > 0 && req.ActorRank < req.TargetRank {
		return Odds{Chance: 100, Threshold: odds.RollSides}
	}
	return r.roll(r.effective(req.ActorRank) - req.TargetRank)
}

// outranks reports whether the actor may roll to bypass a cooldown.
func (r *Resolver) outranks(req Request) bool {
	return req.ActorRank > 0 && req.ActorRank < r.effective(req.TargetRank)
}

// Resolve decides and, unless blocked by cooldown, applies a duel.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Outcome, error) {
	if req.ActorID == req.TargetID {
		metrics.RecordDuelRejection("self_target")
		r.logger.Debug(ctx, "self-targeted duel rejected", logger.String("actor", req.ActorID))
		return Outcome{}, ErrSelfTarget
	}
	if req.TargetID == "" || req.TargetExcluded {
		metrics.RecordDuelRejection("ineligible_target")
		r.logger.Debug(ctx, "duel against ineligible target rejected",
			logger.String("actor", req.ActorID),
			logger.String("target", req.TargetID),
		)
		return Outcome{}, ErrIneligibleTarget
	}

	out := Outcome{ActorID: req.ActorID, TargetID: req.TargetID}
	out.Odds = r.contest(req)
	if out.Odds.Rolled {
		metrics.RecordDuelRoll(out.Odds.Roll)
	}
	if out.Odds.Success() {
		out.Kind = DirectSuccess
		out.VictimID = req.TargetID
		out.Duration = r.settings.BaseDuration
	} else {
		out.Kind = Backfire
		out.VictimID = req.ActorID
		out.Duration = 2 * r.settings.BaseDuration
	}

	key := cooldown.Key{Actor: req.ActorID, Target: req.TargetID}
	now := r.now()
	if remaining := r.cooldowns.Remaining(key, now, r.settings.CooldownTTL); remaining > 0 {
		if !r.outranks(req) {
			return r.blocked(ctx, out, remaining, nil), nil
		}
		bypass := r.roll(r.settings.Slots - (r.effective(req.TargetRank) - req.ActorRank))
		if !bypass.Success() {
			return r.blocked(ctx, out, remaining, &bypass), nil
		}
		out.Bypass = &bypass
		out.Kind = CooldownOverridden
	}

	if err := r.restrictor.ApplyTimedRestriction(ctx, out.VictimID, out.Duration, r.settings.Reason); err != nil {
		metrics.RecordDuelRejection("restriction_failed")
		r.logger.Warn(ctx, "applying restriction failed",
			logger.String("victim", out.VictimID),
			logger.Duration("duration", out.Duration),
			logger.Error(err),
		)
		return Outcome{}, fmt.Errorf("%w: %w", ErrRestrictionFailed, err)
	}

	if r.events != nil {
		err := r.events.RecordDuel(ctx, model.DuelEvent{
			VictimID:  out.VictimID,
			ScopeID:   r.settings.ScopeID,
			Duration:  out.Duration,
			ActorID:   req.ActorID,
			Backfire:  out.Kind == Backfire,
			CreatedAt: now,
		})
		if err != nil {
			metrics.RecordErrorByComponent("duel", "record_event")
			r.logger.Error(ctx, "recording duel failed", logger.String("victim", out.VictimID), logger.Error(err))
		}
	}
	r.cooldowns.RecordSuccess(key, now)
	metrics.UpdateCooldownEntries(r.cooldowns.Len())
	metrics.RecordDuel(out.Kind.String())

	r.logger.Info(ctx, "duel resolved",
		logger.String("actor", req.ActorID),
		logger.String("target", req.TargetID),
		logger.String("outcome", out.Kind.String()),
		logger.Duration("duration", out.Duration),
	)
	return out, nil
}

func (r *Resolver) blocked(ctx context.Context, out Outcome, remaining time.Duration, bypass *Odds) Outcome {
	metrics.RecordDuel(CooldownBlocked.String())
	r.logger.Debug(ctx, "duel blocked by cooldown",
		logger.String("actor", out.ActorID),
		logger.String("target", out.TargetID),
		logger.Duration("remaining", remaining),
	)
	return Outcome{
		Kind:      CooldownBlocked,
		ActorID:   out.ActorID,
		TargetID:  out.TargetID,
		Remaining: remaining,
		Bypass:    bypass,
	}
}

// Prune drops stale cooldown entries and reports how many were removed.
func (r *Resolver) Prune() int {
	n := r.cooldowns.Prune(r.now(), r.settings.CooldownTTL)
	metrics.RecordCooldownPruned(n)
	metrics.UpdateCooldownEntries(r.cooldowns.Len())
	return n
}
