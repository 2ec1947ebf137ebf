// Package service wires the leaderboard, the rank role sync and the duel
// resolver into the operations served by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/podium/internal/adapters/directory"
	eventqueue "github.com/okian/podium/internal/adapters/mq/queue"
	workerpool "github.com/okian/podium/internal/adapters/mq/worker"
	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/app/rolesync"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/cooldown"
	"github.com/okian/podium/internal/domain/dedupe"
	"github.com/okian/podium/internal/domain/duel"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/odds"
	"github.com/okian/podium/internal/domain/ranking"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// ContributionInput is a contribution as submitted by a client.
type ContributionInput struct {
	ID        string
	SubjectID string
	Amount    float64
	ProofURL  string
	CreatedAt time.Time
}

// Stats is the operational snapshot of a running service.
type Stats struct {
	Store           model.StoreStats `json:"store"`
	QueueLength     int              `json:"queue_length"`
	DedupeSize      int              `json:"dedupe_size"`
	CooldownEntries int              `json:"cooldown_entries"`
	Workers         int              `json:"workers"`
	Sync            rolesync.Status  `json:"sync"`
}

// Service implements the API dependencies for the podium system.
type Service struct {
	mu  sync.RWMutex
	cfg config.Config

	store     repository.Store
	rawDir    directory.Client
	dir       directory.Client
	deduper   dedupe.Deduper
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	cooldowns *cooldown.Store
	resolver  *duel.Resolver
	syncer    *rolesync.Syncer
	sync      *rolesync.Coordinator

	source duel.Source
	now    func() time.Time
	newID  func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service from a validated configuration.
func New(cfg config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:   cfg,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Config returns the configuration the service was built with.
func (s *Service) Config() config.Config { return s.cfg }

// Start builds and starts every component.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting podium service",
		logger.String("scope", cfg.ScopeID),
		logger.Int("slots", cfg.RankSlots),
		logger.String("storage", cfg.StorageDriver),
	)

	curve, err := odds.New(cfg.Anchors()...)
	if err != nil {
		return fmt.Errorf("build odds model: %w", err)
	}

	if s.store == nil {
		store, err := OpenStore(ctx, cfg, repository.WithClock(s.now))
		if err != nil {
			return err
		}
		s.store = store
	}
	if s.rawDir == nil {
		s.rawDir = directory.NewMemory(directory.WithRoles(cfg.RankRoleIDs...))
	}
	s.dir = directory.NewThrottled(s.rawDir, cfg.DirectoryRPS, cfg.DirectoryBurst)

	s.cooldowns = cooldown.New()
	resolverOpts := []duel.Option{
		duel.WithClock(s.now),
		duel.WithEventRecorder(s.store),
		duel.WithLogger(s.logger.Named("duel")),
	}
	if s.source != nil {
		resolverOpts = append(resolverOpts, duel.WithSource(s.source))
	}
	s.resolver, err = duel.NewResolver(curve, s.cooldowns, s.dir, duel.Settings{
		ScopeID:      cfg.ScopeID,
		Slots:        cfg.RankSlots,
		UnrankedRank: cfg.UnrankedRank,
		BaseDuration: cfg.BaseDuration,
		CooldownTTL:  cfg.CooldownTTL,
		Reason:       cfg.RestrictionReason,
	}, resolverOpts...)
	if err != nil {
		return fmt.Errorf("build duel resolver: %w", err)
	}

	s.syncer, err = rolesync.NewSyncer(s.store, s.dir, cfg.ScopeID, cfg.RankRoleIDs, cfg.RankSlots,
		rolesync.WithSyncerLogger(s.logger.Named("rolesync")))
	if err != nil {
		return fmt.Errorf("build role syncer: %w", err)
	}
	if missing := s.syncer.Verify(ctx); missing > 0 {
		s.logger.Warn(ctx, "some rank slots have no usable role", logger.Int("missing", missing))
	}
	s.sync = rolesync.NewCoordinator(s.syncer, rolesync.WithCoordinatorLogger(s.logger.Named("rolesync")))

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.DedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(cfg.QueueSize))
	notify := workerpool.NotifierFunc(func(ctx context.Context) { s.sync.Trigger(ctx) })
	s.pool = workerpool.NewPool(cfg.WorkerCount, s.queue, s.store, notify,
		workerpool.WithLogger(s.logger),
		workerpool.WithForgetter(s.deduper),
	)
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "podium service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", cfg.QueueSize),
		logger.Int("dedupe_size", cfg.DedupeSize),
	)
	return nil
}

// Stop drains the ingestion pipeline, waits for an in-flight sync and
// closes the store. A stopped service is not restarted.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping podium service")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.sync.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for sync: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.started = false
	s.logger.Info(ctx, "podium service stopped")
	return errors.Join(errs...)
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// SubmitContribution validates in and queues it for persistence. It returns
// the contribution id, minting one when in.ID is empty.
func (s *Service) SubmitContribution(ctx context.Context, in ContributionInput) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		in.ID = s.newID()
	}
	c := model.Contribution{
		ID:        in.ID,
		ScopeID:   s.cfg.ScopeID,
		SubjectID: strings.TrimSpace(in.SubjectID),
		Amount:    in.Amount,
		ProofURL:  strings.TrimSpace(in.ProofURL),
		CreatedAt: in.CreatedAt,
	}
	if err := repository.ValidateContribution(c); err != nil {
		metrics.RecordContributionError()
		s.logger.Debug(ctx, "contribution rejected", logger.String("id", c.ID), logger.Error(err))
		return "", err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	s.join(c.SubjectID)

	if s.deduper.SeenAndRecord(ctx, c.ID) {
		metrics.RecordContributionDuplicate()
		return c.ID, fmt.Errorf("%w: %s", repository.ErrDuplicate, c.ID)
	}
	if !s.queue.Enqueue(ctx, c) {
		s.deduper.Unrecord(ctx, c.ID)
		return "", ErrQueueFull
	}
	return c.ID, nil
}

// RemoveContribution soft-removes a contribution. A non-empty ownerID must
// match the contribution's subject.
func (s *Service) RemoveContribution(ctx context.Context, id, ownerID string) (types.Contribution, error) {
	if err := s.ready(); err != nil {
		return types.Contribution{}, err
	}
	c, err := s.store.RemoveContribution(ctx, id, strings.TrimSpace(ownerID))
	if err != nil {
		return types.Contribution{}, err
	}
	metrics.RecordContributionRemoved()
	s.sync.Trigger(ctx)
	return toContribution(c), nil
}

// Leaderboard returns the top limit subjects in the rolling window.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	limit = min(limit, s.cfg.MaxLeaderboardLimit)
	rows, err := s.store.TopSubjects(ctx, s.cfg.ScopeID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.Entry, len(rows))
	for i, r := range rows {
		out[i] = types.Entry{Rank: i + 1, SubjectID: r.SubjectID, Score: r.Score, RoleID: s.roleFor(i + 1)}
	}
	return out, nil
}

func (s *Service) roleFor(rank int) string {
	if rank < 1 || rank > s.cfg.RankSlots || rank > len(s.cfg.RankRoleIDs) {
		return ""
	}
	return s.cfg.RankRoleIDs[rank-1]
}

// Rank returns the standing of one subject.
func (s *Service) Rank(ctx context.Context, subjectID string) (types.Entry, error) {
	if err := s.ready(); err != nil {
		return types.Entry{}, err
	}
	pos, err := s.store.Position(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.Entry{}, err
	}
	if pos == 0 {
		return types.Entry{}, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}
	total, err := s.store.SubjectTotal(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.Entry{}, err
	}
	return types.Entry{Rank: pos, SubjectID: subjectID, Score: total, RoleID: s.roleFor(pos)}, nil
}

// Subject returns a subject's total, position and active contributions.
func (s *Service) Subject(ctx context.Context, subjectID string) (types.SubjectSummary, error) {
	if err := s.ready(); err != nil {
		return types.SubjectSummary{}, err
	}
	list, err := s.store.SubjectContributions(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.SubjectSummary{}, err
	}
	pos, err := s.store.Position(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.SubjectSummary{}, err
	}
	total, err := s.store.SubjectTotal(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.SubjectSummary{}, err
	}
	summary := types.SubjectSummary{
		SubjectID:     subjectID,
		Total:         total,
		Rank:          pos,
		Contributions: make([]types.Contribution, len(list)),
	}
	for i, c := range list {
		summary.Contributions[i] = toContribution(c)
	}
	return summary, nil
}

func toContribution(c model.Contribution) types.Contribution {
	return types.Contribution{
		ID:        c.ID,
		SubjectID: c.SubjectID,
		Amount:    c.Amount,
		ProofURL:  c.ProofURL,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Removed:   c.Removed,
	}
}

// ranks resolves the current rank assignment.
func (s *Service) ranks(ctx context.Context) (*ranking.Assignment, error) {
	rows, err := s.store.TopSubjects(ctx, s.cfg.ScopeID, s.cfg.RankSlots)
	if err != nil {
		return nil, err
	}
	return ranking.Resolve(rows, s.cfg.RankSlots)
}

// join registers subjects with directories that track membership lazily.
func (s *Service) join(ids ...string) {
	j, ok := s.rawDir.(directory.Joiner)
	if !ok {
		return
	}
	for _, id := range ids {
		if id != "" {
			j.Join(id)
		}
	}
}

// excluded reports whether target may not be dueled.
func (s *Service) excluded(ctx context.Context, target string) bool {
	if s.cfg.IsExcluded(target) {
		return true
	}
	elig, ok := s.rawDir.(directory.Eligibility)
	if !ok {
		return false
	}
	bot, err := elig.IsServiceAccount(ctx, target)
	if err != nil {
		s.logger.Warn(ctx, "service account lookup failed", logger.String("subject", target), logger.Error(err))
		return false
	}
	return bot
}

// Duel resolves a duel from actorID against targetID.
func (s *Service) Duel(ctx context.Context, actorID, targetID string) (duel.Outcome, error) {
	if err := s.ready(); err != nil {
		return duel.Outcome{}, err
	}
	actorID, targetID = strings.TrimSpace(actorID), strings.TrimSpace(targetID)
	s.join(actorID, targetID)
	assignment, err := s.ranks(ctx)
	if err != nil {
		return duel.Outcome{}, fmt.Errorf("resolve ranks: %w", err)
	}
	return s.resolver.Resolve(ctx, duel.Request{
		ActorID:        actorID,
		TargetID:       targetID,
		ActorRank:      assignment.Rank(actorID),
		TargetRank:     assignment.Rank(targetID),
		TargetExcluded: targetID != "" && s.excluded(ctx, targetID),
	})
}

// DuelLeaderboard returns the subjects with the most restriction time.
func (s *Service) DuelLeaderboard(ctx context.Context, limit int) ([]types.RestrictionEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.store.TopRestricted(ctx, s.cfg.ScopeID, min(limit, s.cfg.MaxLeaderboardLimit))
	if err != nil {
		return nil, err
	}
	out := make([]types.RestrictionEntry, len(rows))
	for i, r := range rows {
		out[i] = toRestriction(i+1, r)
	}
	return out, nil
}

// DuelStats returns one subject's restriction totals in the window.
func (s *Service) DuelStats(ctx context.Context, subjectID string) (types.RestrictionEntry, error) {
	if err := s.ready(); err != nil {
		return types.RestrictionEntry{}, err
	}
	r, err := s.store.RestrictionStats(ctx, s.cfg.ScopeID, subjectID)
	if err != nil {
		return types.RestrictionEntry{}, err
	}
	return toRestriction(0, r), nil
}

func toRestriction(rank int, r model.RestrictionTotal) types.RestrictionEntry {
	return types.RestrictionEntry{
		Rank:            rank,
		SubjectID:       r.SubjectID,
		Count:           r.Count,
		TotalDurationMS: r.TotalDuration.Milliseconds(),
	}
}

// TriggerSync requests a rank role sync.
func (s *Service) TriggerSync(ctx context.Context) (rolesync.TriggerResult, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res := s.sync.Trigger(ctx)
	if res == rolesync.Rejected {
		return res, ErrNotStarted
	}
	return res, nil
}

// WaitSync blocks until no sync run is in flight.
func (s *Service) WaitSync(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.sync.Wait(ctx)
}

// PruneCooldowns drops expired cooldown entries.
func (s *Service) PruneCooldowns(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n := s.resolver.Prune()
	if n > 0 {
		s.logger.Debug(ctx, "cooldowns pruned", logger.Int("count", n))
	}
	return n, nil
}

// PurgeExpired deletes contributions that left the rolling window.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	n, err := s.store.PurgeExpired(ctx, s.now().Add(-s.cfg.RollingWindow))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "expired contributions purged", logger.Int("count", n))
	}
	return n, nil
}

// Stats returns an operational snapshot.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if err := s.ready(); err != nil {
		return Stats{}, err
	}
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Store:           st,
		QueueLength:     s.queue.Len(ctx),
		DedupeSize:      s.deduper.Size(),
		CooldownEntries: s.cooldowns.Len(),
		Workers:         s.pool.Size(),
		Sync:            s.sync.Status(),
	}, nil
}
