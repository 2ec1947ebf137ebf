package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/metrics"
)

type subjectKey struct {
	scope   string
	subject string
}

// MemoryStore is an in-process Store. Each scope keeps a treap index of
// rolling totals that is brought up to date with the window on every call.
type MemoryStore struct {
	opts Options

	mu       sync.RWMutex
	byID     map[string]*model.Contribution
	bySubj   map[subjectKey][]*model.Contribution // sorted by CreatedAt asc
	timeline []*model.Contribution                // sorted by CreatedAt asc
	cursor   int                                  // timeline[:cursor] is outside the window
	cutoff   time.Time
	indexes  map[string]*index
	duels    []model.DuelEvent
	closed   bool

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore constructs a memory store with configuration options.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		opts:     BuildOptions(opts...),
		byID:     make(map[string]*model.Contribution),
		bySubj:   make(map[subjectKey][]*model.Contribution),
		indexes:  make(map[string]*index),
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background metrics updater.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.stopChan)
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) indexFor(scope string) *index {
	ix, ok := s.indexes[scope]
	if !ok {
		ix = newIndex()
		s.indexes[scope] = ix
	}
	return ix
}

func (s *MemoryStore) active(c *model.Contribution) bool {
	return !c.Removed && !c.CreatedAt.Before(s.cutoff)
}

// advanceLocked moves the window to now and re-indexes subjects whose
// contributions fell out of it. Must be called with mu held for writing.
func (s *MemoryStore) advanceLocked(now time.Time) {
	cutoff := s.opts.Cutoff(now)
	if !cutoff.After(s.cutoff) {
		return
	}
	s.cutoff = cutoff
	touched := make(map[subjectKey]struct{})
	for s.cursor < len(s.timeline) && s.timeline[s.cursor].CreatedAt.Before(cutoff) {
		c := s.timeline[s.cursor]
		if !c.Removed {
			touched[subjectKey{c.ScopeID, c.SubjectID}] = struct{}{}
		}
		s.cursor++
	}
	for k := range touched {
		s.reindexLocked(k)
	}
}

// reindexLocked recomputes one subject's total and first contribution.
func (s *MemoryStore) reindexLocked(k subjectKey) {
	var (
		total amountFP
		first time.Time
		seen  bool
	)
	for _, c := range s.bySubj[k] {
		if !s.active(c) {
			continue
		}
		if !seen {
			first, seen = c.CreatedAt, true
		}
		total += toFixedPoint(c.Amount)
	}
	s.indexFor(k.scope).set(k.subject, total, first)
}

// insertSorted inserts c into list keeping CreatedAt order; equal times keep arrival order.
func insertSorted(list []*model.Contribution, c *model.Contribution) []*model.Contribution {
	i := sort.Search(len(list), func(i int) bool { return list[i].CreatedAt.After(c.CreatedAt) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = c
	return list
}

// AddContribution implements Store.
func (s *MemoryStore) AddContribution(ctx context.Context, c model.Contribution) (model.Contribution, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := ValidateContribution(c); err != nil {
		return model.Contribution{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Contribution{}, ErrClosed
	}
	now := s.opts.Now()
	s.advanceLocked(now)

	if _, dup := s.byID[c.ID]; dup {
		return model.Contribution{}, fmt.Errorf("%w: %s", ErrDuplicate, c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.Removed = false
	stored := c
	s.byID[c.ID] = &stored

	k := subjectKey{c.ScopeID, c.SubjectID}
	s.bySubj[k] = insertSorted(s.bySubj[k], &stored)
	pos := sort.Search(len(s.timeline), func(i int) bool { return s.timeline[i].CreatedAt.After(stored.CreatedAt) })
	s.timeline = insertSorted(s.timeline, &stored)
	if pos < s.cursor {
		s.cursor++
	}
	if s.active(&stored) {
		s.reindexLocked(k)
	}
	return stored, nil
}

// RemoveContribution implements Store.
func (s *MemoryStore) RemoveContribution(ctx context.Context, id, ownerID string) (model.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	c, ok := s.byID[id]
	if !ok {
		return model.Contribution{}, ErrNotFound
	}
	if ownerID != "" && c.SubjectID != ownerID {
		return model.Contribution{}, ErrNotOwner
	}
	if c.Removed {
		return model.Contribution{}, ErrAlreadyRemoved
	}
	wasActive := s.active(c)
	c.Removed = true
	if wasActive {
		s.reindexLocked(subjectKey{c.ScopeID, c.SubjectID})
	}
	return *c, nil
}

// TopSubjects implements LeaderboardSource.
func (s *MemoryStore) TopSubjects(ctx context.Context, scopeID string, limit int) ([]model.ScoredSubject, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	ix, ok := s.indexes[scopeID]
	if !ok {
		return []model.ScoredSubject{}, nil
	}
	keys := ix.top(limit)
	out := make([]model.ScoredSubject, len(keys))
	for i, k := range keys {
		out[i] = model.ScoredSubject{
			SubjectID:           k.id,
			Score:               toFloat(k.total),
			FirstContributionAt: time.Unix(0, k.first).UTC(),
		}
	}
	return out, nil
}

// Position implements Store.
func (s *MemoryStore) Position(ctx context.Context, scopeID, subjectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())
	ix, ok := s.indexes[scopeID]
	if !ok {
		return 0, nil
	}
	return ix.rank(subjectID), nil
}

// SubjectTotal implements Store.
func (s *MemoryStore) SubjectTotal(ctx context.Context, scopeID, subjectID string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())
	var total amountFP
	for _, c := range s.bySubj[subjectKey{scopeID, subjectID}] {
		if s.active(c) {
			total += toFixedPoint(c.Amount)
		}
	}
	return toFloat(total), nil
}

// SubjectContributions implements Store.
func (s *MemoryStore) SubjectContributions(ctx context.Context, scopeID, subjectID string) ([]model.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())
	list := s.bySubj[subjectKey{scopeID, subjectID}]
	out := make([]model.Contribution, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if s.active(list[i]) {
			out = append(out, *list[i])
		}
	}
	return out, nil
}

// RecordDuel implements EventStore.
func (s *MemoryStore) RecordDuel(ctx context.Context, e model.DuelEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.opts.Now()
	}
	s.duels = append(s.duels, e)
	return nil
}

// restrictionTotals aggregates duels in scope within the window.
func (s *MemoryStore) restrictionTotals(scopeID string, cutoff time.Time) (map[string]*model.RestrictionTotal, map[string]time.Time) {
	totals := make(map[string]*model.RestrictionTotal)
	first := make(map[string]time.Time)
	for _, e := range s.duels {
		if e.ScopeID != scopeID || e.CreatedAt.Before(cutoff) {
			continue
		}
		t, ok := totals[e.VictimID]
		if !ok {
			t = &model.RestrictionTotal{SubjectID: e.VictimID}
			totals[e.VictimID] = t
			first[e.VictimID] = e.CreatedAt
		}
		t.Count++
		t.TotalDuration += e.Duration
		if e.CreatedAt.Before(first[e.VictimID]) {
			first[e.VictimID] = e.CreatedAt
		}
	}
	return totals, first
}

// TopRestricted implements Store.
func (s *MemoryStore) TopRestricted(ctx context.Context, scopeID string, limit int) ([]model.RestrictionTotal, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	totals, first := s.restrictionTotals(scopeID, s.opts.Cutoff(s.opts.Now()))
	s.mu.RUnlock()

	out := make([]model.RestrictionTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDuration != out[j].TotalDuration {
			return out[i].TotalDuration > out[j].TotalDuration
		}
		fi, fj := first[out[i].SubjectID], first[out[j].SubjectID]
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RestrictionStats implements Store.
func (s *MemoryStore) RestrictionStats(ctx context.Context, scopeID, subjectID string) (model.RestrictionTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	totals, _ := s.restrictionTotals(scopeID, s.opts.Cutoff(s.opts.Now()))
	if t, ok := totals[subjectID]; ok {
		return *t, nil
	}
	return model.RestrictionTotal{SubjectID: subjectID}, nil
}

// Stats implements Store.
func (s *MemoryStore) Stats(ctx context.Context) (model.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	var st model.StoreStats
	var windowTotal amountFP
	subjects := make(map[string]struct{})
	for _, c := range s.byID {
		if c.Removed {
			st.RemovedContributions++
			continue
		}
		st.ActiveContributions++
		subjects[c.SubjectID] = struct{}{}
		if s.active(c) {
			st.WindowContributions++
			windowTotal += toFixedPoint(c.Amount)
		}
	}
	st.Subjects = len(subjects)
	st.WindowTotal = toFloat(windowTotal)
	st.DuelEvents = len(s.duels)
	return st, nil
}

// ListContributions implements Store.
func (s *MemoryStore) ListContributions(ctx context.Context, subjectID string, limit int) ([]model.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	var out []model.Contribution
	for i := len(s.timeline) - 1; i >= 0; i-- {
		c := s.timeline[i]
		if subjectID != "" {
			if c.SubjectID != subjectID {
				continue
			}
		} else if !s.active(c) {
			continue
		}
		out = append(out, *c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// PurgeExpired implements Store.
func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	n := sort.Search(len(s.timeline), func(i int) bool { return !s.timeline[i].CreatedAt.Before(before) })
	if n == 0 {
		return 0, nil
	}
	touched := make(map[subjectKey]struct{})
	for _, c := range s.timeline[:n] {
		delete(s.byID, c.ID)
		k := subjectKey{c.ScopeID, c.SubjectID}
		touched[k] = struct{}{}
	}
	s.timeline = append([]*model.Contribution(nil), s.timeline[n:]...)
	s.cursor = max(s.cursor-n, 0)
	for k := range touched {
		kept := s.bySubj[k][:0]
		for _, c := range s.bySubj[k] {
			if !c.CreatedAt.Before(before) {
				kept = append(kept, c)
			}
		}
		if len(kept) == 0 {
			delete(s.bySubj, k)
		} else {
			s.bySubj[k] = kept
		}
		s.reindexLocked(k)
	}
	return n, nil
}

// ClearSubject implements Store.
func (s *MemoryStore) ClearSubject(ctx context.Context, subjectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceLocked(s.opts.Now())

	n := 0
	for k, list := range s.bySubj {
		if k.subject != subjectID {
			continue
		}
		for _, c := range list {
			if !c.Removed {
				c.Removed = true
				n++
			}
		}
		s.reindexLocked(k)
	}
	return n, nil
}

// startMetricsUpdater starts a background goroutine that updates repository metrics.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.MetricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	n := 0
	for _, ix := range s.indexes {
		n += ix.len()
	}
	s.mu.RUnlock()
	metrics.UpdateRepositorySubjects(n)
}
