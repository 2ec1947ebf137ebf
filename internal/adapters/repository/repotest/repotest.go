// Package repotest holds behaviour checks shared by every repository.Store.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/model"
)

// Base is the clock origin used by Run.
var Base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current frozen time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Factory opens a fresh, empty store that reads time from now.
type Factory func(t *testing.T, now func() time.Time) repository.Store

type fixture struct {
	store repository.Store
	clock *Clock
}

func setup(t *testing.T, open Factory) fixture {
	t.Helper()
	clock := NewClock(Base)
	store := open(t, clock.Now)
	t.Cleanup(func() { _ = store.Close() })
	return fixture{store: store, clock: clock}
}

func (f fixture) add(t *testing.T, id, subject string, amount float64, at time.Time) model.Contribution {
	t.Helper()
	c, err := f.store.AddContribution(context.Background(), model.Contribution{
		ID:        id,
		ScopeID:   "scope",
		SubjectID: subject,
		Amount:    amount,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("add %s: %v", id, err)
	}
	return c
}

func ids(rows []model.ScoredSubject) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.SubjectID
	}
	return out
}

func contributionIDs(rows []model.Contribution) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Run exercises open against the common Store contract.
func Run(t *testing.T, open Factory) {
	ctx := context.Background()

	t.Run("OrderingAndTies", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "alice", 10, Base)
		f.add(t, "c2", "bob", 10, Base.Add(time.Minute))
		f.add(t, "c3", "carol", 5, Base.Add(2*time.Minute))
		f.add(t, "c4", "dave", 20, Base.Add(3*time.Minute))
		f.add(t, "c5", "erin", 2.5, Base)
		f.add(t, "c6", "erin", 2.5, Base.Add(4*time.Minute))

		top, err := f.store.TopSubjects(ctx, "scope", 10)
		if err != nil {
			t.Fatalf("top: %v", err)
		}
		want := []string{"dave", "alice", "bob", "erin", "carol"}
		if got := ids(top); !equalStrings(got, want) {
			t.Fatalf("expected order %v, got %v", want, got)
		}
		if top[0].Score != 20 {
			t.Errorf("expected dave score 20, got %f", top[0].Score)
		}
		if !top[1].FirstContributionAt.Equal(Base) {
			t.Errorf("expected alice first contribution %v, got %v", Base, top[1].FirstContributionAt)
		}

		top2, err := f.store.TopSubjects(ctx, "scope", 2)
		if err != nil {
			t.Fatalf("top 2: %v", err)
		}
		if got := ids(top2); !equalStrings(got, []string{"dave", "alice"}) {
			t.Errorf("expected [dave alice], got %v", got)
		}

		for subject, want := range map[string]int{"dave": 1, "bob": 3, "erin": 4, "carol": 5, "nobody": 0} {
			pos, err := f.store.Position(ctx, "scope", subject)
			if err != nil {
				t.Fatalf("position %s: %v", subject, err)
			}
			if pos != want {
				t.Errorf("expected %s at position %d, got %d", subject, want, pos)
			}
		}

		if _, err := f.store.TopSubjects(ctx, "scope", 0); !errors.Is(err, repository.ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
	})

	t.Run("EqualFirstContributionFallsBackToSubjectID", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "zed", 4, Base)
		f.add(t, "c2", "amy", 4, Base)

		top, err := f.store.TopSubjects(ctx, "scope", 5)
		if err != nil {
			t.Fatalf("top: %v", err)
		}
		if got := ids(top); !equalStrings(got, []string{"amy", "zed"}) {
			t.Errorf("expected [amy zed], got %v", got)
		}
	})

	t.Run("SmallestAmountsRank", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "tiny", repository.MinAmount, Base)
		f.add(t, "c2", "amy", 5, Base.Add(time.Minute))
		f.add(t, "c3", "bob", repository.MinAmount, Base)
		f.add(t, "c4", "bob", 5, Base.Add(2*time.Minute))

		top, err := f.store.TopSubjects(ctx, "scope", 5)
		if err != nil {
			t.Fatalf("top: %v", err)
		}
		if got := ids(top); !equalStrings(got, []string{"bob", "amy", "tiny"}) {
			t.Fatalf("expected [bob amy tiny], got %v", got)
		}
		if !top[0].FirstContributionAt.Equal(Base) {
			t.Errorf("expected bob first contribution %v, got %v", Base, top[0].FirstContributionAt)
		}
		if top[2].Score <= 0 {
			t.Errorf("expected tiny to keep a positive score, got %f", top[2].Score)
		}
		if pos, _ := f.store.Position(ctx, "scope", "tiny"); pos != 3 {
			t.Errorf("expected tiny at position 3, got %d", pos)
		}
	})

	t.Run("ScopesAreIsolated", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "alice", 3, Base)
		if _, err := f.store.AddContribution(ctx, model.Contribution{
			ID: "c2", ScopeID: "other", SubjectID: "bob", Amount: 7, CreatedAt: Base,
		}); err != nil {
			t.Fatalf("add: %v", err)
		}

		top, _ := f.store.TopSubjects(ctx, "scope", 5)
		if got := ids(top); !equalStrings(got, []string{"alice"}) {
			t.Errorf("expected [alice], got %v", got)
		}
		empty, err := f.store.TopSubjects(ctx, "missing", 5)
		if err != nil || len(empty) != 0 {
			t.Errorf("expected empty leaderboard, got %v (%v)", empty, err)
		}
	})

	t.Run("RollingWindow", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "old", "alice", 5, Base.Add(-29*24*time.Hour))
		f.add(t, "new", "bob", 3, Base)

		top, _ := f.store.TopSubjects(ctx, "scope", 5)
		if got := ids(top); !equalStrings(got, []string{"alice", "bob"}) {
			t.Fatalf("expected [alice bob], got %v", got)
		}

		f.clock.Advance(2 * 24 * time.Hour)
		top, _ = f.store.TopSubjects(ctx, "scope", 5)
		if got := ids(top); !equalStrings(got, []string{"bob"}) {
			t.Fatalf("expected [bob] after expiry, got %v", got)
		}
		total, err := f.store.SubjectTotal(ctx, "scope", "alice")
		if err != nil || total != 0 {
			t.Errorf("expected alice total 0, got %f (%v)", total, err)
		}
		if pos, _ := f.store.Position(ctx, "scope", "alice"); pos != 0 {
			t.Errorf("expected alice unranked, got %d", pos)
		}

		f.add(t, "late", "carol", 1, time.Time{})
		list, _ := f.store.SubjectContributions(ctx, "scope", "carol")
		if len(list) != 1 || !list[0].CreatedAt.Equal(f.clock.Now()) {
			t.Errorf("expected default timestamp %v, got %v", f.clock.Now(), list)
		}
	})

	t.Run("Validation", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "alice", 1, Base)

		if _, err := f.store.AddContribution(ctx, model.Contribution{
			ID: "c1", ScopeID: "scope", SubjectID: "alice", Amount: 1, CreatedAt: Base,
		}); !errors.Is(err, repository.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		bad := []model.Contribution{
			{ScopeID: "scope", SubjectID: "alice", Amount: 1},
			{ID: "x", ScopeID: "scope", Amount: 1},
			{ID: "x", SubjectID: "alice", Amount: 1},
			{ID: "x", ScopeID: "scope", SubjectID: "alice", Amount: 0},
			{ID: "x", ScopeID: "scope", SubjectID: "alice", Amount: -2},
			{ID: "x", ScopeID: "scope", SubjectID: "alice", Amount: 4e-7},
		}
		for i, c := range bad {
			if _, err := f.store.AddContribution(ctx, c); !errors.Is(err, repository.ErrInvalidContribution) {
				t.Errorf("case %d: expected ErrInvalidContribution, got %v", i, err)
			}
		}
	})

	t.Run("Removal", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "alice", 8, Base)
		f.add(t, "c2", "bob", 2, Base)

		if _, err := f.store.RemoveContribution(ctx, "c1", "bob"); !errors.Is(err, repository.ErrNotOwner) {
			t.Fatalf("expected ErrNotOwner, got %v", err)
		}
		removed, err := f.store.RemoveContribution(ctx, "c1", "alice")
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if !removed.Removed || removed.SubjectID != "alice" {
			t.Errorf("unexpected removed contribution %+v", removed)
		}
		if _, err := f.store.RemoveContribution(ctx, "c1", ""); !errors.Is(err, repository.ErrAlreadyRemoved) {
			t.Errorf("expected ErrAlreadyRemoved, got %v", err)
		}
		if _, err := f.store.RemoveContribution(ctx, "nope", ""); !errors.Is(err, repository.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		top, _ := f.store.TopSubjects(ctx, "scope", 5)
		if got := ids(top); !equalStrings(got, []string{"bob"}) {
			t.Errorf("expected [bob], got %v", got)
		}
	})

	t.Run("SubjectContributions", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "c1", "alice", 1, Base.Add(-time.Hour))
		f.add(t, "c2", "alice", 2, Base)
		f.add(t, "c3", "alice", 4, Base.Add(-2*time.Hour))
		f.add(t, "c4", "bob", 4, Base)
		if _, err := f.store.RemoveContribution(ctx, "c3", ""); err != nil {
			t.Fatalf("remove: %v", err)
		}

		list, err := f.store.SubjectContributions(ctx, "scope", "alice")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if got := contributionIDs(list); !equalStrings(got, []string{"c2", "c1"}) {
			t.Errorf("expected [c2 c1], got %v", got)
		}
		total, _ := f.store.SubjectTotal(ctx, "scope", "alice")
		if total != 3 {
			t.Errorf("expected total 3, got %f", total)
		}
	})

	t.Run("Duels", func(t *testing.T) {
		f := setup(t, open)
		events := []model.DuelEvent{
			{VictimID: "x", ScopeID: "scope", Duration: time.Minute, ActorID: "a", CreatedAt: Base},
			{VictimID: "y", ScopeID: "scope", Duration: time.Minute, ActorID: "a", CreatedAt: Base.Add(time.Minute)},
			{VictimID: "z", ScopeID: "scope", Duration: time.Minute, ActorID: "z", Backfire: true, CreatedAt: Base.Add(2 * time.Minute)},
			{VictimID: "x", ScopeID: "scope", Duration: 30 * time.Second, ActorID: "b", CreatedAt: Base.Add(3 * time.Minute)},
			{VictimID: "x", ScopeID: "other", Duration: time.Hour, ActorID: "b", CreatedAt: Base},
			{VictimID: "y", ScopeID: "scope", Duration: time.Hour, ActorID: "b", CreatedAt: Base.Add(-31 * 24 * time.Hour)},
		}
		for _, e := range events {
			if err := f.store.RecordDuel(ctx, e); err != nil {
				t.Fatalf("record duel: %v", err)
			}
		}

		top, err := f.store.TopRestricted(ctx, "scope", 10)
		if err != nil {
			t.Fatalf("top restricted: %v", err)
		}
		if len(top) != 3 {
			t.Fatalf("expected 3 rows, got %v", top)
		}
		if top[0].SubjectID != "x" || top[0].Count != 2 || top[0].TotalDuration != 90*time.Second {
			t.Errorf("unexpected first row %+v", top[0])
		}
		if top[1].SubjectID != "y" || top[2].SubjectID != "z" {
			t.Errorf("expected y before z, got %v", top)
		}

		stats, err := f.store.RestrictionStats(ctx, "scope", "y")
		if err != nil {
			t.Fatalf("restriction stats: %v", err)
		}
		if stats.Count != 1 || stats.TotalDuration != time.Minute {
			t.Errorf("unexpected stats %+v", stats)
		}
		none, _ := f.store.RestrictionStats(ctx, "scope", "nobody")
		if none.Count != 0 || none.TotalDuration != 0 || none.SubjectID != "nobody" {
			t.Errorf("unexpected empty stats %+v", none)
		}
		if _, err := f.store.TopRestricted(ctx, "scope", 0); !errors.Is(err, repository.ErrInvalidLimit) {
			t.Errorf("expected ErrInvalidLimit, got %v", err)
		}
	})

	t.Run("StatsAndMaintenance", func(t *testing.T) {
		f := setup(t, open)
		f.add(t, "old", "alice", 5, Base.Add(-40*24*time.Hour))
		f.add(t, "a1", "alice", 2, Base.Add(-time.Hour))
		f.add(t, "b1", "bob", 3, Base)
		f.add(t, "b2", "bob", 1, Base.Add(-2*time.Hour))
		if _, err := f.store.RemoveContribution(ctx, "b2", ""); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if err := f.store.RecordDuel(ctx, model.DuelEvent{VictimID: "x", ScopeID: "scope", Duration: time.Second}); err != nil {
			t.Fatalf("record duel: %v", err)
		}

		st, err := f.store.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		want := model.StoreStats{
			ActiveContributions:  3,
			WindowContributions:  2,
			RemovedContributions: 1,
			Subjects:             2,
			WindowTotal:          5,
			DuelEvents:           1,
		}
		if st != want {
			t.Errorf("expected %+v, got %+v", want, st)
		}

		all, _ := f.store.ListContributions(ctx, "bob", 0)
		if got := contributionIDs(all); !equalStrings(got, []string{"b1", "b2"}) {
			t.Errorf("expected [b1 b2], got %v", got)
		}
		active, _ := f.store.ListContributions(ctx, "", 0)
		if got := contributionIDs(active); !equalStrings(got, []string{"b1", "a1"}) {
			t.Errorf("expected [b1 a1], got %v", got)
		}
		limited, _ := f.store.ListContributions(ctx, "", 1)
		if got := contributionIDs(limited); !equalStrings(got, []string{"b1"}) {
			t.Errorf("expected [b1], got %v", got)
		}

		purged, err := f.store.PurgeExpired(ctx, Base.Add(-repository.DefaultWindow))
		if err != nil || purged != 1 {
			t.Fatalf("expected 1 purged, got %d (%v)", purged, err)
		}
		aliceAll, _ := f.store.ListContributions(ctx, "alice", 0)
		if got := contributionIDs(aliceAll); !equalStrings(got, []string{"a1"}) {
			t.Errorf("expected [a1] after purge, got %v", got)
		}

		cleared, err := f.store.ClearSubject(ctx, "alice")
		if err != nil || cleared != 1 {
			t.Fatalf("expected 1 cleared, got %d (%v)", cleared, err)
		}
		top, _ := f.store.TopSubjects(ctx, "scope", 5)
		if got := ids(top); !equalStrings(got, []string{"bob"}) {
			t.Errorf("expected [bob] after clear, got %v", got)
		}
		again, _ := f.store.ClearSubject(ctx, "alice")
		if again != 0 {
			t.Errorf("expected nothing left to clear, got %d", again)
		}
	})
}
