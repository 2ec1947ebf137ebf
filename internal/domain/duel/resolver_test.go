package duel_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/podium/internal/domain/cooldown"
	"github.com/okian/podium/internal/domain/duel"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/odds"
	"github.com/okian/podium/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// scripted returns draws in order and panics when it runs out.
type scripted struct {
	draws []int
	calls int
}

func (s *scripted) IntN(n int) int {
	if s.calls >= len(s.draws) {
		panic("unexpected roll")
	}
	d := s.draws[s.calls]
	s.calls++
	return d
}

type restriction struct {
	subject  string
	duration time.Duration
	reason   string
}

type fakeRestrictor struct {
	mu      sync.Mutex
	applied []restriction
	err     error
}

func (f *fakeRestrictor) ApplyTimedRestriction(_ context.Context, subjectID string, d time.Duration, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, restriction{subject: subjectID, duration: d, reason: reason})
	return nil
}

type fakeEvents struct {
	events []model.DuelEvent
	err    error
}

func (f *fakeEvents) RecordDuel(_ context.Context, e model.DuelEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

const base = 71 * time.Second

type harness struct {
	resolver   *duel.Resolver
	source     *scripted
	restrictor *fakeRestrictor
	events     *fakeEvents
	cooldowns  *cooldown.Store
	now        time.Time
}

func newHarness(draws ...int) *harness {
	h := &harness{
		source:     &scripted{draws: draws},
		restrictor: &fakeRestrictor{},
		events:     &fakeEvents{},
		cooldowns:  cooldown.New(),
		now:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	r, err := duel.NewResolver(odds.MustDefault(), h.cooldowns, h.restrictor, duel.Settings{
		ScopeID:      "guild",
		Slots:        12,
		UnrankedRank: 13,
		BaseDuration: base,
		CooldownTTL:  time.Hour,
		Reason:       "duel",
	},
		duel.WithSource(h.source),
		duel.WithClock(func() time.Time { return h.now }),
		duel.WithEventRecorder(h.events),
		duel.WithLogger(logger.Nop()),
	)
	if err != nil {
		panic(err)
	}
	h.resolver = r
	return h
}

func TestResolveValidation(t *testing.T) {
	Convey("Given a resolver", t, func() {
		h := newHarness()
		ctx := context.Background()

		Convey("When the actor targets itself", func() {
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "a", ActorRank: 1})

			Convey("Then it is rejected without side effects", func() {
				So(errors.Is(err, duel.ErrSelfTarget), ShouldBeTrue)
				So(h.restrictor.applied, ShouldBeEmpty)
				So(h.cooldowns.Len(), ShouldEqual, 0)
			})
		})

		Convey("When the target is excluded", func() {
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "bot", TargetExcluded: true})

			Convey("Then it is rejected without side effects", func() {
				So(errors.Is(err, duel.ErrIneligibleTarget), ShouldBeTrue)
				So(h.events.events, ShouldBeEmpty)
			})
		})
	})
}

func TestResolveByRank(t *testing.T) {
	Convey("Given a resolver with the default curve", t, func() {
		ctx := context.Background()

		Convey("When a rank 2 actor targets rank 5", func() {
			h := newHarness()
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 2, TargetRank: 5})

			Convey("Then the target is restricted for the base duration without a roll", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
				So(out.VictimID, ShouldEqual, "t")
				So(out.Duration, ShouldEqual, base)
				So(out.Odds.Rolled, ShouldBeFalse)
				So(h.source.calls, ShouldEqual, 0)
				So(h.restrictor.applied, ShouldResemble, []restriction{{subject: "t", duration: base, reason: "duel"}})
			})

			Convey("Then the event and cooldown are recorded", func() {
				So(len(h.events.events), ShouldEqual, 1)
				e := h.events.events[0]
				So(e.VictimID, ShouldEqual, "t")
				So(e.ActorID, ShouldEqual, "a")
				So(e.ScopeID, ShouldEqual, "guild")
				So(e.Backfire, ShouldBeFalse)
				So(h.cooldowns.IsOnCooldown(cooldown.Key{Actor: "a", Target: "t"}, h.now, time.Hour), ShouldBeTrue)
			})
		})

		Convey("When the target is unranked", func() {
			h := newHarness()
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t"})

			Convey("Then the actor wins without a roll", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
				So(h.source.calls, ShouldEqual, 0)
			})
		})

		Convey("When an unranked actor targets rank 3 and rolls above the threshold", func() {
			h := newHarness(500) // roll 501
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", TargetRank: 3})

			Convey("Then the distance is 10, the chance 1% and the actor is restricted for twice the base", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.Backfire)
				So(out.Odds.Distance, ShouldEqual, 10)
				So(out.Odds.Chance, ShouldEqual, 1.0)
				So(out.Odds.Threshold, ShouldEqual, 10)
				So(out.Odds.Roll, ShouldEqual, 501)
				So(out.VictimID, ShouldEqual, "a")
				So(out.Duration, ShouldEqual, 2*base)
				So(h.events.events[0].Backfire, ShouldBeTrue)
			})
		})

		Convey("When an equal rank actor rolls under the threshold", func() {
			h := newHarness(9) // roll 10, threshold at distance 0 clamps to 250
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 4, TargetRank: 4})

			Convey("Then the actor wins", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
				So(out.Odds.Rolled, ShouldBeTrue)
				So(out.Odds.Threshold, ShouldEqual, 250)
			})
		})

		Convey("When the roll lands exactly on the threshold", func() {
			h := newHarness(174) // roll 175, distance 2 -> 17.5%
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 5, TargetRank: 3})

			Convey("Then it counts as a success", func() {
				So(err, ShouldBeNil)
				So(out.Odds.Threshold, ShouldEqual, 175)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
			})
		})
	})
}

func TestResolveCooldown(t *testing.T) {
	Convey("Given a pair that just dueled", t, func() {
		ctx := context.Background()

		Convey("When an actor without rank advantage tries again within the TTL", func() {
			h := newHarness(0, 0)
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 6, TargetRank: 5})
			So(err, ShouldBeNil)

			h.now = h.now.Add(20 * time.Minute)
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 6, TargetRank: 5})

			Convey("Then it is blocked and nothing changes", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.CooldownBlocked)
				So(out.Remaining, ShouldEqual, 40*time.Minute)
				So(out.Bypass, ShouldBeNil)
				So(len(h.restrictor.applied), ShouldEqual, 1)
				So(len(h.events.events), ShouldEqual, 1)
			})

			Convey("Then the reverse pair is not blocked", func() {
				out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "t", TargetID: "a", ActorRank: 5, TargetRank: 6})
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
			})
		})

		Convey("When the same attempt comes after the TTL", func() {
			h := newHarness(0, 0)
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 6, TargetRank: 5})
			So(err, ShouldBeNil)

			h.now = h.now.Add(time.Hour)
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 6, TargetRank: 5})

			Convey("Then it proceeds normally", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.DirectSuccess)
				So(len(h.restrictor.applied), ShouldEqual, 2)
			})
		})

		Convey("When a higher ranked actor wins the bypass roll", func() {
			h := newHarness(0) // bypass roll 1
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 1, TargetRank: 12})
			So(err, ShouldBeNil)

			h.now = h.now.Add(time.Minute)
			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 1, TargetRank: 12})

			Convey("Then the cooldown is overridden at distance slots minus the rank gap", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.CooldownOverridden)
				So(out.Bypass, ShouldNotBeNil)
				So(out.Bypass.Distance, ShouldEqual, 1)
				So(out.Bypass.Threshold, ShouldEqual, 250)
				So(out.VictimID, ShouldEqual, "t")
				So(out.Duration, ShouldEqual, base)
				So(len(h.restrictor.applied), ShouldEqual, 2)
			})
		})

		Convey("When a higher ranked actor loses the bypass roll", func() {
			h := newHarness(999) // bypass roll 1000
			_, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 2, TargetRank: 3})
			So(err, ShouldBeNil)

			out, err := h.resolver.Resolve(ctx, duel.Request{ActorID: "a", TargetID: "t", ActorRank: 2, TargetRank: 3})

			Convey("Then it stays blocked and reports the bypass odds", func() {
				So(err, ShouldBeNil)
				So(out.Kind, ShouldEqual, duel.CooldownBlocked)
				So(out.Bypass.Distance, ShouldEqual, 11)
				So(out.Bypass.Roll, ShouldEqual, 1000)
				So(len(h.restrictor.applied), ShouldEqual, 1)
			})
		})
	})
}

func TestResolveRestrictionFailure(t *testing.T) {
	Convey("Given a directory that refuses the restriction", t, func() {
		h := newHarness()
		h.restrictor.err = errors.New("missing permissions")

		out, err := h.resolver.Resolve(context.Background(), duel.Request{ActorID: "a", TargetID: "t", ActorRank: 1, TargetRank: 2})

		Convey("Then the failure is reported and no state is written", func() {
			So(errors.Is(err, duel.ErrRestrictionFailed), ShouldBeTrue)
			So(out.Kind, ShouldEqual, duel.Kind(0))
			So(h.cooldowns.Len(), ShouldEqual, 0)
			So(h.events.events, ShouldBeEmpty)
		})
	})

	Convey("Given an event store that fails", t, func() {
		h := newHarness()
		h.events.err = errors.New("disk full")

		out, err := h.resolver.Resolve(context.Background(), duel.Request{ActorID: "a", TargetID: "t", ActorRank: 1, TargetRank: 2})

		Convey("Then the applied outcome is still reported and the cooldown set", func() {
			So(err, ShouldBeNil)
			So(out.Kind, ShouldEqual, duel.DirectSuccess)
			So(h.cooldowns.Len(), ShouldEqual, 1)
		})
	})
}

func TestNewResolverSettings(t *testing.T) {
	Convey("Given invalid settings", t, func() {
		_, err := duel.NewResolver(odds.MustDefault(), cooldown.New(), &fakeRestrictor{}, duel.Settings{Slots: 0, UnrankedRank: 13, BaseDuration: base})
		So(errors.Is(err, duel.ErrInvalidSettings), ShouldBeTrue)

		_, err = duel.NewResolver(nil, cooldown.New(), &fakeRestrictor{}, duel.Settings{Slots: 12, UnrankedRank: 13, BaseDuration: base})
		So(errors.Is(err, duel.ErrInvalidSettings), ShouldBeTrue)
	})
}

func TestSeededSource(t *testing.T) {
	Convey("Given two sources with the same seed", t, func() {
		a, b := duel.NewSeededSource(1, 2), duel.NewSeededSource(1, 2)

		Convey("Then they draw the same in-range sequence", func() {
			for i := 0; i < 100; i++ {
				x := a.IntN(odds.RollSides)
				So(x, ShouldEqual, b.IntN(odds.RollSides))
				So(x, ShouldBeBetweenOrEqual, 0, odds.RollSides-1)
			}
		})
	})
}
