package ranking_test

import (
	"fmt"
	"testing"

	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/ranking"
	. "github.com/smartystreets/goconvey/convey"
)

func subjects(ids ...string) []model.ScoredSubject {
	out := make([]model.ScoredSubject, len(ids))
	for i, id := range ids {
		out[i] = model.ScoredSubject{SubjectID: id, Score: float64(100 - i)}
	}
	return out
}

func TestResolve(t *testing.T) {
	Convey("Given an ordered leaderboard", t, func() {
		board := subjects("alice", "bob", "carol", "dave")

		Convey("When the slot count is smaller than the leaderboard", func() {
			a, err := ranking.Resolve(board, 3)

			Convey("Then only the first n subjects are ranked", func() {
				So(err, ShouldBeNil)
				So(a.Len(), ShouldEqual, 3)
				So(a.Slots(), ShouldEqual, 3)
				So(a.Holders(), ShouldResemble, []string{"alice", "bob", "carol"})

				r, ok := a.RankOf("carol")
				So(ok, ShouldBeTrue)
				So(r, ShouldEqual, 3)

				_, ok = a.RankOf("dave")
				So(ok, ShouldBeFalse)
				So(a.Rank("dave"), ShouldEqual, ranking.Unranked)
			})
		})

		Convey("When the slot count exceeds the leaderboard", func() {
			a, err := ranking.Resolve(board, 12)

			Convey("Then every subject is ranked and the rest of the slots stay empty", func() {
				So(err, ShouldBeNil)
				So(a.Len(), ShouldEqual, 4)
				holder, ok := a.Holder(1)
				So(ok, ShouldBeTrue)
				So(holder, ShouldEqual, "alice")
				_, ok = a.Holder(5)
				So(ok, ShouldBeFalse)
				_, ok = a.Holder(0)
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When the source repeats a subject", func() {
			a, err := ranking.Resolve(subjects("alice", "alice", "bob"), 2)

			Convey("Then the subject keeps a single slot", func() {
				So(err, ShouldBeNil)
				So(a.Holders(), ShouldResemble, []string{"alice", "bob"})
			})
		})

		Convey("When the slot count is not positive", func() {
			for _, n := range []int{0, -1} {
				_, err := ranking.Resolve(board, n)
				So(err, ShouldEqual, ranking.ErrInvalidSlots)
			}
		})

		Convey("When the leaderboard is empty", func() {
			a, err := ranking.Resolve(nil, 10)

			Convey("Then nobody is ranked", func() {
				So(err, ShouldBeNil)
				So(a.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestResolveLargeBoard(t *testing.T) {
	Convey("Given a leaderboard of 100 subjects", t, func() {
		ids := make([]string, 100)
		for i := range ids {
			ids[i] = fmt.Sprintf("s-%03d", i)
		}
		a, err := ranking.Resolve(subjects(ids...), 10)

		Convey("Then ranks follow input order", func() {
			So(err, ShouldBeNil)
			for i := 0; i < 10; i++ {
				So(a.Rank(ids[i]), ShouldEqual, i+1)
			}
			So(a.Rank(ids[10]), ShouldEqual, ranking.Unranked)
		})
	})
}
