package odds_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/podium/internal/domain/odds"
	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaultModel(t *testing.T) {
	Convey("Given the default anchors", t, func() {
		m, err := odds.New(odds.DefaultAnchors()...)
		So(err, ShouldBeNil)

		Convey("Then anchor distances return the anchor value", func() {
			So(m.Chance(1), ShouldEqual, 25.0)
			So(m.Chance(3), ShouldEqual, 10.0)
			So(m.Chance(5), ShouldEqual, 5.0)
			So(m.Chance(10), ShouldEqual, 1.0)
			So(m.Chance(12), ShouldEqual, 0.1)
		})

		Convey("Then distances between anchors are interpolated", func() {
			So(m.Chance(2), ShouldAlmostEqual, 17.5, 1e-9)
			So(m.Chance(4), ShouldAlmostEqual, 7.5, 1e-9)
			So(m.Chance(11), ShouldAlmostEqual, 0.55, 1e-9)
			So(m.Chance(7), ShouldAlmostEqual, 3.4, 1e-9)
		})

		Convey("Then out of range distances are clamped", func() {
			So(m.Chance(0), ShouldEqual, 25.0)
			So(m.Chance(-4), ShouldEqual, 25.0)
			So(m.Chance(13), ShouldEqual, 0.1)
			So(m.Chance(100), ShouldEqual, 0.1)
			So(m.Chance(math.Inf(1)), ShouldEqual, 0.1)
			So(m.Chance(1e300), ShouldEqual, 0.1)
			So(m.Chance(math.Inf(-1)), ShouldEqual, 25.0)
			So(m.Chance(-1e300), ShouldEqual, 25.0)
			So(m.Chance(math.NaN()), ShouldEqual, 25.0)
		})

		Convey("Then fractional distances round to the nearest integer", func() {
			So(m.Chance(1.4), ShouldEqual, 25.0)
			So(m.Chance(2.6), ShouldEqual, 10.0)
		})

		Convey("Then the max distance is the last anchor", func() {
			So(m.MaxDistance(), ShouldEqual, 12)
		})
	})
}

func TestCustomModel(t *testing.T) {
	Convey("Given anchors out of order and non-monotonic", t, func() {
		m, err := odds.New(
			odds.Anchor{Distance: 4, Percent: 40},
			odds.Anchor{Distance: 2, Percent: 10},
		)

		Convey("Then they are sorted and interpolated as given", func() {
			So(err, ShouldBeNil)
			So(m.Anchors()[0].Distance, ShouldEqual, 2)
			So(m.Chance(3), ShouldAlmostEqual, 25, 1e-9)
			So(m.Chance(1), ShouldEqual, 10.0)
		})
	})

	Convey("Given invalid anchors", t, func() {
		_, err := odds.New()
		So(err, ShouldEqual, odds.ErrNoAnchors)

		_, err = odds.New(odds.Anchor{Distance: 0, Percent: 1})
		So(errors.Is(err, odds.ErrInvalidAnchor), ShouldBeTrue)

		_, err = odds.New(odds.Anchor{Distance: 3, Percent: 1}, odds.Anchor{Distance: 3, Percent: 2})
		So(errors.Is(err, odds.ErrInvalidAnchor), ShouldBeTrue)
	})
}

func TestThreshold(t *testing.T) {
	Convey("Given percentages", t, func() {
		So(odds.Threshold(25), ShouldEqual, 250)
		So(odds.Threshold(17.5), ShouldEqual, 175)
		So(odds.Threshold(1), ShouldEqual, 10)
		So(odds.Threshold(0.1), ShouldEqual, 1)
		So(odds.Threshold(0), ShouldEqual, 0)
		So(odds.Threshold(100), ShouldEqual, odds.RollSides)
	})
}
