// Package odds maps a rank distance to a success percentage.
//
// The curve is piecewise linear between configured anchors. Distances are
// rounded to the nearest integer and clamped to the anchor range, so values
// below the first anchor take the first anchor's percentage and values past
// the last anchor take the last one. Percentages are not validated: a
// non-monotonic configuration is interpolated as given.
package odds

import (
	"fmt"
	"math"
	"sort"
)

// RollSides is the number of faces of the roll used against a threshold.
const RollSides = 1000

// Anchor pins the success percentage at one rank distance.
type Anchor struct {
	Distance int
	Percent  float64
}

// Model is an immutable piecewise-linear probability curve.
type Model struct {
	anchors []Anchor
}

// DefaultAnchors returns the stock curve: 25% one rank apart down to 0.1% at twelve.
func DefaultAnchors() []Anchor {
	return []Anchor{
		{Distance: 1, Percent: 25},
		{Distance: 3, Percent: 10},
		{Distance: 5, Percent: 5},
		{Distance: 10, Percent: 1},
		{Distance: 12, Percent: 0.1},
	}
}

// New builds a model from anchors given in any order.
func New(anchors ...Anchor) (*Model, error) {
	if len(anchors) == 0 {
		return nil, ErrNoAnchors
	}
	sorted := make([]Anchor, len(anchors))
	copy(sorted, anchors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Distance < sorted[j].Distance })

	for i, a := range sorted {
		if a.Distance <= 0 {
			return nil, fmt.Errorf("%w: distance %d", ErrInvalidAnchor, a.Distance)
		}
		if i > 0 && sorted[i-1].Distance == a.Distance {
			return nil, fmt.Errorf("%w: distance %d repeated", ErrInvalidAnchor, a.Distance)
		}
		if math.IsNaN(a.Percent) || math.IsInf(a.Percent, 0) {
			return nil, fmt.Errorf("%w: percent at distance %d is not finite", ErrInvalidAnchor, a.Distance)
		}
	}
	return &Model{anchors: sorted}, nil
}

// MustDefault returns the default model.
func MustDefault() *Model {
	m, err := New(DefaultAnchors()...)
	if err != nil {
		panic(err)
	}
	return m
}

// Anchors returns a copy of the anchors sorted by distance.
func (m *Model) Anchors() []Anchor {
	out := make([]Anchor, len(m.anchors))
	copy(out, m.anchors)
	return out
}

// MaxDistance is the distance of the last anchor.
func (m *Model) MaxDistance() int {
	return m.anchors[len(m.anchors)-1].Distance
}

// Chance returns the success percentage at distance.
func (m *Model) Chance(distance float64) float64 {
	first, last := m.anchors[0], m.anchors[len(m.anchors)-1]
	switch {
	case math.IsNaN(distance), distance <= float64(first.Distance):
		return first.Percent
	case distance >= float64(last.Distance):
		return last.Percent
	}
	d := int(math.Round(distance))
	if d <= first.Distance {
		return first.Percent
	}
	if d >= last.Distance {
		return last.Percent
	}

	// first anchor with Distance >= d; never 0 here because d > first.Distance
	i := sort.Search(len(m.anchors), func(i int) bool { return m.anchors[i].Distance >= d })
	hi := m.anchors[i]
	if hi.Distance == d {
		return hi.Percent
	}
	lo := m.anchors[i-1]
	t := float64(d-lo.Distance) / float64(hi.Distance-lo.Distance)
	return lo.Percent + t*(hi.Percent-lo.Percent)
}

// Threshold converts a percentage to the highest winning roll out of RollSides.
// A roll r in [1, RollSides] succeeds iff r <= Threshold(chance).
func Threshold(chance float64) int {
	return int(math.Round(chance * RollSides / 100))
}
