package loadtest

import (
	"fmt"
	"math"
	"sort"
	"time"
)

const scoreTolerance = 1e-6

// expectedRanking orders the subjects of contributions the way the server
// does: total desc, earliest contribution asc, subject id asc. Ranks are
// relative to this run only.
func expectedRanking(contributions []Contribution) []Entry {
	type acc struct {
		total float64
		first time.Time
	}
	by := make(map[string]*acc)
	for _, c := range contributions {
		ts, _ := time.Parse(time.RFC3339, c.CreatedAt)
		a, ok := by[c.SubjectID]
		if !ok {
			by[c.SubjectID] = &acc{total: c.Amount, first: ts}
			continue
		}
		a.total += c.Amount
		if ts.Before(a.first) {
			a.first = ts
		}
	}

	ids := make([]string, 0, len(by))
	for id := range by {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := by[ids[i]], by[ids[j]]
		if math.Abs(a.total-b.total) > scoreTolerance {
			return a.total > b.total
		}
		if !a.first.Equal(b.first) {
			return a.first.Before(b.first)
		}
		return ids[i] < ids[j]
	})

	out := make([]Entry, len(ids))
	for i, id := range ids {
		out[i] = Entry{Rank: i + 1, SubjectID: id, Score: by[id].total}
	}
	return out
}

// compare checks actual server entries against the expected ranking. Other
// subjects may sit between ours, so only relative order is checked.
func compare(expected, actual []Entry) []string {
	want := make(map[string]Entry, len(expected))
	for _, e := range expected {
		want[e.SubjectID] = e
	}

	var problems []string
	prevRank := 0
	for _, got := range actual {
		e, ok := want[got.SubjectID]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: unexpected subject", got.SubjectID))
			continue
		}
		if math.Abs(e.Score-got.Score) > scoreTolerance*math.Max(1, e.Score) {
			problems = append(problems, fmt.Sprintf("%s: score %.2f, want %.2f", got.SubjectID, got.Score, e.Score))
		}
		if got.Rank <= prevRank {
			problems = append(problems, fmt.Sprintf("%s: rank %d not after %d", got.SubjectID, got.Rank, prevRank))
		}
		prevRank = got.Rank
	}
	return problems
}
