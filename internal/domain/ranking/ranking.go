// Package ranking turns an ordered leaderboard into rank slots.
package ranking

import (
	"errors"

	"github.com/okian/podium/internal/domain/model"
)

// Unranked is the rank reported for subjects outside the slot count.
const Unranked = 0

// ErrInvalidSlots is returned when the slot count is not positive.
var ErrInvalidSlots = errors.New("rank slot count must be positive")

// Assignment maps rank slots (1 = best) to subject ids.
// It is immutable once resolved.
type Assignment struct {
	holders   []string // holders[slot-1]
	bySubject map[string]int
	slots     int
}

// Resolve assigns the first n subjects of an already sorted leaderboard to
// slots 1..n. A subject id seen twice keeps its first (better) slot.
func Resolve(subjects []model.ScoredSubject, n int) (*Assignment, error) {
	if n <= 0 {
		return nil, ErrInvalidSlots
	}
	a := &Assignment{
		holders:   make([]string, 0, min(n, len(subjects))),
		bySubject: make(map[string]int, min(n, len(subjects))),
		slots:     n,
	}
	for _, s := range subjects {
		if len(a.holders) == n {
			break
		}
		if _, dup := a.bySubject[s.SubjectID]; dup || s.SubjectID == "" {
			continue
		}
		a.holders = append(a.holders, s.SubjectID)
		a.bySubject[s.SubjectID] = len(a.holders)
	}
	return a, nil
}

// RankOf returns the subject's slot, or false when it holds none.
func (a *Assignment) RankOf(subjectID string) (int, bool) {
	if a == nil {
		return Unranked, false
	}
	r, ok := a.bySubject[subjectID]
	return r, ok
}

// Rank is RankOf without the flag; Unranked for subjects without a slot.
func (a *Assignment) Rank(subjectID string) int {
	r, _ := a.RankOf(subjectID)
	return r
}

// Holder returns the subject assigned to slot.
func (a *Assignment) Holder(slot int) (string, bool) {
	if a == nil || slot < 1 || slot > len(a.holders) {
		return "", false
	}
	return a.holders[slot-1], true
}

// Len is the number of filled slots, min(len(subjects), n).
func (a *Assignment) Len() int {
	if a == nil {
		return 0
	}
	return len(a.holders)
}

// Slots is the configured slot count n.
func (a *Assignment) Slots() int {
	if a == nil {
		return 0
	}
	return a.slots
}

// Holders returns a copy of the filled slots in rank order.
func (a *Assignment) Holders() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.holders))
	copy(out, a.holders)
	return out
}
