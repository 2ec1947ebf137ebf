// Package roles computes the minimal set of rank-role mutations that moves
// the directory from its current holders to a desired rank assignment.
package roles

import (
	"sort"

	"github.com/okian/podium/internal/domain/ranking"
)

// Holders maps a subject to the set of rank-role ids it currently holds.
type Holders map[string]map[string]struct{}

// Add records that subjectID holds roleID.
func (h Holders) Add(subjectID, roleID string) {
	set, ok := h[subjectID]
	if !ok {
		set = make(map[string]struct{})
		h[subjectID] = set
	}
	set[roleID] = struct{}{}
}

// Change is the set of role mutations for one subject. Remove is applied
// before Add.
type Change struct {
	SubjectID string
	Add       []string
	Remove    []string
}

// Empty reports whether the change mutates nothing.
func (c Change) Empty() bool {
	return len(c.Add) == 0 && len(c.Remove) == 0
}

// Diff compares desired against current. roleIDs[i] is the role for slot
// i+1; an empty id leaves that slot unassigned. current is not modified.
func Diff(desired *ranking.Assignment, roleIDs []string, current Holders) []Change {
	pending := make(map[string]struct{}, len(current))
	for id := range current {
		pending[id] = struct{}{}
	}

	var changes []Change
	for slot := 1; slot <= desired.Len(); slot++ {
		subjectID, _ := desired.Holder(slot)
		if slot > len(roleIDs) || roleIDs[slot-1] == "" {
			continue
		}
		want := roleIDs[slot-1]
		held := current[subjectID]

		c := Change{SubjectID: subjectID}
		if _, ok := held[want]; !ok {
			c.Add = []string{want}
		}
		for r := range held {
			if r != want {
				c.Remove = append(c.Remove, r)
			}
		}
		sort.Strings(c.Remove)
		delete(pending, subjectID)

		if !c.Empty() {
			changes = append(changes, c)
		}
	}

	leftovers := make([]string, 0, len(pending))
	for id := range pending {
		if len(current[id]) > 0 {
			leftovers = append(leftovers, id)
		}
	}
	sort.Strings(leftovers)
	for _, id := range leftovers {
		c := Change{SubjectID: id}
		for r := range current[id] {
			c.Remove = append(c.Remove, r)
		}
		sort.Strings(c.Remove)
		changes = append(changes, c)
	}
	return changes
}

// Apply returns the holder state that results from applying changes to
// current. It is what a directory should report after a successful run.
func Apply(current Holders, changes []Change) Holders {
	next := make(Holders, len(current))
	for id, set := range current {
		for r := range set {
			next.Add(id, r)
		}
	}
	for _, c := range changes {
		for _, r := range c.Remove {
			delete(next[c.SubjectID], r)
		}
		for _, r := range c.Add {
			next.Add(c.SubjectID, r)
		}
		if len(next[c.SubjectID]) == 0 {
			delete(next, c.SubjectID)
		}
	}
	return next
}
