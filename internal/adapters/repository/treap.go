package repository

import (
	"math"
	"math/rand/v2"
	"time"
)

// Treap-based leaderboard index.
//
// Ordering: total DESC, then first contribution ASC, then subject id ASC.
// "before" means ranks earlier, so in-order traversal produces the
// leaderboard from best to worst. Node sizes make rank lookups O(log n).

// amountScale controls fixed-point scaling from float64 (micro units).
const amountScale = 1_000_000

type amountFP int64

func toFixedPoint(x float64) amountFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * amountScale
	if scaled >= float64(math.MaxInt64) {
		return amountFP(math.MaxInt64)
	}
	if scaled <= float64(math.MinInt64) {
		return amountFP(math.MinInt64)
	}
	return amountFP(math.Round(scaled))
}

func toFloat(x amountFP) float64 {
	return float64(x) / amountScale
}

type rankKey struct {
	total amountFP
	first int64 // unix nanos of the earliest active contribution
	id    string
}

func (a rankKey) before(b rankKey) bool {
	if a.total != b.total {
		return a.total > b.total
	}
	if a.first != b.first {
		return a.first < b.first
	}
	return a.id < b.id
}

type node struct {
	key   rankKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k rankKey) *node {
	if n == nil {
		return &node{key: k, prio: rand.Uint64(), size: 1}
	}
	if k.before(n.key) {
		n.left = insert(n.left, k)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k rankKey) *node {
	if n == nil {
		return nil
	}
	if k == n.key {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	} else if k.before(n.key) {
		n.left = deleteNode(n.left, k)
	} else {
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit keys in rank order.
func collectTopN(n *node, limit int, out *[]rankKey) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n.key)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// position returns the 1-based rank of k, which must be present.
func position(n *node, k rankKey) int {
	pos := 0
	for n != nil {
		switch {
		case k == n.key:
			return pos + nsize(n.left) + 1
		case k.before(n.key):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// index is one scope's leaderboard.
type index struct {
	root *node
	keys map[string]rankKey
}

func newIndex() *index {
	return &index{keys: make(map[string]rankKey)}
}

// set places subjectID at total/first, or drops it when total is not positive.
func (ix *index) set(subjectID string, total amountFP, first time.Time) {
	if old, ok := ix.keys[subjectID]; ok {
		ix.root = deleteNode(ix.root, old)
		delete(ix.keys, subjectID)
	}
	if total <= 0 {
		return
	}
	k := rankKey{total: total, first: first.UnixNano(), id: subjectID}
	ix.keys[subjectID] = k
	ix.root = insert(ix.root, k)
}

func (ix *index) top(limit int) []rankKey {
	out := make([]rankKey, 0, min(limit, len(ix.keys)))
	collectTopN(ix.root, limit, &out)
	return out
}

// rank returns subjectID's 1-based position, or 0 when it has no total.
func (ix *index) rank(subjectID string) int {
	k, ok := ix.keys[subjectID]
	if !ok {
		return 0
	}
	return position(ix.root, k)
}

func (ix *index) len() int {
	return len(ix.keys)
}
