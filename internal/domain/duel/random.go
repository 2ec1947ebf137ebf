package duel

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
	"time"
)

// Source draws uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

// lockedSource guards a PCG generator so one Source can serve concurrent duels.
type lockedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSource returns a concurrency-safe source seeded from crypto/rand.
func NewSource() Source {
	s1, s2 := newSeed(), newSeed()
	return &lockedSource{rng: rand.New(rand.NewPCG(s1, s2))}
}

// NewSeededSource returns a deterministic concurrency-safe source.
func NewSeededSource(seed1, seed2 uint64) Source {
	return &lockedSource{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

func (s *lockedSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func newSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}
