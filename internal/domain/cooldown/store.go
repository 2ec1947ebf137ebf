// Package cooldown tracks the last successful action per directed
// (actor, target) pair. Staleness is computed on read against a TTL.
package cooldown

import (
	"hash/fnv"
	"sync"
	"time"
)

const defaultShards = 32

// Key identifies a directed pair. Key{A, B} and Key{B, A} are distinct.
type Key struct {
	Actor  string
	Target string
}

type shard struct {
	mu      sync.RWMutex
	entries map[Key]time.Time
}

// Store is safe for concurrent use. Keys hash onto independently locked
// shards so writes to different pairs rarely contend.
type Store struct {
	shards []*shard
}

// Option configures a Store.
type Option func(*Store)

// WithShards sets the shard count.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = make([]*shard, n)
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{shards: make([]*shard, defaultShards)}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[Key]time.Time)}
	}
	return s
}

func (s *Store) shardFor(k Key) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.Actor))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Target))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Store) last(k Key) (time.Time, bool) {
	sh := s.shardFor(k)
	sh.mu.RLock()
	t, ok := sh.entries[k]
	sh.mu.RUnlock()
	return t, ok
}

// IsOnCooldown reports whether k succeeded less than ttl before now.
func (s *Store) IsOnCooldown(k Key, now time.Time, ttl time.Duration) bool {
	return s.Remaining(k, now, ttl) > 0
}

// Remaining is the time left on k's cooldown, or zero when it is stale or absent.
func (s *Store) Remaining(k Key, now time.Time, ttl time.Duration) time.Duration {
	t, ok := s.last(k)
	if !ok {
		return 0
	}
	if left := ttl - now.Sub(t); left > 0 {
		return left
	}
	return 0
}

// RecordSuccess stores now as k's last success. An older timestamp never
// replaces a newer one.
func (s *Store) RecordSuccess(k Key, now time.Time) {
	sh := s.shardFor(k)
	sh.mu.Lock()
	if prev, ok := sh.entries[k]; !ok || now.After(prev) {
		sh.entries[k] = now
	}
	sh.mu.Unlock()
}

// Prune drops entries already stale at now and returns how many were removed.
func (s *Store) Prune(now time.Time, ttl time.Duration) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, t := range sh.entries {
			if now.Sub(t) >= ttl {
				delete(sh.entries, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked pairs, stale or not.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}
