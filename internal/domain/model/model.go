// Package model contains domain models passed between layers.
package model

import "time"

// ScoredSubject is one leaderboard row: a subject and its rolling total.
// Sources return rows sorted by score desc, then earliest contribution.
type ScoredSubject struct {
	SubjectID           string
	Score               float64
	FirstContributionAt time.Time
}

// Contribution is a scored event submitted for a subject.
type Contribution struct {
	ID        string    // unique id for idempotency
	ScopeID   string    // leaderboard scope, e.g. a community id
	SubjectID string    // subject credited with the amount
	Amount    float64   // strictly positive
	ProofURL  string    // optional evidence link
	CreatedAt time.Time // event timestamp
	Removed   bool      // soft-deleted
}

// DuelEvent records a restriction applied by a resolved duel.
type DuelEvent struct {
	VictimID  string
	ScopeID   string
	Duration  time.Duration
	ActorID   string
	Backfire  bool
	CreatedAt time.Time
}

// RestrictionTotal aggregates restrictions received by one subject.
type RestrictionTotal struct {
	SubjectID     string
	Count         int
	TotalDuration time.Duration
}

// StoreStats summarizes the contents of a leaderboard store.
type StoreStats struct {
	ActiveContributions  int
	WindowContributions  int
	RemovedContributions int
	Subjects             int
	WindowTotal          float64
	DuelEvents           int
}
