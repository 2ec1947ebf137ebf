// Package types contains JSON shapes shared by the service and the HTTP API.
package types

// Entry represents a leaderboard entry.
type Entry struct {
	Rank      int     `json:"rank"`
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
	// RoleID is the rank role held for this slot, empty beyond the slot count.
	RoleID string `json:"role_id,omitempty"`
}

// SubjectSummary describes one subject's standing in the rolling window.
type SubjectSummary struct {
	SubjectID     string         `json:"subject_id"`
	Total         float64        `json:"total"`
	Rank          int            `json:"rank,omitempty"`
	Contributions []Contribution `json:"contributions"`
}

// Contribution is the API view of a contribution.
type Contribution struct {
	ID        string  `json:"id"`
	SubjectID string  `json:"subject_id"`
	Amount    float64 `json:"amount"`
	ProofURL  string  `json:"proof_url,omitempty"`
	CreatedAt string  `json:"created_at"`
	Removed   bool    `json:"removed,omitempty"`
}

// RestrictionEntry is one row of the restriction leaderboard.
type RestrictionEntry struct {
	Rank            int    `json:"rank"`
	SubjectID       string `json:"subject_id"`
	Count           int    `json:"count"`
	TotalDurationMS int64  `json:"total_duration_ms"`
}
