// Package directory defines the membership directory the rank engine
// mutates, with an in-memory implementation and a rate-limited wrapper.
package directory

import (
	"context"
	"time"
)

// Client is the membership directory.
type Client interface {
	// RoleHolders lists subjects currently holding roleID. ErrNotFound when
	// the role does not exist.
	RoleHolders(ctx context.Context, roleID string) ([]string, error)
	AddRole(ctx context.Context, subjectID, roleID string) error
	RemoveRole(ctx context.Context, subjectID, roleID string) error
	ApplyTimedRestriction(ctx context.Context, subjectID string, d time.Duration, reason string) error
}

// Eligibility is implemented by directories that know which subjects are
// service accounts.
type Eligibility interface {
	IsServiceAccount(ctx context.Context, subjectID string) (bool, error)
}

// Joiner is implemented by directories that register members on first sight.
type Joiner interface {
	Join(subjectID string)
}
