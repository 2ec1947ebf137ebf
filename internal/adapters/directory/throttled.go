package directory

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttled paces every call to the wrapped client through a token bucket.
type Throttled struct {
	next    Client
	limiter *rate.Limiter
}

// NewThrottled wraps next. A non-positive rps disables throttling.
func NewThrottled(next Client, rps float64, burst int) *Throttled {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// RoleHolders implements Client.
func (t *Throttled) RoleHolders(ctx context.Context, roleID string) ([]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.next.RoleHolders(ctx, roleID)
}

// AddRole implements Client.
func (t *Throttled) AddRole(ctx context.Context, subjectID, roleID string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.AddRole(ctx, subjectID, roleID)
}

// RemoveRole implements Client.
func (t *Throttled) RemoveRole(ctx context.Context, subjectID, roleID string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.RemoveRole(ctx, subjectID, roleID)
}

// ApplyTimedRestriction implements Client.
func (t *Throttled) ApplyTimedRestriction(ctx context.Context, subjectID string, d time.Duration, reason string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.next.ApplyTimedRestriction(ctx, subjectID, d, reason)
}

// IsServiceAccount forwards to the wrapped client when it implements
// Eligibility. It is not throttled.
func (t *Throttled) IsServiceAccount(ctx context.Context, subjectID string) (bool, error) {
	if e, ok := t.next.(Eligibility); ok {
		return e.IsServiceAccount(ctx, subjectID)
	}
	return false, nil
}
