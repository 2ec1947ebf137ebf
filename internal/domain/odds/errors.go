package odds

import "errors"

var (
	ErrNoAnchors     = errors.New("odds: at least one anchor is required")
	ErrInvalidAnchor = errors.New("odds: anchor distances must be positive and unique")
)
