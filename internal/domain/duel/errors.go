package duel

import "errors"

// Validation and application failures. Validation errors leave no state behind.
var (
	ErrSelfTarget        = errors.New("duel: actor cannot target itself")
	ErrIneligibleTarget  = errors.New("duel: target is not eligible")
	ErrRestrictionFailed = errors.New("duel: applying restriction failed")
	ErrInvalidSettings   = errors.New("duel: invalid settings")
)
