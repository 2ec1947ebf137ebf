package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound            = errors.New("contribution not found")
	ErrNotOwner            = errors.New("contribution belongs to another subject")
	ErrAlreadyRemoved      = errors.New("contribution already removed")
	ErrDuplicate           = errors.New("duplicate contribution id")
	ErrInvalidContribution = errors.New("invalid contribution")
	ErrInvalidLimit        = errors.New("invalid leaderboard limit")
	ErrClosed              = errors.New("store closed")
)
