package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrQueueFull       = errors.New("contribution queue is full")
	ErrSubjectNotFound = errors.New("subject has no standing")
)
