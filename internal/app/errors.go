package service

import "errors"

// Sentinel error kinds returned by the service.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidEvent = errors.New("invalid event")
	ErrBackpressure = errors.New("event queue full")
)
