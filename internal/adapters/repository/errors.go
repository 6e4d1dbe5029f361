package repository

import "errors"

// Sentinel kinds for profile store errors.
var (
	ErrEmptyIdentity = errors.New("empty identity")
	ErrClosed        = errors.New("profile store closed")
)
