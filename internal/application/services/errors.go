package services

import "errors"

var (
	// ErrSyncCancelled resolves a queued sync whose state was cleared first.
	ErrSyncCancelled = errors.New("sync cancelled: wizard state cleared")
	// ErrInvalidInput is a step input that fails validation.
	ErrInvalidInput = errors.New("invalid step input")
	// ErrNotFound is a session resource that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotConfigured is returned by optional integrations left unconfigured.
	ErrNotConfigured = errors.New("integration not configured")
)
