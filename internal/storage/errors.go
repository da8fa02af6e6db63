// Package storage defines the sentinel errors shared by all storage
// backends. Handlers and services match these with errors.Is rather than
// inspecting driver-specific error types.
package storage

import "errors"

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists means an insert collided with an existing record.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNoSession means the user has no session document yet.
	ErrNoSession = errors.New("no session found")
)
