package util

import "errors"

// Sentinel errors shared across packages
var (
	// ErrNotFound indicates a required row or remote resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnauthorized indicates missing or rejected catalog credentials
	ErrUnauthorized = errors.New("unauthorized")
)
