package domain

import "errors"

var (
	// ErrInvalidClaim marks record-construction failures: malformed claims
	// that must never reach the decision engine.
	ErrInvalidClaim = errors.New("invalid claim")

	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput marks malformed arguments to a component boundary.
	ErrInvalidInput = errors.New("invalid input")
)
