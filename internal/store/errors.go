package store

import "errors"

var (
	// ErrConflict is returned when a write would break a uniqueness rule, such as a
	// second active appointment for the same provider slot.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrIdempotencyConflict is returned when an idempotency key is replayed with
	// different appointment fields.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
