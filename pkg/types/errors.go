package types

import "errors"

// Error classes shared by services. Service sentinels wrap one of these so handlers can map them
// to response codes with errors.Is.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUpstream marks a failure of a required external service (gateway, storage).
	ErrUpstream = errors.New("upstream service failure")
)
