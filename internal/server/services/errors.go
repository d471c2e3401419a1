package services

import "errors"

// Error classes surfaced by the services. Callers match with errors.Is; the
// API layer maps each to a status code.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalid      = errors.New("invalid or expired")
	ErrUnauthorized = errors.New("unauthorized")
	ErrDependency   = errors.New("dependency failure")
)
