package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found. Rows outside the
	// caller's visibility scope also surface as ErrNotFound, never as a 403.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConcurrentModification is returned when a row changed between read
	// and decision; the client should reload and retry.
	ErrConcurrentModification = errors.New("resource was modified concurrently")

	// ErrExportTooLarge is returned when an export would exceed the row cap
	ErrExportTooLarge = errors.New("export exceeds the row limit, narrow the filters")
)
