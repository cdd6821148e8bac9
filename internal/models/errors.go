package models

import "errors"

// Sentinel errors shared by every engine package. Callers match them with
// errors.Is after unwrapping.
var (
	// ErrNotFound means an entity id did not resolve to a live record.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied means a capability check failed for the actor.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation means the request conflicts with a field-level
	// invariant (duplicate column status/position, self-link, subtask
	// without parent, story points outside the allowed set).
	ErrValidation = errors.New("validation conflict")
)
