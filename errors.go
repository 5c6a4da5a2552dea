package main

import "errors"

// Error kinds returned by the store. Callers match them with errors.Is;
// the store itself never logs or retries.
var (
	// ErrValidation means the input violates a structural constraint.
	// Nothing has been written when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrNotFound means a referenced calendar, event or exception id does
	// not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means an insert hit the (event_id, original_date)
	// uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage error")
)
