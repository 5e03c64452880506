package errors

import "errors"

var (
	ErrNotFound  = errors.New("reservation not found")
	ErrInvalidID = errors.New("invalid reservation ID format")
	// ErrStaleStatus reports a conditional status update that matched no
	// document, meaning the reservation left the expected state concurrently.
	ErrStaleStatus = errors.New("reservation status changed concurrently")
)
