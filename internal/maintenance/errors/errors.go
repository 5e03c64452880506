package errors

import "errors"

var (
	ErrNotFound  = errors.New("maintenance log not found")
	ErrInvalidID = errors.New("invalid maintenance log ID format")
)
