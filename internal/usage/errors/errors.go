package errors

import "errors"

var (
	ErrNotFound       = errors.New("usage totals not found")
	ErrRatingNotFound = errors.New("rating not found")
	ErrInvalidID      = errors.New("invalid ID format")
	// ErrAlreadyProcessed reports an event whose idempotency marker already
	// exists; the update it carries was applied by an earlier delivery.
	ErrAlreadyProcessed = errors.New("event already processed")
	// ErrDuplicateRating reports a second rating for the same reservation by
	// the same user.
	ErrDuplicateRating = errors.New("rating already submitted")
)
