package model

import "time"

// Reservation lifecycle event types carried on the events topic. The usage
// aggregator consumes both; forced-maintenance cancellations double as the
// notification feed for the external notifier.
const (
	EventReservationCompleted = "reservation.completed"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is the payload published when a reservation reaches a
// terminal state. Delivery is at-least-once; consumers must be idempotent per
// ReservationID + Type.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	EquipmentID   string    `json:"equipment_id"`
	MakerspaceID  string    `json:"makerspace_id"`
	UserID        string    `json:"user_id"`
	Category      string    `json:"category"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Minutes is the reserved duration in whole minutes.
func (e *ReservationEvent) Minutes() int64 {
	return Interval{Start: e.StartTime, End: e.EndTime}.Minutes()
}

// Key returns the idempotency key for the event: one application per
// reservation and terminal state, however many times it is delivered.
func (e *ReservationEvent) Key() string {
	return e.ReservationID + ":" + e.Type
}
