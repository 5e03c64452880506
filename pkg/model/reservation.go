package model

import "time"

// Stored reservation statuses. The active state is never stored: it is a
// view over (status, interval, now), see EffectiveStatus.
const (
	ReservationRequested = "requested"
	ReservationApproved  = "approved"
	ReservationActive    = "active"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
)

// Cancellation reasons recorded on the archived reservation.
const (
	CancelledBySelf         = "cancelled_by_user"
	CancelledByAdmin        = "cancelled_by_admin"
	CancelledForMaintenance = "equipment_under_maintenance"
)

type Reservation struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EquipmentID  string    `json:"equipment_id" bson:"equipment_id" validate:"required,mongodb"`
	UserID       string    `json:"user_id" bson:"user_id" validate:"required"`
	MakerspaceID string    `json:"makerspace_id" bson:"makerspace_id" validate:"required"`
	ProjectID    string    `json:"project_id,omitempty" bson:"project_id,omitempty" validate:"omitempty,max=100"`
	StartTime    time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Status       string    `json:"status" bson:"status" validate:"required,oneof=requested approved completed cancelled"`
	CostCents    int64     `json:"cost_cents" bson:"cost_cents" validate:"min=0"`

	CancelReason string     `json:"cancel_reason,omitempty" bson:"cancel_reason,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// ReservationFilter narrows tenant-scoped reservation listings. From and To
// select reservations overlapping the half-open window [From, To).
type ReservationFilter struct {
	EquipmentID string
	UserID      string
	Status      string
	From        *time.Time
	To          *time.Time
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}

// EffectiveStatus derives the time-driven view of a reservation. An approved
// reservation whose interval has started reads as active; an approved or
// active one whose interval has ended reads as completed. Correctness never
// depends on a background job observing these moments.
func EffectiveStatus(status string, interval Interval, now time.Time) string {
	if status != ReservationApproved && status != ReservationActive {
		return status
	}
	if !now.Before(interval.End) {
		return ReservationCompleted
	}
	if interval.Contains(now) {
		return ReservationActive
	}
	return ReservationApproved
}

// EffectiveStatusAt applies EffectiveStatus to the reservation itself.
func (r *Reservation) EffectiveStatusAt(now time.Time) string {
	return EffectiveStatus(r.Status, r.Interval(), now)
}
