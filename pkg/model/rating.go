package model

import "time"

const (
	RatingPending  = "pending"
	RatingApproved = "approved"
	RatingRejected = "rejected"
)

// Rating is submitted once per (reservation, user) after the reservation
// completes. Once moderation approves it, it is immutable.
type Rating struct {
	ID            string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ReservationID string    `json:"reservation_id" bson:"reservation_id" validate:"required,mongodb"`
	EquipmentID   string    `json:"equipment_id" bson:"equipment_id" validate:"required,mongodb"`
	MakerspaceID  string    `json:"makerspace_id" bson:"makerspace_id" validate:"required"`
	UserID        string    `json:"user_id" bson:"user_id" validate:"required"`
	Overall       int       `json:"overall" bson:"overall" validate:"required,min=1,max=5"`
	Reliability   int       `json:"reliability" bson:"reliability" validate:"required,min=1,max=5"`
	EaseOfUse     int       `json:"ease_of_use" bson:"ease_of_use" validate:"required,min=1,max=5"`
	Condition     int       `json:"condition" bson:"condition" validate:"required,min=1,max=5"`
	TextFeedback  string    `json:"text_feedback,omitempty" bson:"text_feedback" validate:"omitempty,max=2000"`
	Status        string    `json:"status" bson:"status" validate:"required,oneof=pending approved rejected"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}
