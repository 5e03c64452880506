package model

import "time"

// AvailabilityBlock kinds.
const (
	BlockReservation = "reservation"
	BlockMaintenance = "maintenance"
)

// AvailabilityBlock is a committed interval on one equipment item. Blocks
// never exist on their own: RefID points at the owning reservation or
// maintenance log. The no-overlap invariant holds across both kinds.
type AvailabilityBlock struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EquipmentID string    `json:"equipment_id" bson:"equipment_id" validate:"required,mongodb"`
	Kind        string    `json:"kind" bson:"kind" validate:"required,oneof=reservation maintenance"`
	RefID       string    `json:"ref_id" bson:"ref_id" validate:"required"`
	StartTime   time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (b *AvailabilityBlock) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}
