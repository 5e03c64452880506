package model

import "time"

const (
	MaintenanceScheduled = "scheduled"
	MaintenanceCompleted = "completed"
)

type MaintenanceLog struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	EquipmentID  string    `json:"equipment_id" bson:"equipment_id" validate:"required,mongodb"`
	MakerspaceID string    `json:"makerspace_id" bson:"makerspace_id" validate:"required"`
	StartTime    time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime      time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	Reason       string    `json:"reason" bson:"reason" validate:"required,min=2,max=200"`
	PerformedBy  string    `json:"performed_by" bson:"performed_by" validate:"required"`
	Status       string    `json:"status" bson:"status" validate:"required,oneof=scheduled completed"`
	CostCents    int64     `json:"cost_cents" bson:"cost_cents" validate:"min=0"`
	PartsUsed    []string  `json:"parts_used,omitempty" bson:"parts_used" validate:"omitempty,max=50,dive,min=1,max=100"`
	Notes        string    `json:"notes,omitempty" bson:"notes" validate:"omitempty,max=2000"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

func (m *MaintenanceLog) Interval() Interval {
	return Interval{Start: m.StartTime, End: m.EndTime}
}
