package model

import "time"

// Equipment status values. Status is never stored: it is derived at read time
// from maintenance blocks, reservation states and the Offline flag, so there
// is exactly one source of truth.
const (
	EquipmentAvailable        = "available"
	EquipmentInUse            = "in_use"
	EquipmentUnderMaintenance = "under_maintenance"
	EquipmentOffline          = "offline"
)

type Equipment struct {
	ID                     string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	MakerspaceID           string    `json:"makerspace_id" bson:"makerspace_id" validate:"required"`
	Name                   string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Category               string    `json:"category" bson:"category" validate:"required,min=2,max=50"`
	Location               string    `json:"location,omitempty" bson:"location" validate:"omitempty,max=100"`
	RequiredCertifications []string  `json:"required_certifications,omitempty" bson:"required_certifications" validate:"omitempty,max=10,dive,min=2,max=50"`
	HourlyRateCents        int64     `json:"hourly_rate_cents" bson:"hourly_rate_cents" validate:"min=0"`
	DepositCents           int64     `json:"deposit_cents" bson:"deposit_cents" validate:"min=0"`
	Offline                bool      `json:"offline" bson:"offline"`
	CreatedAt              time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`

	// Status is the derived view, populated on reads only.
	Status string `json:"status,omitempty" bson:"-"`
}

type EquipmentUpdate struct {
	Name                   string    `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Category               string    `json:"category,omitempty" validate:"omitempty,min=2,max=50"`
	Location               *string   `json:"location,omitempty" validate:"omitempty,max=100"`
	RequiredCertifications *[]string `json:"required_certifications,omitempty" validate:"omitempty,max=10,dive,min=2,max=50"`
	HourlyRateCents        *int64    `json:"hourly_rate_cents,omitempty" validate:"omitempty,min=0"`
	DepositCents           *int64    `json:"deposit_cents,omitempty" validate:"omitempty,min=0"`
	Offline                *bool     `json:"offline,omitempty"`
}

// EquipmentFilter narrows tenant-scoped equipment listings.
type EquipmentFilter struct {
	Category      string
	Location      string
	Certification string
	Status        string
}
