package model

import "time"

// UsageTotals accumulates per-equipment utilization. Updated only through the
// event consumer, which is idempotent per reservation.
type UsageTotals struct {
	EquipmentID      string    `json:"equipment_id" bson:"_id"`
	MakerspaceID     string    `json:"makerspace_id" bson:"makerspace_id"`
	Category         string    `json:"category" bson:"category"`
	UsageMinutes     int64     `json:"usage_minutes" bson:"usage_minutes"`
	ReservationCount int64     `json:"reservation_count" bson:"reservation_count"`
	CancelledCount   int64     `json:"cancelled_count" bson:"cancelled_count"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

// UsageHours converts accumulated minutes for presentation.
func (u *UsageTotals) UsageHours() float64 {
	return float64(u.UsageMinutes) / 60.0
}

// CancellationRate is cancelled over all terminal reservations.
func (u *UsageTotals) CancellationRate() float64 {
	total := u.ReservationCount + u.CancelledCount
	if total == 0 {
		return 0
	}
	return float64(u.CancelledCount) / float64(total)
}

// UsageSummaryRow is one row of a grouped utilization report.
type UsageSummaryRow struct {
	GroupKey         string  `json:"group_key" bson:"_id"`
	UsageMinutes     int64   `json:"usage_minutes" bson:"usage_minutes"`
	ReservationCount int64   `json:"reservation_count" bson:"reservation_count"`
	CancelledCount   int64   `json:"cancelled_count" bson:"cancelled_count"`
	AvgOverallRating float64 `json:"avg_overall_rating,omitempty" bson:"avg_overall_rating,omitempty"`
}
