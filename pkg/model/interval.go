package model

import "time"

// Interval is a half-open time range [Start, End). Two intervals overlap when
// start1 < end2 && start2 < end1; ranges that only share a boundary instant do
// not overlap, so back-to-back slots are legal.
type Interval struct {
	Start time.Time `json:"start" bson:"start_time" validate:"required"`
	End   time.Time `json:"end" bson:"end_time" validate:"required"`
}

func (i Interval) IsValid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Minutes returns the interval length in whole minutes, for usage totals.
func (i Interval) Minutes() int64 {
	return int64(i.Duration() / time.Minute)
}
