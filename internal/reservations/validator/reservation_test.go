package validator

import (
	"strings"
	"testing"
	"time"

	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/model"
)

func newValidator() *ReservationValidator {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewReservationValidator(log)
}

func TestValidateInterval(t *testing.T) {
	validator := newValidator()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		wantError bool
	}{
		{
			name:      "valid interval",
			start:     base,
			end:       base.Add(time.Hour),
			wantError: false,
		},
		{
			name:      "one minute",
			start:     base,
			end:       base.Add(time.Minute),
			wantError: false,
		},
		{
			name:      "zero start",
			end:       base,
			wantError: true,
		},
		{
			name:      "zero end",
			start:     base,
			wantError: true,
		},
		{
			name:      "zero length",
			start:     base,
			end:       base,
			wantError: true,
		},
		{
			name:      "inverted",
			start:     base.Add(time.Hour),
			end:       base,
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateInterval(model.Interval{Start: tt.start, End: tt.end})
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateInterval() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !apperrors.IsCode(err, apperrors.CodeInvalidInterval) {
				t.Errorf("expected INVALID_INTERVAL, got %v", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	validator := newValidator()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	valid := func() *model.Reservation {
		return &model.Reservation{
			EquipmentID:  "507f1f77bcf86cd799439011",
			UserID:       "user-1",
			MakerspaceID: "space-1",
			StartTime:    start,
			EndTime:      start.Add(time.Hour),
			Status:       model.ReservationRequested,
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *model.Reservation)
		wantError string
	}{
		{
			name:   "valid reservation",
			mutate: func(r *model.Reservation) {},
		},
		{
			name:      "malformed equipment id",
			mutate:    func(r *model.Reservation) { r.EquipmentID = "not-an-object-id" },
			wantError: "valid MongoDB ObjectID",
		},
		{
			name:      "missing user",
			mutate:    func(r *model.Reservation) { r.UserID = "" },
			wantError: "UserID is required",
		},
		{
			name:      "end not after start",
			mutate:    func(r *model.Reservation) { r.EndTime = r.StartTime },
			wantError: "EndTime must be after StartTime",
		},
		{
			name:      "unknown status",
			mutate:    func(r *model.Reservation) { r.Status = "pondering" },
			wantError: "Status must be one of",
		},
		{
			name:      "negative cost",
			mutate:    func(r *model.Reservation) { r.CostCents = -1 },
			wantError: "CostCents must be at least 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reservation := valid()
			tt.mutate(reservation)

			err := validator.Validate(reservation)
			if tt.wantError == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantError) {
				t.Errorf("expected error containing %q, got %q", tt.wantError, err.Error())
			}
		})
	}
}
