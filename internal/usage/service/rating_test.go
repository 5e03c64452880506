package service

import (
	"context"
	"testing"
	"time"

	reservationerrors "makerdesk/internal/reservations/errors"
	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/internal/usage/validator"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
)

const (
	testMakerspaceID  = "space-1"
	testEquipmentID   = "65f0a1b2c3d4e5f604000001"
	testReservationID = "65f0a1b2c3d4e5f604000002"
)

type mockRatingRepository struct {
	insertFunc       func(ctx context.Context, rating *model.Rating) error
	findByIDFunc     func(ctx context.Context, makerspaceID, id string) (*model.Rating, error)
	updateStatusFunc func(ctx context.Context, id, fromStatus, toStatus string) error
}

func (m *mockRatingRepository) Insert(ctx context.Context, rating *model.Rating) error {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, rating)
	}
	rating.ID = "65f0a1b2c3d4e5f604000003"
	return nil
}

func (m *mockRatingRepository) FindByID(ctx context.Context, makerspaceID, id string) (*model.Rating, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, makerspaceID, id)
	}
	return nil, usageerrors.ErrRatingNotFound
}

func (m *mockRatingRepository) FindByEquipment(ctx context.Context, makerspaceID, equipmentID string, limit int, offset int64) ([]*model.Rating, error) {
	return nil, nil
}

func (m *mockRatingRepository) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, fromStatus, toStatus)
	}
	return nil
}

type mockReservationReader struct {
	findFunc func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error)
}

func (m *mockReservationReader) FindByIDScoped(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
	return m.findFunc(ctx, makerspaceID, id)
}

func completedReservation(userID string) *model.Reservation {
	return &model.Reservation{
		ID:           testReservationID,
		EquipmentID:  testEquipmentID,
		UserID:       userID,
		MakerspaceID: testMakerspaceID,
		StartTime:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Status:       model.ReservationCompleted,
	}
}

func newRatingService(repo *mockRatingRepository, reservations *mockReservationReader, now time.Time) *ratingService {
	cfg := newTestConfig()
	return &ratingService{
		repo:         repo,
		reservations: reservations,
		validator:    validator.NewRatingValidator(cfg.Log),
		cfg:          cfg,
		now:          func() time.Time { return now },
	}
}

func member(userID string) model.Actor {
	return model.Actor{
		UserID:       userID,
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleMember,
	}
}

func newRating() *model.Rating {
	return &model.Rating{
		Overall:      4,
		Reliability:  5,
		EaseOfUse:    3,
		Condition:    4,
		TextFeedback: "  solid machine  ",
	}
}

func TestSubmit_Success(t *testing.T) {
	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return completedReservation("user-1"), nil
		},
	}
	svc := newRatingService(&mockRatingRepository{}, reservations, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))

	rating := newRating()
	if err := svc.Submit(context.Background(), member("user-1"), testReservationID, rating); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if rating.Status != model.RatingPending {
		t.Errorf("expected pending status, got %s", rating.Status)
	}
	if rating.EquipmentID != testEquipmentID {
		t.Errorf("expected equipment id from the reservation, got %s", rating.EquipmentID)
	}
	if rating.UserID != "user-1" || rating.MakerspaceID != testMakerspaceID {
		t.Errorf("expected owner fields from the actor, got user=%s space=%s", rating.UserID, rating.MakerspaceID)
	}
	if rating.TextFeedback != "solid machine" {
		t.Errorf("expected sanitized feedback, got %q", rating.TextFeedback)
	}
}

func TestSubmit_NotReservationHolder(t *testing.T) {
	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return completedReservation("user-1"), nil
		},
	}
	svc := newRatingService(&mockRatingRepository{}, reservations, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))

	err := svc.Submit(context.Background(), member("user-2"), testReservationID, newRating())
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED for a stranger, got %v", err)
	}
}

func TestSubmit_ReservationNotCompleted(t *testing.T) {
	reservation := completedReservation("user-1")
	reservation.Status = model.ReservationApproved

	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return reservation, nil
		},
	}

	// Mid-interval the reservation reads active, not completed.
	svc := newRatingService(&mockRatingRepository{}, reservations, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC))

	err := svc.Submit(context.Background(), member("user-1"), testReservationID, newRating())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT before completion, got %v", err)
	}
}

func TestSubmit_LapsedApprovedReservation(t *testing.T) {
	// Approved and past its end: effectively completed even before the sweep,
	// so the rating is accepted.
	reservation := completedReservation("user-1")
	reservation.Status = model.ReservationApproved

	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return reservation, nil
		},
	}
	svc := newRatingService(&mockRatingRepository{}, reservations, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC))

	if err := svc.Submit(context.Background(), member("user-1"), testReservationID, newRating()); err != nil {
		t.Errorf("expected success for a lapsed reservation, got %v", err)
	}
}

func TestSubmit_Duplicate(t *testing.T) {
	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return completedReservation("user-1"), nil
		},
	}
	repo := &mockRatingRepository{
		insertFunc: func(ctx context.Context, rating *model.Rating) error {
			return usageerrors.ErrDuplicateRating
		},
	}
	svc := newRatingService(repo, reservations, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))

	err := svc.Submit(context.Background(), member("user-1"), testReservationID, newRating())
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT on duplicate submission, got %v", err)
	}
}

func TestSubmit_ReservationNotFound(t *testing.T) {
	reservations := &mockReservationReader{
		findFunc: func(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
			return nil, reservationerrors.ErrNotFound
		},
	}
	svc := newRatingService(&mockRatingRepository{}, reservations, time.Now())

	err := svc.Submit(context.Background(), member("user-1"), testReservationID, newRating())
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestModerate_Approve(t *testing.T) {
	repo := &mockRatingRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Rating, error) {
			return &model.Rating{ID: id, Status: model.RatingPending}, nil
		},
	}
	svc := newRatingService(repo, nil, time.Now())

	staff := model.Actor{
		UserID:       "staff-1",
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleStaff,
	}

	rating, err := svc.Moderate(context.Background(), staff, "65f0a1b2c3d4e5f604000003", true)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rating.Status != model.RatingApproved {
		t.Errorf("expected approved, got %s", rating.Status)
	}
}

func TestModerate_AlreadyResolved(t *testing.T) {
	repo := &mockRatingRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Rating, error) {
			return &model.Rating{ID: id, Status: model.RatingApproved}, nil
		},
	}
	svc := newRatingService(repo, nil, time.Now())

	staff := model.Actor{
		UserID:       "staff-1",
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleStaff,
	}

	_, err := svc.Moderate(context.Background(), staff, "65f0a1b2c3d4e5f604000003", false)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT for a resolved rating, got %v", err)
	}
}

func TestModerate_MemberDenied(t *testing.T) {
	svc := newRatingService(&mockRatingRepository{}, nil, time.Now())

	_, err := svc.Moderate(context.Background(), member("user-1"), "65f0a1b2c3d4e5f604000003", true)
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED, got %v", err)
	}
}
