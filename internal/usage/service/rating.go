package service

import (
	"context"
	"errors"
	"time"

	reservationerrors "makerdesk/internal/reservations/errors"
	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/internal/usage/repository"
	"makerdesk/internal/usage/validator"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
	"makerdesk/pkg/sanitizer"
)

// ReservationReader is the read-only slice of the reservations repository the
// rating gate needs.
type ReservationReader interface {
	FindByIDScoped(ctx context.Context, makerspaceID, id string) (*model.Reservation, error)
}

type RatingService interface {
	Submit(ctx context.Context, actor model.Actor, reservationID string, rating *model.Rating) error
	Moderate(ctx context.Context, actor model.Actor, id string, approve bool) (*model.Rating, error)
	GetByEquipment(ctx context.Context, actor model.Actor, equipmentID string, limit int, offset int64) ([]*model.Rating, error)
}

type ratingService struct {
	repo         repository.RatingRepository
	reservations ReservationReader
	validator    *validator.RatingValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewRatingService(
	repo repository.RatingRepository,
	reservations ReservationReader,
	validator *validator.RatingValidator,
	cfg *config.Config,
) RatingService {
	return &ratingService{
		repo:         repo,
		reservations: reservations,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

// Submit accepts one rating per reservation and user, only from the member
// who held the reservation and only once its effective status is completed.
func (s *ratingService) Submit(ctx context.Context, actor model.Actor, reservationID string, rating *model.Rating) error {
	if !actor.Can(permission.ActionSubmitRating) {
		return apperrors.NotPermitted("submitting ratings requires the member role")
	}

	reservation, err := s.reservations.FindByIDScoped(ctx, actor.MakerspaceID, reservationID)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Reservation", reservationID)
		}
		if errors.Is(err, reservationerrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid reservation ID format")
		}
		return apperrors.Internal("Failed to retrieve reservation", err)
	}

	if reservation.UserID != actor.UserID {
		return apperrors.NotPermitted("only the reservation holder can rate it")
	}

	if status := reservation.EffectiveStatusAt(s.now()); status != model.ReservationCompleted {
		return apperrors.Conflict("reservation is " + status + ", ratings are accepted after completion")
	}

	rating.ReservationID = reservationID
	rating.EquipmentID = reservation.EquipmentID
	rating.MakerspaceID = actor.MakerspaceID
	rating.UserID = actor.UserID
	rating.Status = model.RatingPending
	rating.TextFeedback = sanitizer.NormalizeNotes(rating.TextFeedback)

	if err := s.validator.Validate(rating); err != nil {
		s.cfg.Log.Warn("Rating validation failed", "error", err)
		return apperrors.Validation("Rating validation failed", map[string]any{"error": err.Error()})
	}

	if err := s.repo.Insert(ctx, rating); err != nil {
		if errors.Is(err, usageerrors.ErrDuplicateRating) {
			return apperrors.Conflict("a rating for this reservation was already submitted")
		}
		s.cfg.Log.Error("Failed to insert rating", "reservation_id", reservationID, "error", err)
		return apperrors.Internal("Failed to submit rating", err)
	}

	s.cfg.Log.Info("Rating submitted",
		"id", rating.ID,
		"reservation_id", reservationID,
		"equipment_id", rating.EquipmentID,
	)
	return nil
}

// Moderate resolves a pending rating. Approved ratings are immutable, so only
// the pending state accepts a decision.
func (s *ratingService) Moderate(ctx context.Context, actor model.Actor, id string, approve bool) (*model.Rating, error) {
	if !actor.Can(permission.ActionModerateRating) {
		return nil, apperrors.NotPermitted("moderating ratings requires the staff role")
	}

	rating, err := s.repo.FindByID(ctx, actor.MakerspaceID, id)
	if err != nil {
		if errors.Is(err, usageerrors.ErrRatingNotFound) {
			return nil, apperrors.NotFoundWithID("Rating", id)
		}
		if errors.Is(err, usageerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid rating ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve rating", err)
	}

	if rating.Status != model.RatingPending {
		return nil, apperrors.Conflict("rating is already " + rating.Status)
	}

	toStatus := model.RatingRejected
	if approve {
		toStatus = model.RatingApproved
	}

	if err := s.repo.UpdateStatus(ctx, id, model.RatingPending, toStatus); err != nil {
		if errors.Is(err, usageerrors.ErrRatingNotFound) {
			return nil, apperrors.Conflict("rating status changed concurrently")
		}
		s.cfg.Log.Error("Failed to moderate rating", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to moderate rating", err)
	}

	rating.Status = toStatus
	s.cfg.Log.Info("Rating moderated", "id", id, "status", toStatus, "moderated_by", actor.UserID)
	return rating, nil
}

func (s *ratingService) GetByEquipment(ctx context.Context, actor model.Actor, equipmentID string, limit int, offset int64) ([]*model.Rating, error) {
	if equipmentID == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	ratings, err := s.repo.FindByEquipment(ctx, actor.MakerspaceID, equipmentID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list ratings", "equipment_id", equipmentID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve ratings", err)
	}
	return ratings, nil
}
