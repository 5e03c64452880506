package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"makerdesk/internal/availability"
	"makerdesk/internal/events"
	equipmenterrors "makerdesk/internal/equipment/errors"
	equipmentrepo "makerdesk/internal/equipment/repository"
	reservationerrors "makerdesk/internal/reservations/errors"
	"makerdesk/internal/reservations/repository"
	"makerdesk/internal/reservations/validator"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
	"makerdesk/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
)

type ReservationService interface {
	Request(ctx context.Context, actor model.Actor, reservation *model.Reservation) error
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	GetAll(ctx context.Context, actor model.Actor, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, int64, error)
	Approve(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	Cancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
	SweepLapsed(ctx context.Context) (int, error)
}

type reservationService struct {
	repo          repository.ReservationRepository
	equipmentRepo equipmentrepo.EquipmentRepository
	index         *availability.Index
	validator     *validator.ReservationValidator
	publisher     events.Publisher
	cfg           *config.Config
	now           func() time.Time
}

func NewReservationService(
	repo repository.ReservationRepository,
	equipmentRepo equipmentrepo.EquipmentRepository,
	index *availability.Index,
	validator *validator.ReservationValidator,
	publisher events.Publisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:          repo,
		equipmentRepo: equipmentRepo,
		index:         index,
		validator:     validator,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
	}
}

// Request creates a reservation and commits its availability block in one
// transaction. Checks run in a fixed order so a request failing several rules
// always reports the same one: interval validity, equipment existence,
// certification, then slot conflict.
func (s *reservationService) Request(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
	if !actor.Can(permission.ActionReserve) {
		return apperrors.NotPermitted("requesting reservations requires the member role")
	}

	interval := reservation.Interval()
	if err := s.validator.ValidateInterval(interval); err != nil {
		return err
	}

	equipment, err := s.findEquipment(ctx, actor, reservation.EquipmentID)
	if err != nil {
		return err
	}

	if missing := actor.MissingCertifications(equipment.RequiredCertifications); len(missing) > 0 {
		return apperrors.CertificationRequired(missing)
	}

	reservation.UserID = actor.UserID
	reservation.MakerspaceID = actor.MakerspaceID
	reservation.ProjectID = sanitizer.TrimAndNormalize(reservation.ProjectID)
	reservation.CostCents = EstimateCostCents(equipment, interval)
	reservation.Status = model.ReservationRequested
	if s.cfg.AutoApproves(equipment.Category) {
		reservation.Status = model.ReservationApproved
	}

	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	// The per-equipment lock serializes the check-then-insert window; the
	// transaction makes the pair atomic against the database.
	err = s.index.WithEquipmentLock(reservation.EquipmentID, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if err := s.index.EnsureFree(txCtx, reservation.EquipmentID, interval); err != nil {
				return err
			}

			if err := s.repo.Create(txCtx, reservation); err != nil {
				return apperrors.Internal("Failed to create reservation", err)
			}

			block := &model.AvailabilityBlock{
				EquipmentID: reservation.EquipmentID,
				Kind:        model.BlockReservation,
				RefID:       reservation.ID,
				StartTime:   reservation.StartTime,
				EndTime:     reservation.EndTime,
			}
			if err := s.index.Insert(txCtx, block); err != nil {
				return apperrors.Internal("Failed to commit availability block", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Reservation created",
		"id", reservation.ID,
		"equipment_id", reservation.EquipmentID,
		"user_id", reservation.UserID,
		"status", reservation.Status,
		"cost_cents", reservation.CostCents,
	)
	return nil
}

func (s *reservationService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	reservation, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	reservation.Status = reservation.EffectiveStatusAt(s.now())
	return reservation, nil
}

func (s *reservationService) GetAll(ctx context.Context, actor model.Actor, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, int64, error) {
	// Members see their own reservations only; staff and admins see the
	// whole makerspace.
	if actor.Role == permission.RoleMember {
		filter.UserID = actor.UserID
	}

	var count int64
	var items []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, actor.MakerspaceID, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		items, errFind = s.repo.FindAll(ctx, actor.MakerspaceID, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	now := s.now()
	for _, reservation := range items {
		reservation.Status = reservation.EffectiveStatusAt(now)
	}

	return items, count, nil
}

func (s *reservationService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	if !actor.Can(permission.ActionApproveReservation) {
		return nil, apperrors.NotPermitted("approving reservations requires the admin role")
	}

	reservation, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if status := reservation.EffectiveStatusAt(s.now()); status != model.ReservationRequested {
		return nil, apperrors.Conflict("reservation is " + status + ", only requested reservations can be approved")
	}

	err = s.repo.UpdateStatus(ctx, id, repository.StatusUpdate{
		FromStatuses: []string{model.ReservationRequested},
		ToStatus:     model.ReservationApproved,
	})
	if err != nil {
		if errors.Is(err, reservationerrors.ErrStaleStatus) {
			return nil, apperrors.Conflict("reservation status changed concurrently")
		}
		s.cfg.Log.Error("Failed to approve reservation", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to approve reservation", err)
	}

	reservation.Status = model.ReservationApproved
	s.cfg.Log.Info("Reservation approved", "id", id, "approved_by", actor.UserID)
	return reservation, nil
}

// Cancel archives the reservation and releases its availability block in one
// transaction. Allowed while the effective status is requested, approved or
// active; a lapsed reservation is completed and can no longer be cancelled.
func (s *reservationService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	reservation, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	reason := model.CancelledByAdmin
	if reservation.UserID == actor.UserID {
		if !actor.Can(permission.ActionCancelOwnReservation) {
			return nil, apperrors.NotPermitted("cancelling reservations requires the member role")
		}
		reason = model.CancelledBySelf
	} else if !actor.Can(permission.ActionCancelAnyReservation) {
		return nil, apperrors.NotPermitted("cancelling another member's reservation requires the staff role")
	}

	now := s.now()
	switch reservation.EffectiveStatusAt(now) {
	case model.ReservationRequested, model.ReservationApproved, model.ReservationActive:
	default:
		return nil, apperrors.Conflict("reservation is already " + reservation.EffectiveStatusAt(now))
	}

	cancelledAt := now.UTC().Truncate(time.Millisecond)
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		err := s.repo.UpdateStatus(txCtx, id, repository.StatusUpdate{
			FromStatuses: []string{model.ReservationRequested, model.ReservationApproved},
			ToStatus:     model.ReservationCancelled,
			Set: bson.M{
				"cancel_reason": reason,
				"cancelled_by":  actor.UserID,
				"cancelled_at":  cancelledAt,
			},
		})
		if err != nil {
			if errors.Is(err, reservationerrors.ErrStaleStatus) {
				return apperrors.Conflict("reservation status changed concurrently")
			}
			return apperrors.Internal("Failed to cancel reservation", err)
		}

		if err := s.index.Remove(txCtx, model.BlockReservation, id); err != nil {
			return apperrors.Internal("Failed to release availability block", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	reservation.Status = model.ReservationCancelled
	reservation.CancelReason = reason
	reservation.CancelledBy = actor.UserID
	reservation.CancelledAt = &cancelledAt

	s.publishTerminal(ctx, reservation, model.EventReservationCancelled, reason)

	s.cfg.Log.Info("Reservation cancelled",
		"id", id,
		"cancelled_by", actor.UserID,
		"reason", reason,
	)
	return reservation, nil
}

// SweepLapsed archives approved reservations whose interval has ended and
// publishes their completion events. Correctness never depends on the sweep;
// reads derive the completed view on their own.
func (s *reservationService) SweepLapsed(ctx context.Context) (int, error) {
	lapsed, err := s.repo.FindLapsed(ctx, s.now(), s.cfg.MaxOverlapFetch)
	if err != nil {
		s.cfg.Log.Error("Failed to query lapsed reservations", "error", err)
		return 0, apperrors.Internal("Failed to query lapsed reservations", err)
	}

	swept := 0
	for _, reservation := range lapsed {
		completedAt := reservation.EndTime
		if err := s.repo.MarkCompleted(ctx, reservation.ID, completedAt); err != nil {
			if errors.Is(err, reservationerrors.ErrStaleStatus) {
				continue
			}
			s.cfg.Log.Error("Failed to complete lapsed reservation", "id", reservation.ID, "error", err)
			continue
		}

		reservation.Status = model.ReservationCompleted
		reservation.CompletedAt = &completedAt
		s.publishTerminal(ctx, reservation, model.EventReservationCompleted, "")
		swept++
	}

	if swept > 0 {
		s.cfg.Log.Info("Lapsed reservations swept", "count", swept)
	}
	return swept, nil
}

// --- Helpers ---

// EstimateCostCents computes hourly rate times duration plus deposit, rounded
// half up to the cent.
func EstimateCostCents(equipment *model.Equipment, interval model.Interval) int64 {
	minutes := interval.Minutes()
	usage := (equipment.HourlyRateCents*minutes + 30) / 60
	return usage + equipment.DepositCents
}

func (s *reservationService) findScoped(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByIDScoped(ctx, actor.MakerspaceID, id)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) findEquipment(ctx context.Context, actor model.Actor, equipmentID string) (*model.Equipment, error) {
	if equipmentID == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	equipment, err := s.equipmentRepo.FindByID(ctx, actor.MakerspaceID, equipmentID)
	if err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Equipment", equipmentID)
		}
		if errors.Is(err, equipmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid equipment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve equipment", err)
	}

	return equipment, nil
}

// publishTerminal emits the lifecycle event after the state change committed.
// A publish failure is logged; the producer retries through its DLQ.
func (s *reservationService) publishTerminal(ctx context.Context, reservation *model.Reservation, eventType, reason string) {
	category := ""
	if equipment, err := s.equipmentRepo.FindByID(ctx, reservation.MakerspaceID, reservation.EquipmentID); err == nil {
		category = equipment.Category
	}

	event := model.ReservationEvent{
		Type:          eventType,
		ReservationID: reservation.ID,
		EquipmentID:   reservation.EquipmentID,
		MakerspaceID:  reservation.MakerspaceID,
		UserID:        reservation.UserID,
		Category:      category,
		StartTime:     reservation.StartTime,
		EndTime:       reservation.EndTime,
		Reason:        reason,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishReservationEvent(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"reservation_id", reservation.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
