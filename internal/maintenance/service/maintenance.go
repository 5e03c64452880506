package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"makerdesk/internal/availability"
	"makerdesk/internal/events"
	equipmenterrors "makerdesk/internal/equipment/errors"
	equipmentrepo "makerdesk/internal/equipment/repository"
	maintenanceerrors "makerdesk/internal/maintenance/errors"
	"makerdesk/internal/maintenance/repository"
	"makerdesk/internal/maintenance/validator"
	reservationerrors "makerdesk/internal/reservations/errors"
	reservationrepo "makerdesk/internal/reservations/repository"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
	"makerdesk/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
)

// CompletionInput carries the optional closing details of a maintenance
// window.
type CompletionInput struct {
	CostCents int64    `json:"cost_cents"`
	PartsUsed []string `json:"parts_used"`
	Notes     string   `json:"notes"`
}

type MaintenanceService interface {
	Schedule(ctx context.Context, actor model.Actor, log *model.MaintenanceLog, force bool) error
	Complete(ctx context.Context, actor model.Actor, id string, input CompletionInput) (*model.MaintenanceLog, error)
	GetByEquipment(ctx context.Context, actor model.Actor, equipmentID string, limit int, offset int64) ([]*model.MaintenanceLog, error)
}

type maintenanceService struct {
	repo            repository.MaintenanceRepository
	reservationRepo reservationrepo.ReservationRepository
	equipmentRepo   equipmentrepo.EquipmentRepository
	index           *availability.Index
	validator       *validator.MaintenanceValidator
	publisher       events.Publisher
	cfg             *config.Config
	now             func() time.Time
}

func NewMaintenanceService(
	repo repository.MaintenanceRepository,
	reservationRepo reservationrepo.ReservationRepository,
	equipmentRepo equipmentrepo.EquipmentRepository,
	index *availability.Index,
	validator *validator.MaintenanceValidator,
	publisher events.Publisher,
	cfg *config.Config,
) MaintenanceService {
	return &maintenanceService{
		repo:            repo,
		reservationRepo: reservationRepo,
		equipmentRepo:   equipmentRepo,
		index:           index,
		validator:       validator,
		publisher:       publisher,
		cfg:             cfg,
		now:             time.Now,
	}
}

// Schedule books a maintenance window. Without force, any overlap with
// committed blocks fails with a conflict and nothing changes. With force,
// overlapping reservations are cancelled and their blocks released inside the
// same transaction that commits the window, so no interleaved request can
// slip into the gap.
func (s *maintenanceService) Schedule(ctx context.Context, actor model.Actor, log *model.MaintenanceLog, force bool) error {
	if !actor.Can(permission.ActionScheduleMaintenance) {
		return apperrors.NotPermitted("scheduling maintenance requires the staff role")
	}

	interval := log.Interval()
	if err := s.validator.ValidateInterval(interval); err != nil {
		return err
	}

	if _, err := s.findEquipment(ctx, actor, log.EquipmentID); err != nil {
		return err
	}

	log.MakerspaceID = actor.MakerspaceID
	log.PerformedBy = actor.UserID
	log.Status = model.MaintenanceScheduled
	log.Reason = sanitizer.TrimAndNormalize(log.Reason)
	log.Notes = sanitizer.NormalizeNotes(log.Notes)
	for i, part := range log.PartsUsed {
		log.PartsUsed[i] = sanitizer.TrimAndNormalize(part)
	}

	if err := s.validator.Validate(log); err != nil {
		s.cfg.Log.Warn("Maintenance log validation failed", "error", err)
		return apperrors.Validation("Maintenance log validation failed", map[string]any{"error": err.Error()})
	}

	var cancelled []*model.Reservation
	err := s.index.WithEquipmentLock(log.EquipmentID, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			cancelled = nil

			// The overlap query is page-limited, so a forced cascade over a
			// long window must drain page by page until the window reads
			// free. Every returned block is removed before the next query,
			// so the loop strictly shrinks the overlap set.
			for {
				overlapping, err := s.index.QueryOverlap(txCtx, log.EquipmentID, interval)
				if err != nil {
					return apperrors.Internal("Failed to query overlapping blocks", err)
				}
				if len(overlapping) == 0 {
					break
				}

				if !force {
					first := overlapping[0]
					return apperrors.Conflict(fmt.Sprintf(
						"window overlaps %d committed block(s), first: %s from %s to %s",
						len(overlapping), first.Kind,
						first.StartTime.Format(time.RFC3339), first.EndTime.Format(time.RFC3339),
					))
				}

				for _, block := range overlapping {
					// Maintenance never displaces maintenance, forced or not.
					if block.Kind == model.BlockMaintenance {
						return apperrors.Conflict(fmt.Sprintf(
							"window overlaps an existing maintenance block from %s to %s",
							block.StartTime.Format(time.RFC3339), block.EndTime.Format(time.RFC3339),
						))
					}

					reservation, err := s.cancelForMaintenance(txCtx, actor, block.RefID)
					if err != nil {
						return err
					}
					if reservation != nil {
						cancelled = append(cancelled, reservation)
					}

					if err := s.index.Remove(txCtx, model.BlockReservation, block.RefID); err != nil {
						return apperrors.Internal("Failed to release displaced block", err)
					}
				}
			}

			if err := s.repo.Create(txCtx, log); err != nil {
				return apperrors.Internal("Failed to create maintenance log", err)
			}

			block := &model.AvailabilityBlock{
				EquipmentID: log.EquipmentID,
				Kind:        model.BlockMaintenance,
				RefID:       log.ID,
				StartTime:   log.StartTime,
				EndTime:     log.EndTime,
			}
			if err := s.index.Insert(txCtx, block); err != nil {
				return apperrors.Internal("Failed to commit maintenance block", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	for _, reservation := range cancelled {
		s.publishCancelled(ctx, reservation)
	}

	s.cfg.Log.Info("Maintenance scheduled",
		"id", log.ID,
		"equipment_id", log.EquipmentID,
		"force", force,
		"displaced_reservations", len(cancelled),
	)
	return nil
}

// Complete closes a scheduled window. Completing early releases the block so
// the equipment reads available again; the log keeps the actual end time.
func (s *maintenanceService) Complete(ctx context.Context, actor model.Actor, id string, input CompletionInput) (*model.MaintenanceLog, error) {
	if !actor.Can(permission.ActionScheduleMaintenance) {
		return nil, apperrors.NotPermitted("completing maintenance requires the staff role")
	}

	log, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if log.Status == model.MaintenanceCompleted {
		return nil, apperrors.Conflict("maintenance is already completed")
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	endTime := log.EndTime
	if now.Before(endTime) {
		endTime = now
	}

	notes := sanitizer.NormalizeNotes(input.Notes)
	parts := make([]string, 0, len(input.PartsUsed))
	for _, part := range input.PartsUsed {
		if p := sanitizer.TrimAndNormalize(part); p != "" {
			parts = append(parts, p)
		}
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Complete(txCtx, id, endTime, input.CostCents, parts, notes); err != nil {
			if errors.Is(err, maintenanceerrors.ErrNotFound) {
				return apperrors.Conflict("maintenance is already completed")
			}
			return apperrors.Internal("Failed to complete maintenance", err)
		}

		if err := s.index.Remove(txCtx, model.BlockMaintenance, id); err != nil {
			return apperrors.Internal("Failed to release maintenance block", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Status = model.MaintenanceCompleted
	log.EndTime = endTime
	if input.CostCents > 0 {
		log.CostCents = input.CostCents
	}
	if len(parts) > 0 {
		log.PartsUsed = parts
	}
	if notes != "" {
		log.Notes = notes
	}

	s.cfg.Log.Info("Maintenance completed", "id", id, "equipment_id", log.EquipmentID)
	return log, nil
}

func (s *maintenanceService) GetByEquipment(ctx context.Context, actor model.Actor, equipmentID string, limit int, offset int64) ([]*model.MaintenanceLog, error) {
	if _, err := s.findEquipment(ctx, actor, equipmentID); err != nil {
		return nil, err
	}

	logs, err := s.repo.FindByEquipment(ctx, actor.MakerspaceID, equipmentID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list maintenance logs", "equipment_id", equipmentID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve maintenance logs", err)
	}
	return logs, nil
}

// --- Helpers ---

func (s *maintenanceService) cancelForMaintenance(ctx context.Context, actor model.Actor, reservationID string) (*model.Reservation, error) {
	reservation, err := s.reservationRepo.FindByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, reservationerrors.ErrNotFound) {
			// Orphaned block; releasing it is enough.
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to load displaced reservation", err)
	}

	cancelledAt := s.now().UTC().Truncate(time.Millisecond)
	err = s.reservationRepo.UpdateStatus(ctx, reservationID, reservationrepo.StatusUpdate{
		FromStatuses: []string{model.ReservationRequested, model.ReservationApproved},
		ToStatus:     model.ReservationCancelled,
		Set: bson.M{
			"cancel_reason": model.CancelledForMaintenance,
			"cancelled_by":  actor.UserID,
			"cancelled_at":  cancelledAt,
		},
	})
	if err != nil {
		if errors.Is(err, reservationerrors.ErrStaleStatus) {
			// Already terminal; nothing to displace.
			return nil, nil
		}
		return nil, apperrors.Internal("Failed to cancel displaced reservation", err)
	}

	reservation.Status = model.ReservationCancelled
	reservation.CancelReason = model.CancelledForMaintenance
	reservation.CancelledBy = actor.UserID
	reservation.CancelledAt = &cancelledAt
	return reservation, nil
}

func (s *maintenanceService) publishCancelled(ctx context.Context, reservation *model.Reservation) {
	category := ""
	if equipment, err := s.equipmentRepo.FindByID(ctx, reservation.MakerspaceID, reservation.EquipmentID); err == nil {
		category = equipment.Category
	}

	event := model.ReservationEvent{
		Type:          model.EventReservationCancelled,
		ReservationID: reservation.ID,
		EquipmentID:   reservation.EquipmentID,
		MakerspaceID:  reservation.MakerspaceID,
		UserID:        reservation.UserID,
		Category:      category,
		StartTime:     reservation.StartTime,
		EndTime:       reservation.EndTime,
		Reason:        model.CancelledForMaintenance,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.publisher.PublishReservationEvent(ctx, event); err != nil {
		s.cfg.Log.Error("Failed to publish displacement event",
			"reservation_id", reservation.ID,
			"error", err,
		)
	}
}

func (s *maintenanceService) findScoped(ctx context.Context, actor model.Actor, id string) (*model.MaintenanceLog, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Maintenance log ID cannot be empty")
	}

	log, err := s.repo.FindByID(ctx, actor.MakerspaceID, id)
	if err != nil {
		if errors.Is(err, maintenanceerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Maintenance log", id)
		}
		if errors.Is(err, maintenanceerrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid maintenance log ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve maintenance log", err)
	}

	return log, nil
}

func (s *maintenanceService) findEquipment(ctx context.Context, actor model.Actor, equipmentID string) (*model.Equipment, error) {
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
