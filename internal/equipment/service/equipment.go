package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"makerdesk/internal/availability"
	availabilityrepo "makerdesk/internal/availability/repository"
	equipmenterrors "makerdesk/internal/equipment/errors"
	"makerdesk/internal/equipment/repository"
	"makerdesk/internal/equipment/validator"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
	"makerdesk/pkg/sanitizer"
)

// ReservationGetter resolves the reservation owning a block, for the derived
// in_use status. Implemented by the reservations repository.
type ReservationGetter interface {
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
}

type EquipmentService interface {
	Create(ctx context.Context, actor model.Actor, equipment *model.Equipment) error
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Equipment, error)
	GetAll(ctx context.Context, actor model.Actor, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, int64, error)
	Update(ctx context.Context, actor model.Actor, id string, updates *model.EquipmentUpdate) error
	Delete(ctx context.Context, actor model.Actor, id string) error
}

type equipmentService struct {
	repo         repository.EquipmentRepository
	blockRepo    availabilityrepo.BlockRepository
	index        *availability.Index
	reservations ReservationGetter
	validator    *validator.EquipmentValidator
	cfg          *config.Config
	now          func() time.Time
}

func NewEquipmentService(
	repo repository.EquipmentRepository,
	blockRepo availabilityrepo.BlockRepository,
	index *availability.Index,
	reservations ReservationGetter,
	validator *validator.EquipmentValidator,
	cfg *config.Config,
) EquipmentService {
	return &equipmentService{
		repo:         repo,
		blockRepo:    blockRepo,
		index:        index,
		reservations: reservations,
		validator:    validator,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *equipmentService) Create(ctx context.Context, actor model.Actor, equipment *model.Equipment) error {
	if !actor.Can(permission.ActionManageEquipment) {
		return apperrors.NotPermitted("managing equipment requires the admin role")
	}

	equipment.MakerspaceID = actor.MakerspaceID
	s.sanitize(equipment)
	if err := s.validate(equipment); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, equipment); err != nil {
		s.cfg.Log.Error("Failed to create equipment", "error", err)
		return apperrors.Internal("Failed to create equipment", err)
	}

	equipment.Status = model.EquipmentAvailable
	s.cfg.Log.Info("Equipment created successfully",
		"id", equipment.ID,
		"makerspace_id", equipment.MakerspaceID,
		"category", equipment.Category,
	)
	return nil
}

func (s *equipmentService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Equipment, error) {
	equipment, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	status, err := s.deriveStatus(ctx, equipment)
	if err != nil {
		s.cfg.Log.Error("Failed to derive equipment status", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to derive equipment status", err)
	}
	equipment.Status = status

	return equipment, nil
}

func (s *equipmentService) GetAll(ctx context.Context, actor model.Actor, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, int64, error) {
	filter.Category = sanitizer.NormalizeCategory(filter.Category)
	filter.Certification = sanitizer.NormalizeCertification(filter.Certification)

	if filter.Status != "" {
		return s.getAllByStatus(ctx, actor, filter, limit, offset)
	}

	var count int64
	var items []*model.Equipment
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, actor.MakerspaceID, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count equipment", "error", errCount)
			errCount = apperrors.Internal("Failed to count equipment", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		items, errFind = s.repo.FindAll(ctx, actor.MakerspaceID, filter, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list equipment", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve equipment", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	for _, equipment := range items {
		status, err := s.deriveStatus(ctx, equipment)
		if err != nil {
			s.cfg.Log.Error("Failed to derive equipment status", "id", equipment.ID, "error", err)
			return nil, 0, apperrors.Internal("Failed to derive equipment status", err)
		}
		equipment.Status = status
	}

	return items, count, nil
}

// getAllByStatus filters on the derived status, which the database cannot
// evaluate. The tenant's full match set is fetched, derived and filtered, and
// only then paginated, so pages stay full and the count reflects the filter.
func (s *equipmentService) getAllByStatus(ctx context.Context, actor model.Actor, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, int64, error) {
	items, err := s.repo.FindAll(ctx, actor.MakerspaceID, filter, 0, 0)
	if err != nil {
		s.cfg.Log.Error("Failed to list equipment", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve equipment", err)
	}

	filtered := make([]*model.Equipment, 0, len(items))
	for _, equipment := range items {
		status, err := s.deriveStatus(ctx, equipment)
		if err != nil {
			s.cfg.Log.Error("Failed to derive equipment status", "id", equipment.ID, "error", err)
			return nil, 0, apperrors.Internal("Failed to derive equipment status", err)
		}
		equipment.Status = status
		if status == filter.Status {
			filtered = append(filtered, equipment)
		}
	}

	count := int64(len(filtered))
	if offset >= count {
		return []*model.Equipment{}, count, nil
	}
	filtered = filtered[offset:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	return filtered, count, nil
}

func (s *equipmentService) Update(ctx context.Context, actor model.Actor, id string, updates *model.EquipmentUpdate) error {
	if !actor.Can(permission.ActionManageEquipment) {
		return apperrors.NotPermitted("managing equipment requires the admin role")
	}

	existing, err := s.findScoped(ctx, actor, id)
	if err != nil {
		return err
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Equipment update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	merged := s.mergeUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return err
	}

	if _, err := s.repo.Update(ctx, actor.MakerspaceID, id, merged); err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Equipment", id)
		}
		s.cfg.Log.Error("Failed to update equipment", "id", id, "error", err)
		return apperrors.Internal("Failed to update equipment", err)
	}

	s.cfg.Log.Info("Equipment updated successfully", "id", id)
	return nil
}

// Delete refuses to remove equipment that still has committed future blocks;
// reservations must be cancelled and maintenance completed first.
func (s *equipmentService) Delete(ctx context.Context, actor model.Actor, id string) error {
	if !actor.Can(permission.ActionManageEquipment) {
		return apperrors.NotPermitted("managing equipment requires the admin role")
	}

	if _, err := s.findScoped(ctx, actor, id); err != nil {
		return err
	}

	// The future-block check and the delete share the per-equipment critical
	// section with Request and Schedule, so no block can commit in between.
	err := s.index.WithEquipmentLock(id, func() error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			hasFuture, err := s.blockRepo.HasBlocksAfter(txCtx, id, s.now())
			if err != nil {
				return apperrors.Internal("Failed to check future availability blocks", err)
			}
			if hasFuture {
				return apperrors.Conflict("equipment has future reservations or maintenance scheduled")
			}

			if err := s.repo.Delete(txCtx, actor.MakerspaceID, id); err != nil {
				if errors.Is(err, equipmenterrors.ErrNotFound) {
					return apperrors.NotFoundWithID("Equipment", id)
				}
				return apperrors.Internal("Failed to delete equipment", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.cfg.Log.Info("Equipment deleted successfully", "id", id)
	return nil
}

// --- Helpers ---

// findScoped resolves equipment within the actor's makerspace. Cross-tenant
// ids surface as NotFound so callers cannot probe other tenants' inventory.
func (s *equipmentService) findScoped(ctx context.Context, actor model.Actor, id string) (*model.Equipment, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	equipment, err := s.repo.FindByID(ctx, actor.MakerspaceID, id)
	if err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Equipment", id)
		}
		if errors.Is(err, equipmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid equipment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve equipment", err)
	}

	return equipment, nil
}

// deriveStatus computes the status view from the calendar: an active
// maintenance block forces under_maintenance, the offline flag comes next,
// then a covering reservation block whose reservation is effectively active
// reads as in_use.
func (s *equipmentService) deriveStatus(ctx context.Context, equipment *model.Equipment) (string, error) {
	now := s.now()

	covering, err := s.blockRepo.FindCovering(ctx, equipment.ID, now)
	if err != nil {
		return "", err
	}

	for _, block := range covering {
		if block.Kind == model.BlockMaintenance {
			return model.EquipmentUnderMaintenance, nil
		}
	}

	if equipment.Offline {
		return model.EquipmentOffline, nil
	}

	for _, block := range covering {
		if block.Kind != model.BlockReservation {
			continue
		}
		reservation, err := s.reservations.FindByID(ctx, block.RefID)
		if err != nil {
			return "", err
		}
		if reservation.EffectiveStatusAt(now) == model.ReservationActive {
			return model.EquipmentInUse, nil
		}
	}

	return model.EquipmentAvailable, nil
}

func (s *equipmentService) sanitize(equipment *model.Equipment) {
	equipment.Name = sanitizer.NormalizeName(equipment.Name)
	equipment.Category = sanitizer.NormalizeCategory(equipment.Category)
	equipment.Location = sanitizer.NormalizeLocation(equipment.Location)
	for i, cert := range equipment.RequiredCertifications {
		equipment.RequiredCertifications[i] = sanitizer.NormalizeCertification(cert)
	}
}

func (s *equipmentService) mergeUpdates(existing *model.Equipment, updates *model.EquipmentUpdate) *model.Equipment {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Category != "" {
		merged.Category = updates.Category
	}
	if updates.Location != nil {
		merged.Location = *updates.Location
	}
	if updates.RequiredCertifications != nil {
		merged.RequiredCertifications = *updates.RequiredCertifications
	}
	if updates.HourlyRateCents != nil {
		merged.HourlyRateCents = *updates.HourlyRateCents
	}
	if updates.DepositCents != nil {
		merged.DepositCents = *updates.DepositCents
	}
	if updates.Offline != nil {
		merged.Offline = *updates.Offline
	}

	return &merged
}

func (s *equipmentService) validate(equipment *model.Equipment) error {
	if err := s.validator.Validate(equipment); err != nil {
		s.cfg.Log.Warn("Equipment validation failed", "error", err)
		return apperrors.Validation("Equipment validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}
