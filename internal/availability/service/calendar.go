package service

import (
	"context"
	"errors"
	"time"

	"makerdesk/internal/availability"
	equipmenterrors "makerdesk/internal/equipment/errors"
	equipmentrepo "makerdesk/internal/equipment/repository"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
)

// DefaultWindow is the calendar span returned when the caller gives no range.
const DefaultWindow = 7 * 24 * time.Hour

// Calendar is a read-only view over one equipment item's committed blocks.
type Calendar struct {
	EquipmentID string                     `json:"equipment_id"`
	Start       time.Time                  `json:"start"`
	End         time.Time                  `json:"end"`
	Blocks      []*model.AvailabilityBlock `json:"blocks"`
}

type CalendarService interface {
	Calendar(ctx context.Context, actor model.Actor, equipmentID string, start, end *time.Time) (*Calendar, error)
}

type calendarService struct {
	index         *availability.Index
	equipmentRepo equipmentrepo.EquipmentRepository
	cfg           *config.Config
	now           func() time.Time
}

func NewCalendarService(index *availability.Index, equipmentRepo equipmentrepo.EquipmentRepository, cfg *config.Config) CalendarService {
	return &calendarService{
		index:         index,
		equipmentRepo: equipmentRepo,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *calendarService) Calendar(ctx context.Context, actor model.Actor, equipmentID string, start, end *time.Time) (*Calendar, error) {
	if equipmentID == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	if _, err := s.equipmentRepo.FindByID(ctx, actor.MakerspaceID, equipmentID); err != nil {
		if errors.Is(err, equipmenterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Equipment", equipmentID)
		}
		if errors.Is(err, equipmenterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid equipment ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve equipment", err)
	}

	from := s.now()
	if start != nil {
		from = *start
	}
	to := from.Add(DefaultWindow)
	if end != nil {
		to = *end
	}
	if !to.After(from) {
		return nil, apperrors.InvalidInterval("end must be after start")
	}

	blocks, err := s.index.Calendar(ctx, equipmentID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to query availability calendar", "equipment_id", equipmentID, "error", err)
		return nil, apperrors.Internal("Failed to query availability", err)
	}

	return &Calendar{
		EquipmentID: equipmentID,
		Start:       from,
		End:         to,
		Blocks:      blocks,
	}, nil
}
