package service

import (
	"context"
	"errors"

	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/internal/usage/repository"
	"makerdesk/pkg/config"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
)

// EquipmentUsage is the per-equipment utilization view.
type EquipmentUsage struct {
	EquipmentID      string  `json:"equipment_id"`
	UsageMinutes     int64   `json:"usage_minutes"`
	UsageHours       float64 `json:"usage_hours"`
	ReservationCount int64   `json:"reservation_count"`
	CancelledCount   int64   `json:"cancelled_count"`
	CancellationRate float64 `json:"cancellation_rate"`
}

type UsageService interface {
	GetEquipmentUsage(ctx context.Context, actor model.Actor, equipmentID string) (*EquipmentUsage, error)
	Summary(ctx context.Context, actor model.Actor, groupBy string) ([]*model.UsageSummaryRow, error)
}

type usageService struct {
	repo repository.UsageRepository
	cfg  *config.Config
}

func NewUsageService(repo repository.UsageRepository, cfg *config.Config) UsageService {
	return &usageService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *usageService) GetEquipmentUsage(ctx context.Context, actor model.Actor, equipmentID string) (*EquipmentUsage, error) {
	if !actor.Can(permission.ActionViewUsage) {
		return nil, apperrors.NotPermitted("viewing usage requires the member role")
	}
	if equipmentID == "" {
		return nil, apperrors.InvalidInput("Equipment ID cannot be empty")
	}

	totals, err := s.repo.GetTotals(ctx, actor.MakerspaceID, equipmentID)
	if err != nil {
		if errors.Is(err, usageerrors.ErrNotFound) {
			// Equipment with no terminal reservations yet reads as zero.
			return &EquipmentUsage{EquipmentID: equipmentID}, nil
		}
		s.cfg.Log.Error("Failed to retrieve usage totals", "equipment_id", equipmentID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve usage totals", err)
	}

	return &EquipmentUsage{
		EquipmentID:      totals.EquipmentID,
		UsageMinutes:     totals.UsageMinutes,
		UsageHours:       totals.UsageHours(),
		ReservationCount: totals.ReservationCount,
		CancelledCount:   totals.CancelledCount,
		CancellationRate: totals.CancellationRate(),
	}, nil
}

func (s *usageService) Summary(ctx context.Context, actor model.Actor, groupBy string) ([]*model.UsageSummaryRow, error) {
	if !actor.Can(permission.ActionViewUsage) {
		return nil, apperrors.NotPermitted("viewing usage requires the member role")
	}

	switch groupBy {
	case "", "category":
		groupBy = "category"
	case "equipment":
	default:
		return nil, apperrors.InvalidInput("group_by must be category or equipment")
	}

	rows, err := s.repo.Summarize(ctx, actor.MakerspaceID, groupBy)
	if err != nil {
		s.cfg.Log.Error("Failed to summarize usage", "group_by", groupBy, "error", err)
		return nil, apperrors.Internal("Failed to summarize usage", err)
	}
	return rows, nil
}
