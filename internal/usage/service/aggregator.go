package service

import (
	"context"
	"errors"

	usageerrors "makerdesk/internal/usage/errors"
	"makerdesk/internal/usage/repository"
	"makerdesk/pkg/config"
	"makerdesk/pkg/model"
)

type AggregatorService interface {
	HandleReservationEvent(ctx context.Context, event *model.ReservationEvent) error
}

type aggregatorService struct {
	repo repository.UsageRepository
	cfg  *config.Config
}

func NewAggregatorService(repo repository.UsageRepository, cfg *config.Config) AggregatorService {
	return &aggregatorService{
		repo: repo,
		cfg:  cfg,
	}
}

// HandleReservationEvent applies one reservation lifecycle event to the usage
// totals. The processed-events marker, keyed on reservation_id + type, commits
// in the same transaction as the totals update: a redelivered event is a
// no-op, and a failed update leaves the marker unclaimed so the redelivery
// still applies.
func (s *aggregatorService) HandleReservationEvent(ctx context.Context, event *model.ReservationEvent) error {
	if event.ReservationID == "" || event.EquipmentID == "" {
		s.cfg.Log.Warn("Dropping malformed reservation event",
			"reservation_id", event.ReservationID,
			"equipment_id", event.EquipmentID,
			"type", event.Type,
		)
		return nil
	}

	var apply func(ctx context.Context, event *model.ReservationEvent) error
	switch event.Type {
	case model.EventReservationCompleted:
		apply = s.repo.ApplyCompleted
	case model.EventReservationCancelled:
		apply = s.repo.ApplyCancelled
	default:
		s.cfg.Log.Warn("Dropping event of unknown type", "type", event.Type, "key", event.Key())
		return nil
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.MarkProcessed(txCtx, event.Key()); err != nil {
			return err
		}
		return apply(txCtx, event)
	})
	if err != nil {
		if errors.Is(err, usageerrors.ErrAlreadyProcessed) {
			s.cfg.Log.Info("Skipping already processed event", "key", event.Key())
			return nil
		}
		s.cfg.Log.Error("Failed to apply reservation event",
			"key", event.Key(),
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("Reservation event applied",
		"key", event.Key(),
		"equipment_id", event.EquipmentID,
	)
	return nil
}
