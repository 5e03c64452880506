// Package sweep runs the lapsed-reservation archiver. It periodically
// finalizes approved reservations whose interval has ended, turning the
// derived completed view into stored state and emitting completion events.
package sweep

import (
	"context"
	"time"

	"makerdesk/internal/reservations/service"
	"makerdesk/pkg/config"
)

type Sweeper struct {
	service  service.ReservationService
	interval time.Duration
	cfg      *config.Config
}

func NewSweeper(service service.ReservationService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: cfg.SweepInterval,
		cfg:      cfg,
	}
}

// Run blocks until ctx is cancelled. One failed pass never stops the loop.
func (s *Sweeper) Run(ctx context.Context) {
	s.cfg.Log.Info("Reservation sweep started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Reservation sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.service.SweepLapsed(ctx); err != nil {
				s.cfg.Log.Error("Reservation sweep pass failed", "error", err)
			}
		}
	}
}
