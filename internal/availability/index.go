package availability

import (
	"context"
	"fmt"
	"time"

	"makerdesk/internal/availability/repository"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/model"
)

// Index is the availability calendar of all equipment. Writers must wrap
// EnsureFree + Insert in one repository transaction while holding the
// equipment's lock; EnsureFree re-reads the committed state, so the check and
// the insert are indivisible per equipment item.
type Index struct {
	repo            repository.BlockRepository
	locker          *Locker
	maxOverlapFetch int
}

func NewIndex(repo repository.BlockRepository, locker *Locker, maxOverlapFetch int) *Index {
	return &Index{
		repo:            repo,
		locker:          locker,
		maxOverlapFetch: maxOverlapFetch,
	}
}

func (i *Index) Repo() repository.BlockRepository {
	return i.repo
}

// WithEquipmentLock runs fn inside the equipment's critical section.
func (i *Index) WithEquipmentLock(equipmentID string, fn func() error) error {
	i.locker.Lock(equipmentID)
	defer i.locker.Unlock(equipmentID)
	return fn()
}

// QueryOverlap returns every committed block overlapping the interval.
func (i *Index) QueryOverlap(ctx context.Context, equipmentID string, interval model.Interval) ([]*model.AvailabilityBlock, error) {
	if !interval.IsValid() {
		return nil, apperrors.InvalidInterval("interval end must be after start")
	}
	return i.repo.FindOverlapping(ctx, equipmentID, interval, i.maxOverlapFetch)
}

// EnsureFree fails with SlotConflict when any committed block overlaps the
// interval. Call it inside the transaction that performs the insert.
func (i *Index) EnsureFree(ctx context.Context, equipmentID string, interval model.Interval) error {
	blocks, err := i.repo.FindOverlapping(ctx, equipmentID, interval, i.maxOverlapFetch)
	if err != nil {
		return apperrors.Internal("Failed to check existing availability blocks", err)
	}
	if len(blocks) > 0 {
		b := blocks[0]
		return apperrors.SlotConflict(fmt.Sprintf(
			"requested interval overlaps a committed %s block (%s - %s)",
			b.Kind,
			b.StartTime.Format(time.RFC3339),
			b.EndTime.Format(time.RFC3339),
		))
	}
	return nil
}

// Insert commits a block. Overlap must already have been ruled out by
// EnsureFree inside the same transaction and equipment lock.
func (i *Index) Insert(ctx context.Context, block *model.AvailabilityBlock) error {
	if err := i.repo.Insert(ctx, block); err != nil {
		return apperrors.Internal("Failed to insert availability block", err)
	}
	return nil
}

// Remove drops the block owned by the given reservation or maintenance log.
func (i *Index) Remove(ctx context.Context, kind, refID string) error {
	return i.repo.RemoveByRef(ctx, kind, refID)
}

// Calendar returns the committed blocks of one equipment item inside the
// window, sorted by start time. Used to render availability to users.
func (i *Index) Calendar(ctx context.Context, equipmentID string, start, end time.Time) ([]*model.AvailabilityBlock, error) {
	if !end.After(start) {
		return nil, apperrors.InvalidInterval("calendar window end must be after start")
	}
	blocks, err := i.repo.FindInRange(ctx, equipmentID, start, end)
	if err != nil {
		return nil, apperrors.Internal("Failed to load availability calendar", err)
	}
	return blocks, nil
}
