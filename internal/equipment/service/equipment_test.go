package service

import (
	"context"
	"testing"
	"time"

	"makerdesk/internal/availability"
	equipmenterrors "makerdesk/internal/equipment/errors"
	"makerdesk/internal/equipment/validator"
	"makerdesk/pkg/config"
	mongotx "makerdesk/pkg/db/mongo"
	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	testMakerspaceID = "space-1"
	testEquipmentID  = "65f0a1b2c3d4e5f602000001"
)

func newTestConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return &config.Config{Log: log}
}

type mockEquipmentRepository struct {
	createFunc   func(ctx context.Context, equipment *model.Equipment) error
	findByIDFunc func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error)
	findAllFunc  func(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error)
	deleteFunc   func(ctx context.Context, makerspaceID, id string) error
}

func (m *mockEquipmentRepository) Create(ctx context.Context, equipment *model.Equipment) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, equipment)
	}
	equipment.ID = testEquipmentID
	return nil
}

func (m *mockEquipmentRepository) FindByID(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, makerspaceID, id)
	}
	return nil, equipmenterrors.ErrNotFound
}

func (m *mockEquipmentRepository) FindAll(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, makerspaceID, filter, limit, offset)
	}
	return nil, nil
}

func (m *mockEquipmentRepository) Count(ctx context.Context, makerspaceID string, filter model.EquipmentFilter) (int64, error) {
	return 0, nil
}

func (m *mockEquipmentRepository) Update(ctx context.Context, makerspaceID, id string, equipment *model.Equipment) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockEquipmentRepository) Delete(ctx context.Context, makerspaceID, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, makerspaceID, id)
	}
	return nil
}

func (m *mockEquipmentRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockBlockRepository struct {
	findCoveringFunc   func(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error)
	hasBlocksAfterFunc func(ctx context.Context, equipmentID string, after time.Time) (bool, error)
}

func (m *mockBlockRepository) Insert(ctx context.Context, block *model.AvailabilityBlock) error {
	return nil
}

func (m *mockBlockRepository) RemoveByRef(ctx context.Context, kind, refID string) error {
	return nil
}

func (m *mockBlockRepository) FindOverlapping(ctx context.Context, equipmentID string, interval model.Interval, limit int) ([]*model.AvailabilityBlock, error) {
	return nil, nil
}

func (m *mockBlockRepository) FindInRange(ctx context.Context, equipmentID string, start, end time.Time) ([]*model.AvailabilityBlock, error) {
	return nil, nil
}

func (m *mockBlockRepository) FindCovering(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error) {
	if m.findCoveringFunc != nil {
		return m.findCoveringFunc(ctx, equipmentID, at)
	}
	return nil, nil
}

func (m *mockBlockRepository) HasBlocksAfter(ctx context.Context, equipmentID string, after time.Time) (bool, error) {
	if m.hasBlocksAfterFunc != nil {
		return m.hasBlocksAfterFunc(ctx, equipmentID, after)
	}
	return false, nil
}

func (m *mockBlockRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockReservationGetter struct {
	findByIDFunc func(ctx context.Context, id string) (*model.Reservation, error)
}

func (m *mockReservationGetter) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	return m.findByIDFunc(ctx, id)
}

func newService(repo *mockEquipmentRepository, blocks *mockBlockRepository, reservations *mockReservationGetter, now time.Time) *equipmentService {
	cfg := newTestConfig()
	if blocks == nil {
		blocks = &mockBlockRepository{}
	}
	return &equipmentService{
		repo:         repo,
		blockRepo:    blocks,
		index:        availability.NewIndex(blocks, availability.NewLocker(), 50),
		reservations: reservations,
		validator:    validator.NewEquipmentValidator(cfg.Log),
		cfg:          cfg,
		now:          func() time.Time { return now },
	}
}

func adminActor() model.Actor {
	return model.Actor{
		UserID:       "admin-1",
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleAdmin,
	}
}

func memberActor() model.Actor {
	return model.Actor{
		UserID:       "user-1",
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleMember,
	}
}

func TestCreate_SanitizesInput(t *testing.T) {
	svc := newService(&mockEquipmentRepository{}, nil, nil, time.Now())

	equipment := &model.Equipment{
		Name:                   "  Laser   Cutter  ",
		Category:               " LASER ",
		Location:               "Workshop  A",
		RequiredCertifications: []string{"Cert Laser"},
		HourlyRateCents:        1000,
	}

	if err := svc.Create(context.Background(), adminActor(), equipment); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if equipment.Name != "Laser Cutter" {
		t.Errorf("expected normalized name, got %q", equipment.Name)
	}
	if equipment.Category != "laser" {
		t.Errorf("expected lowercased category, got %q", equipment.Category)
	}
	if equipment.Location != "Workshop A" {
		t.Errorf("expected normalized location, got %q", equipment.Location)
	}
	if equipment.RequiredCertifications[0] != "cert-laser" {
		t.Errorf("expected canonical certification, got %q", equipment.RequiredCertifications[0])
	}
	if equipment.MakerspaceID != testMakerspaceID {
		t.Errorf("expected makerspace from the actor, got %q", equipment.MakerspaceID)
	}
	if equipment.Status != model.EquipmentAvailable {
		t.Errorf("expected available status on create, got %q", equipment.Status)
	}
}

func TestCreate_MemberDenied(t *testing.T) {
	svc := newService(&mockEquipmentRepository{}, nil, nil, time.Now())

	err := svc.Create(context.Background(), memberActor(), &model.Equipment{Name: "Mill", Category: "cnc"})
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED, got %v", err)
	}
}

func TestCreate_ValidationFailure(t *testing.T) {
	svc := newService(&mockEquipmentRepository{}, nil, nil, time.Now())

	err := svc.Create(context.Background(), adminActor(), &model.Equipment{Name: "X"})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Errorf("expected VALIDATION_ERROR for a one-letter name, got %v", err)
	}
}

func TestGetByID_DerivedStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	covering := model.Interval{
		Start: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name        string
		offline     bool
		blocks      []*model.AvailabilityBlock
		reservation *model.Reservation
		expected    string
	}{
		{
			name:     "no blocks",
			expected: model.EquipmentAvailable,
		},
		{
			name:    "maintenance block wins over offline",
			offline: true,
			blocks: []*model.AvailabilityBlock{
				{Kind: model.BlockMaintenance, StartTime: covering.Start, EndTime: covering.End},
			},
			expected: model.EquipmentUnderMaintenance,
		},
		{
			name:     "offline flag",
			offline:  true,
			expected: model.EquipmentOffline,
		},
		{
			name: "active reservation",
			blocks: []*model.AvailabilityBlock{
				{Kind: model.BlockReservation, RefID: "res-1", StartTime: covering.Start, EndTime: covering.End},
			},
			reservation: &model.Reservation{
				Status:    model.ReservationApproved,
				StartTime: covering.Start,
				EndTime:   covering.End,
			},
			expected: model.EquipmentInUse,
		},
		{
			name: "covering block of an unapproved reservation",
			blocks: []*model.AvailabilityBlock{
				{Kind: model.BlockReservation, RefID: "res-1", StartTime: covering.Start, EndTime: covering.End},
			},
			reservation: &model.Reservation{
				Status:    model.ReservationRequested,
				StartTime: covering.Start,
				EndTime:   covering.End,
			},
			expected: model.EquipmentAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockEquipmentRepository{
				findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
					return &model.Equipment{
						ID:           testEquipmentID,
						MakerspaceID: testMakerspaceID,
						Name:         "Laser Cutter",
						Category:     "laser",
						Offline:      tt.offline,
					}, nil
				},
			}
			blocks := &mockBlockRepository{
				findCoveringFunc: func(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error) {
					return tt.blocks, nil
				},
			}
			reservations := &mockReservationGetter{
				findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
					return tt.reservation, nil
				},
			}

			svc := newService(repo, blocks, reservations, now)

			equipment, err := svc.GetByID(context.Background(), memberActor(), testEquipmentID)
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if equipment.Status != tt.expected {
				t.Errorf("expected status %s, got %s", tt.expected, equipment.Status)
			}
		})
	}
}

func TestGetByID_CrossTenant(t *testing.T) {
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
			return nil, equipmenterrors.ErrNotFound
		},
	}
	svc := newService(repo, nil, nil, time.Now())

	_, err := svc.GetByID(context.Background(), memberActor(), testEquipmentID)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestDelete_WithFutureBlocks(t *testing.T) {
	deleted := false
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
			return &model.Equipment{ID: testEquipmentID, MakerspaceID: testMakerspaceID}, nil
		},
		deleteFunc: func(ctx context.Context, makerspaceID, id string) error {
			deleted = true
			return nil
		},
	}
	blocks := &mockBlockRepository{
		hasBlocksAfterFunc: func(ctx context.Context, equipmentID string, after time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := newService(repo, blocks, nil, time.Now())

	err := svc.Delete(context.Background(), adminActor(), testEquipmentID)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if deleted {
		t.Error("expected delete to be refused")
	}
}

func TestDelete_WithoutFutureBlocks(t *testing.T) {
	deleted := false
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
			return &model.Equipment{ID: testEquipmentID, MakerspaceID: testMakerspaceID}, nil
		},
		deleteFunc: func(ctx context.Context, makerspaceID, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newService(repo, &mockBlockRepository{}, nil, time.Now())

	if err := svc.Delete(context.Background(), adminActor(), testEquipmentID); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !deleted {
		t.Error("expected the repository delete to run")
	}
}

// TestDelete_WaitsForEquipmentLock holds the per-equipment lock and checks
// that Delete cannot slip its future-block check and removal in between.
func TestDelete_WaitsForEquipmentLock(t *testing.T) {
	deleted := false
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
			return &model.Equipment{ID: testEquipmentID, MakerspaceID: testMakerspaceID}, nil
		},
		deleteFunc: func(ctx context.Context, makerspaceID, id string) error {
			deleted = true
			return nil
		},
	}
	svc := newService(repo, &mockBlockRepository{}, nil, time.Now())

	locked := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		held <- svc.index.WithEquipmentLock(testEquipmentID, func() error {
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	done := make(chan error, 1)
	go func() {
		done <- svc.Delete(context.Background(), adminActor(), testEquipmentID)
	}()

	select {
	case <-done:
		t.Fatal("expected delete to wait for the equipment lock")
	case <-time.After(50 * time.Millisecond):
	}
	if deleted {
		t.Fatal("expected no delete while the lock is held")
	}

	close(release)
	<-held
	if err := <-done; err != nil {
		t.Fatalf("expected success after the lock released, got %v", err)
	}
	if !deleted {
		t.Error("expected the repository delete to run")
	}
}

// TestGetAll_StatusFilterPaginatesAfterFilter asks for the second page of
// available equipment. The derived-status filter must run before pagination
// so the page is full and the count reflects only matching items.
func TestGetAll_StatusFilterPaginatesAfterFilter(t *testing.T) {
	inventory := []*model.Equipment{
		{ID: "65f0a1b2c3d4e5f602000001", MakerspaceID: testMakerspaceID},
		{ID: "65f0a1b2c3d4e5f602000002", MakerspaceID: testMakerspaceID},
		{ID: "65f0a1b2c3d4e5f602000003", MakerspaceID: testMakerspaceID},
		{ID: "65f0a1b2c3d4e5f602000004", MakerspaceID: testMakerspaceID},
	}
	underMaintenance := inventory[1].ID

	var gotLimit int
	var gotOffset int64
	repo := &mockEquipmentRepository{
		findAllFunc: func(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error) {
			gotLimit, gotOffset = limit, offset
			return inventory, nil
		},
	}
	blocks := &mockBlockRepository{
		findCoveringFunc: func(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error) {
			if equipmentID == underMaintenance {
				return []*model.AvailabilityBlock{{Kind: model.BlockMaintenance}}, nil
			}
			return nil, nil
		},
	}
	svc := newService(repo, blocks, nil, time.Now())

	filter := model.EquipmentFilter{Status: model.EquipmentAvailable}
	items, count, err := svc.GetAll(context.Background(), memberActor(), filter, 1, 1)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if gotLimit != 0 || gotOffset != 0 {
		t.Errorf("expected an unpaginated fetch, got limit=%d offset=%d", gotLimit, gotOffset)
	}
	if count != 3 {
		t.Errorf("expected count 3 after filtering, got %d", count)
	}
	if len(items) != 1 || items[0].ID != inventory[2].ID {
		t.Errorf("expected the second available item, got %v", items)
	}
}

// Pages past the filtered set come back empty without an error.
func TestGetAll_StatusFilterOffsetPastEnd(t *testing.T) {
	repo := &mockEquipmentRepository{
		findAllFunc: func(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error) {
			return []*model.Equipment{{ID: testEquipmentID, MakerspaceID: testMakerspaceID}}, nil
		},
	}
	svc := newService(repo, &mockBlockRepository{}, nil, time.Now())

	items, count, err := svc.GetAll(context.Background(), memberActor(),
		model.EquipmentFilter{Status: model.EquipmentAvailable}, 20, 5)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if count != 1 || len(items) != 0 {
		t.Errorf("expected an empty page with count 1, got %d items count %d", len(items), count)
	}
}

func TestUpdate_MergesPartialInput(t *testing.T) {
	var persisted *model.Equipment
	repo := &mockEquipmentRepository{
		findByIDFunc: func(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
			return &model.Equipment{
				ID:              testEquipmentID,
				MakerspaceID:    testMakerspaceID,
				Name:            "Laser Cutter",
				Category:        "laser",
				HourlyRateCents: 1000,
				DepositCents:    500,
			}, nil
		},
	}
	svc := newService(repo, nil, nil, time.Now())
	svc.repo = &updateCapturingRepo{mockEquipmentRepository: repo, captured: &persisted}

	offline := true
	newRate := int64(1500)
	err := svc.Update(context.Background(), adminActor(), testEquipmentID, &model.EquipmentUpdate{
		HourlyRateCents: &newRate,
		Offline:         &offline,
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if persisted.Name != "Laser Cutter" || persisted.Category != "laser" {
		t.Errorf("expected untouched fields preserved, got %+v", persisted)
	}
	if persisted.HourlyRateCents != 1500 {
		t.Errorf("expected merged rate 1500, got %d", persisted.HourlyRateCents)
	}
	if !persisted.Offline {
		t.Error("expected offline flag merged")
	}
	if persisted.DepositCents != 500 {
		t.Errorf("expected deposit preserved, got %d", persisted.DepositCents)
	}
}

type updateCapturingRepo struct {
	*mockEquipmentRepository
	captured **model.Equipment
}

func (r *updateCapturingRepo) Update(ctx context.Context, makerspaceID, id string, equipment *model.Equipment) (*mongo.UpdateResult, error) {
	*r.captured = equipment
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}
