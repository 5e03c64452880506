package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"makerdesk/internal/availability"
	equipmenterrors "makerdesk/internal/equipment/errors"
	reservationerrors "makerdesk/internal/reservations/errors"
	"makerdesk/internal/reservations/repository"
	"makerdesk/internal/reservations/validator"
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
	testEquipmentID  = "65f0a1b2c3d4e5f601000001"
)

func newTestConfig() *config.Config {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	return &config.Config{
		Log:                   log,
		MaxOverlapFetch:       50,
		AutoApproveCategories: []string{"3d printer"},
	}
}

func testEquipment() *model.Equipment {
	return &model.Equipment{
		ID:              testEquipmentID,
		MakerspaceID:    testMakerspaceID,
		Name:            "Laser Cutter",
		Category:        "laser",
		HourlyRateCents: 1000,
		DepositCents:    500,
	}
}

func memberActor(userID string, certs ...string) model.Actor {
	certifications := make(map[string]string, len(certs))
	for _, c := range certs {
		certifications[c] = "2026-01-01"
	}
	return model.Actor{
		UserID:         userID,
		MakerspaceID:   testMakerspaceID,
		Role:           permission.RoleMember,
		Certifications: certifications,
	}
}

// --- In-memory fakes ---
//
// The concurrency and lifecycle tests need real state behind the repository
// interfaces; func-field mocks cover the single-call cases further down.

type fakeBlockStore struct {
	mu     sync.Mutex
	blocks []*model.AvailabilityBlock
}

func (f *fakeBlockStore) Insert(ctx context.Context, block *model.AvailabilityBlock) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks = append(f.blocks, block)
	return nil
}

func (f *fakeBlockStore) RemoveByRef(ctx context.Context, kind, refID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.blocks[:0]
	for _, b := range f.blocks {
		if b.Kind != kind || b.RefID != refID {
			kept = append(kept, b)
		}
	}
	f.blocks = kept
	return nil
}

func (f *fakeBlockStore) FindOverlapping(ctx context.Context, equipmentID string, interval model.Interval, limit int) ([]*model.AvailabilityBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var overlapping []*model.AvailabilityBlock
	for _, b := range f.blocks {
		if b.EquipmentID == equipmentID && interval.Overlaps(b.Interval()) {
			overlapping = append(overlapping, b)
		}
	}
	return overlapping, nil
}

func (f *fakeBlockStore) FindInRange(ctx context.Context, equipmentID string, start, end time.Time) ([]*model.AvailabilityBlock, error) {
	return f.FindOverlapping(ctx, equipmentID, model.Interval{Start: start, End: end}, 0)
}

func (f *fakeBlockStore) FindCovering(ctx context.Context, equipmentID string, at time.Time) ([]*model.AvailabilityBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var covering []*model.AvailabilityBlock
	for _, b := range f.blocks {
		if b.EquipmentID == equipmentID && b.Interval().Contains(at) {
			covering = append(covering, b)
		}
	}
	return covering, nil
}

func (f *fakeBlockStore) HasBlocksAfter(ctx context.Context, equipmentID string, after time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.blocks {
		if b.EquipmentID == equipmentID && b.EndTime.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBlockStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type fakeReservationStore struct {
	mu           sync.Mutex
	reservations map[string]*model.Reservation
	nextID       int
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{reservations: make(map[string]*model.Reservation)}
}

func (f *fakeReservationStore) Create(ctx context.Context, reservation *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	reservation.ID = fmt.Sprintf("%024x", f.nextID)
	stored := *reservation
	f.reservations[reservation.ID] = &stored
	return nil
}

func (f *fakeReservationStore) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation, ok := f.reservations[id]
	if !ok {
		return nil, reservationerrors.ErrNotFound
	}
	copied := *reservation
	return &copied, nil
}

func (f *fakeReservationStore) FindByIDScoped(ctx context.Context, makerspaceID, id string) (*model.Reservation, error) {
	reservation, err := f.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if reservation.MakerspaceID != makerspaceID {
		return nil, reservationerrors.ErrNotFound
	}
	return reservation, nil
}

func (f *fakeReservationStore) FindAll(ctx context.Context, makerspaceID string, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*model.Reservation
	for _, r := range f.reservations {
		if r.MakerspaceID != makerspaceID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.EquipmentID != "" && r.EquipmentID != filter.EquipmentID {
			continue
		}
		copied := *r
		items = append(items, &copied)
	}
	return items, nil
}

func (f *fakeReservationStore) Count(ctx context.Context, makerspaceID string, filter model.ReservationFilter) (int64, error) {
	items, _ := f.FindAll(ctx, makerspaceID, filter, 0, 0)
	return int64(len(items)), nil
}

func (f *fakeReservationStore) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reservation, ok := f.reservations[id]
	if !ok {
		return reservationerrors.ErrNotFound
	}
	matched := false
	for _, from := range update.FromStatuses {
		if reservation.Status == from {
			matched = true
			break
		}
	}
	if !matched {
		return reservationerrors.ErrStaleStatus
	}
	reservation.Status = update.ToStatus
	if reason, ok := update.Set["cancel_reason"].(string); ok {
		reservation.CancelReason = reason
	}
	if by, ok := update.Set["cancelled_by"].(string); ok {
		reservation.CancelledBy = by
	}
	return nil
}

func (f *fakeReservationStore) FindLapsed(ctx context.Context, before time.Time, limit int) ([]*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lapsed []*model.Reservation
	for _, r := range f.reservations {
		if r.Status == model.ReservationApproved && !r.EndTime.After(before) {
			copied := *r
			lapsed = append(lapsed, &copied)
		}
	}
	return lapsed, nil
}

func (f *fakeReservationStore) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	return f.UpdateStatus(ctx, id, repository.StatusUpdate{
		FromStatuses: []string{model.ReservationApproved},
		ToStatus:     model.ReservationCompleted,
	})
}

func (f *fakeReservationStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type fakeEquipmentStore struct {
	equipment *model.Equipment
}

func (f *fakeEquipmentStore) Create(ctx context.Context, equipment *model.Equipment) error {
	return nil
}

func (f *fakeEquipmentStore) FindByID(ctx context.Context, makerspaceID, id string) (*model.Equipment, error) {
	if f.equipment == nil || f.equipment.ID != id || f.equipment.MakerspaceID != makerspaceID {
		return nil, equipmenterrors.ErrNotFound
	}
	copied := *f.equipment
	return &copied, nil
}

func (f *fakeEquipmentStore) FindAll(ctx context.Context, makerspaceID string, filter model.EquipmentFilter, limit int, offset int64) ([]*model.Equipment, error) {
	return nil, nil
}

func (f *fakeEquipmentStore) Count(ctx context.Context, makerspaceID string, filter model.EquipmentFilter) (int64, error) {
	return 0, nil
}

func (f *fakeEquipmentStore) Update(ctx context.Context, makerspaceID, id string, equipment *model.Equipment) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (f *fakeEquipmentStore) Delete(ctx context.Context, makerspaceID, id string) error {
	return nil
}

func (f *fakeEquipmentStore) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ReservationEvent
}

func (p *recordingPublisher) PublishReservationEvent(ctx context.Context, event model.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) byType(eventType string) []model.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.ReservationEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type testHarness struct {
	service      *reservationService
	reservations *fakeReservationStore
	blocks       *fakeBlockStore
	equipment    *fakeEquipmentStore
	publisher    *recordingPublisher
	now          time.Time
}

func newTestHarness() *testHarness {
	cfg := newTestConfig()
	h := &testHarness{
		reservations: newFakeReservationStore(),
		blocks:       &fakeBlockStore{},
		equipment:    &fakeEquipmentStore{equipment: testEquipment()},
		publisher:    &recordingPublisher{},
		now:          time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	h.service = &reservationService{
		repo:          h.reservations,
		equipmentRepo: h.equipment,
		index:         availability.NewIndex(h.blocks, availability.NewLocker(), cfg.MaxOverlapFetch),
		validator:     validator.NewReservationValidator(cfg.Log),
		publisher:     h.publisher,
		cfg:           cfg,
		now:           func() time.Time { return h.now },
	}
	return h
}

func newReservation(start, end time.Time) *model.Reservation {
	return &model.Reservation{
		EquipmentID: testEquipmentID,
		StartTime:   start,
		EndTime:     end,
	}
}

// --- Request ---

func TestRequest_Success(t *testing.T) {
	h := newTestHarness()
	actor := memberActor("user-1")

	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	)

	if err := h.service.Request(context.Background(), actor, reservation); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if reservation.Status != model.ReservationRequested {
		t.Errorf("expected status requested, got %s", reservation.Status)
	}
	if reservation.UserID != "user-1" || reservation.MakerspaceID != testMakerspaceID {
		t.Errorf("expected owner fields from the actor, got user=%s space=%s", reservation.UserID, reservation.MakerspaceID)
	}
	// 90 minutes at 1000c/h plus 500c deposit.
	if reservation.CostCents != 2000 {
		t.Errorf("expected cost 2000, got %d", reservation.CostCents)
	}

	if len(h.blocks.blocks) != 1 {
		t.Fatalf("expected 1 committed block, got %d", len(h.blocks.blocks))
	}
	block := h.blocks.blocks[0]
	if block.Kind != model.BlockReservation || block.RefID != reservation.ID {
		t.Errorf("expected a reservation block owned by %s, got kind=%s ref=%s", reservation.ID, block.Kind, block.RefID)
	}
}

func TestRequest_AutoApproveCategory(t *testing.T) {
	h := newTestHarness()
	h.equipment.equipment.Category = "3d printer"
	actor := memberActor("user-1")

	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	if err := h.service.Request(context.Background(), actor, reservation); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if reservation.Status != model.ReservationApproved {
		t.Errorf("expected auto-approved status, got %s", reservation.Status)
	}
}

func TestRequest_CertificationGateBeforeSlotConflict(t *testing.T) {
	h := newTestHarness()
	h.equipment.equipment.RequiredCertifications = []string{"cert-laser"}

	// Occupy the slot too: the certification failure must win.
	h.blocks.blocks = []*model.AvailabilityBlock{{
		EquipmentID: testEquipmentID,
		Kind:        model.BlockReservation,
		RefID:       "other",
		StartTime:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	actor := memberActor("user-1")
	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	err := h.service.Request(context.Background(), actor, reservation)
	if !apperrors.IsCode(err, apperrors.CodeCertificationRequired) {
		t.Fatalf("expected CERTIFICATION_REQUIRED, got %v", err)
	}

	appErr := apperrors.AsAppError(err)
	missing, _ := appErr.Details["missing_certifications"].([]string)
	if len(missing) != 1 || missing[0] != "cert-laser" {
		t.Errorf("expected missing cert-laser, got %v", missing)
	}
}

func TestRequest_SlotConflict(t *testing.T) {
	h := newTestHarness()
	h.blocks.blocks = []*model.AvailabilityBlock{{
		EquipmentID: testEquipmentID,
		Kind:        model.BlockMaintenance,
		RefID:       "maint-1",
		StartTime:   time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}}

	actor := memberActor("user-1")
	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	err := h.service.Request(context.Background(), actor, reservation)
	if !apperrors.IsCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("expected SLOT_CONFLICT, got %v", err)
	}
	if len(h.reservations.reservations) != 0 {
		t.Errorf("expected no reservation persisted on conflict, got %d", len(h.reservations.reservations))
	}
}

func TestRequest_BackToBackSlots(t *testing.T) {
	h := newTestHarness()
	h.blocks.blocks = []*model.AvailabilityBlock{{
		EquipmentID: testEquipmentID,
		Kind:        model.BlockReservation,
		RefID:       "other",
		StartTime:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}}

	actor := memberActor("user-1")
	reservation := newReservation(
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	)

	if err := h.service.Request(context.Background(), actor, reservation); err != nil {
		t.Errorf("expected a slot starting at the previous end to be free, got %v", err)
	}
}

func TestRequest_InvalidInterval(t *testing.T) {
	h := newTestHarness()
	actor := memberActor("user-1")

	reservation := newReservation(
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	)

	err := h.service.Request(context.Background(), actor, reservation)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInterval) {
		t.Errorf("expected INVALID_INTERVAL, got %v", err)
	}
}

func TestRequest_EquipmentInOtherMakerspace(t *testing.T) {
	h := newTestHarness()
	h.equipment.equipment.MakerspaceID = "space-other"

	actor := memberActor("user-1")
	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	err := h.service.Request(context.Background(), actor, reservation)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND for cross-tenant equipment, got %v", err)
	}
}

func TestRequest_UnknownRoleDenied(t *testing.T) {
	h := newTestHarness()
	actor := model.Actor{
		UserID:       "user-1",
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleUnknown,
	}

	reservation := newReservation(
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	err := h.service.Request(context.Background(), actor, reservation)
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED, got %v", err)
	}
}

// TestRequest_ConcurrentSameSlot races many bookings of the same slot.
// Exactly one may win; every loser gets a slot conflict and leaves no state.
func TestRequest_ConcurrentSameSlot(t *testing.T) {
	h := newTestHarness()

	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	const attempts = 25
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			actor := memberActor(fmt.Sprintf("user-%d", n))
			results <- h.service.Request(context.Background(), actor, newReservation(start, end))
		}(i)
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case apperrors.IsCode(err, apperrors.CodeSlotConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 successful booking, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
	if len(h.reservations.reservations) != 1 {
		t.Errorf("expected 1 stored reservation, got %d", len(h.reservations.reservations))
	}
	if len(h.blocks.blocks) != 1 {
		t.Errorf("expected 1 committed block, got %d", len(h.blocks.blocks))
	}
}

func TestEstimateCostCents(t *testing.T) {
	tests := []struct {
		name     string
		rate     int64
		deposit  int64
		minutes  time.Duration
		expected int64
	}{
		{"whole hours", 1000, 500, 2 * time.Hour, 2500},
		{"ninety minutes", 1000, 500, 90 * time.Minute, 2000},
		{"rounds half up", 1000, 0, time.Minute, 17},
		{"free equipment", 0, 0, time.Hour, 0},
		{"deposit only", 0, 300, 30 * time.Minute, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			equipment := &model.Equipment{HourlyRateCents: tt.rate, DepositCents: tt.deposit}
			start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
			interval := model.Interval{Start: start, End: start.Add(tt.minutes)}

			if got := EstimateCostCents(equipment, interval); got != tt.expected {
				t.Errorf("EstimateCostCents() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

// --- Approve ---

func adminActor(userID string) model.Actor {
	return model.Actor{
		UserID:       userID,
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleAdmin,
	}
}

func staffActor(userID string) model.Actor {
	return model.Actor{
		UserID:       userID,
		MakerspaceID: testMakerspaceID,
		Role:         permission.RoleStaff,
	}
}

func requestReservation(t *testing.T, h *testHarness, userID string, start, end time.Time) *model.Reservation {
	t.Helper()
	reservation := newReservation(start, end)
	if err := h.service.Request(context.Background(), memberActor(userID), reservation); err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}
	return reservation
}

func TestApprove_Requested(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	approved, err := h.service.Approve(context.Background(), adminActor("admin-1"), reservation.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if approved.Status != model.ReservationApproved {
		t.Errorf("expected approved status, got %s", approved.Status)
	}

	stored, _ := h.reservations.FindByID(context.Background(), reservation.ID)
	if stored.Status != model.ReservationApproved {
		t.Errorf("expected stored status approved, got %s", stored.Status)
	}
}

func TestApprove_MemberDenied(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	_, err := h.service.Approve(context.Background(), memberActor("user-1"), reservation.ID)
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED, got %v", err)
	}
}

func TestApprove_AlreadyApproved(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	admin := adminActor("admin-1")
	if _, err := h.service.Approve(context.Background(), admin, reservation.ID); err != nil {
		t.Fatalf("first approval failed: %v", err)
	}

	_, err := h.service.Approve(context.Background(), admin, reservation.ID)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT on double approval, got %v", err)
	}
}

// --- Cancel ---

func TestCancel_OwnReservation(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	cancelled, err := h.service.Cancel(context.Background(), memberActor("user-1"), reservation.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if cancelled.Status != model.ReservationCancelled {
		t.Errorf("expected cancelled status, got %s", cancelled.Status)
	}
	if cancelled.CancelReason != model.CancelledBySelf {
		t.Errorf("expected reason %s, got %s", model.CancelledBySelf, cancelled.CancelReason)
	}
	if len(h.blocks.blocks) != 0 {
		t.Errorf("expected the availability block to be released, got %d blocks", len(h.blocks.blocks))
	}
	if got := h.publisher.byType(model.EventReservationCancelled); len(got) != 1 {
		t.Errorf("expected 1 cancellation event, got %d", len(got))
	}
}

func TestCancel_SlotReusableAfterCancel(t *testing.T) {
	h := newTestHarness()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	reservation := requestReservation(t, h, "user-1", start, end)
	if _, err := h.service.Cancel(context.Background(), memberActor("user-1"), reservation.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if err := h.service.Request(context.Background(), memberActor("user-2"), newReservation(start, end)); err != nil {
		t.Errorf("expected the released slot to be bookable, got %v", err)
	}
}

func TestCancel_OtherMembersReservation(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	_, err := h.service.Cancel(context.Background(), memberActor("user-2"), reservation.ID)
	if !apperrors.IsCode(err, apperrors.CodeNotPermitted) {
		t.Errorf("expected NOT_PERMITTED for a stranger's reservation, got %v", err)
	}

	cancelled, err := h.service.Cancel(context.Background(), staffActor("staff-1"), reservation.ID)
	if err != nil {
		t.Fatalf("expected staff to cancel any reservation, got %v", err)
	}
	if cancelled.CancelReason != model.CancelledByAdmin {
		t.Errorf("expected reason %s, got %s", model.CancelledByAdmin, cancelled.CancelReason)
	}
}

func TestCancel_CompletedReservation(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)
	if _, err := h.service.Approve(context.Background(), adminActor("admin-1"), reservation.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// The interval has lapsed; the reservation reads as completed even though
	// the sweep has not archived it yet.
	h.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := h.service.Cancel(context.Background(), memberActor("user-1"), reservation.ID)
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Errorf("expected CONFLICT for a completed reservation, got %v", err)
	}
}

// --- Reads ---

func TestGetByID_DerivesActiveStatus(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)
	if _, err := h.service.Approve(context.Background(), adminActor("admin-1"), reservation.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	h.now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	got, err := h.service.GetByID(context.Background(), memberActor("user-1"), reservation.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.Status != model.ReservationActive {
		t.Errorf("expected active during the interval, got %s", got.Status)
	}
}

func TestGetByID_CrossTenant(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)

	outsider := model.Actor{
		UserID:       "user-9",
		MakerspaceID: "space-other",
		Role:         permission.RoleAdmin,
	}

	_, err := h.service.GetByID(context.Background(), outsider, reservation.ID)
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Errorf("expected NOT_FOUND across tenants, got %v", err)
	}
}

func TestGetAll_MemberSeesOwnOnly(t *testing.T) {
	h := newTestHarness()
	requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)
	requestReservation(t, h, "user-2",
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	)

	items, count, err := h.service.GetAll(context.Background(), memberActor("user-1"), model.ReservationFilter{}, 100, 0)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if count != 1 || len(items) != 1 {
		t.Fatalf("expected member to see 1 reservation, got count=%d items=%d", count, len(items))
	}
	if items[0].UserID != "user-1" {
		t.Errorf("expected only the member's own reservation, got %s", items[0].UserID)
	}

	_, staffCount, err := h.service.GetAll(context.Background(), staffActor("staff-1"), model.ReservationFilter{}, 100, 0)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if staffCount != 2 {
		t.Errorf("expected staff to see both reservations, got %d", staffCount)
	}
}

// --- Sweep ---

func TestSweepLapsed(t *testing.T) {
	h := newTestHarness()
	reservation := requestReservation(t, h, "user-1",
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	)
	if _, err := h.service.Approve(context.Background(), adminActor("admin-1"), reservation.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	// Still running at 09:30: nothing to sweep.
	h.now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	swept, err := h.service.SweepLapsed(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected 0 swept before the interval ends, got %d", swept)
	}

	h.now = time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	swept, err = h.service.SweepLapsed(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("expected 1 swept reservation, got %d", swept)
	}

	stored, _ := h.reservations.FindByID(context.Background(), reservation.ID)
	if stored.Status != model.ReservationCompleted {
		t.Errorf("expected completed, got %s", stored.Status)
	}
	if got := h.publisher.byType(model.EventReservationCompleted); len(got) != 1 {
		t.Errorf("expected 1 completion event, got %d", len(got))
	}

	// A second sweep must not archive or publish again.
	swept, err = h.service.SweepLapsed(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if swept != 0 {
		t.Errorf("expected 0 swept on repeat, got %d", swept)
	}
}

// TestReservationLifecycle walks one morning on a laser cutter: a member
// without the required certification is turned away, a certified member books
// and gets approved, the reservation reads active mid-interval, a back-to-back
// booking by another member succeeds, and the first reads completed at its end.
func TestReservationLifecycle(t *testing.T) {
	h := newTestHarness()
	h.equipment.equipment.RequiredCertifications = []string{"cert-laser"}

	nineToTen := []time.Time{
		time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	uncertified := memberActor("user-1")
	err := h.service.Request(context.Background(), uncertified, newReservation(nineToTen[0], nineToTen[1]))
	if !apperrors.IsCode(err, apperrors.CodeCertificationRequired) {
		t.Fatalf("expected CERTIFICATION_REQUIRED, got %v", err)
	}

	certified := memberActor("user-2", "cert-laser")
	reservation := newReservation(nineToTen[0], nineToTen[1])
	if err := h.service.Request(context.Background(), certified, reservation); err != nil {
		t.Fatalf("certified booking failed: %v", err)
	}
	if reservation.Status != model.ReservationRequested {
		t.Fatalf("expected requested, got %s", reservation.Status)
	}

	if _, err := h.service.Approve(context.Background(), adminActor("admin-1"), reservation.ID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}

	h.now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	got, err := h.service.GetByID(context.Background(), certified, reservation.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != model.ReservationActive {
		t.Errorf("expected active at 09:30, got %s", got.Status)
	}

	next := memberActor("user-3", "cert-laser")
	nextReservation := newReservation(nineToTen[1], time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))
	if err := h.service.Request(context.Background(), next, nextReservation); err != nil {
		t.Fatalf("back-to-back booking failed: %v", err)
	}

	h.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err = h.service.GetByID(context.Background(), certified, reservation.ID)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if got.Status != model.ReservationCompleted {
		t.Errorf("expected completed at 10:00, got %s", got.Status)
	}
}
