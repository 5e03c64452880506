package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReservationService struct {
	requestFunc func(ctx context.Context, actor model.Actor, reservation *model.Reservation) error
	getByIDFunc func(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error)
}

func (m *mockReservationService) Request(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
	if m.requestFunc != nil {
		return m.requestFunc(ctx, actor, reservation)
	}
	return nil
}

func (m *mockReservationService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, actor, id)
	}
	return nil, apperrors.NotFoundWithID("Reservation", id)
}

func (m *mockReservationService) GetAll(ctx context.Context, actor model.Actor, filter model.ReservationFilter, limit int, offset int64) ([]*model.Reservation, int64, error) {
	return nil, 0, nil
}

func (m *mockReservationService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationService) Cancel(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
	return nil, nil
}

func (m *mockReservationService) SweepLapsed(ctx context.Context) (int, error) {
	return 0, nil
}

func newHandler(svc *mockReservationService) *ReservationHandler {
	log := logger.New(logger.Config{
		Level:     "info",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewReservationHandler(svc, log)
}

func withActor(r *http.Request) *http.Request {
	actor := model.Actor{
		UserID:       "user-1",
		MakerspaceID: "space-1",
		Role:         permission.RoleMember,
	}
	return r.WithContext(context.WithValue(r.Context(), middleware.ActorKey, actor))
}

func TestCreate_MissingIdentity(t *testing.T) {
	handler := newHandler(&mockReservationService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	handler.Create(w, req, httprouter.Params{})

	require.Equal(t, http.StatusForbidden, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeNotPermitted, body["code"])
}

func TestCreate_Success(t *testing.T) {
	var received *model.Reservation
	svc := &mockReservationService{
		requestFunc: func(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
			reservation.ID = "65f0a1b2c3d4e5f606000001"
			reservation.Status = model.ReservationRequested
			received = reservation
			return nil
		},
	}
	handler := newHandler(svc)

	payload := `{
		"equipment_id": "65f0a1b2c3d4e5f606000002",
		"start_time": "2026-03-01T09:00:00Z",
		"end_time": "2026-03-01T10:00:00Z"
	}`
	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(payload)))
	w := httptest.NewRecorder()

	handler.Create(w, req, httprouter.Params{})

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, received)
	assert.Equal(t, "65f0a1b2c3d4e5f606000002", received.EquipmentID)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), received.StartTime.UTC())

	var body struct {
		Data model.Reservation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "65f0a1b2c3d4e5f606000001", body.Data.ID)
	assert.Equal(t, model.ReservationRequested, body.Data.Status)
}

func TestCreate_InvalidBody(t *testing.T) {
	handler := newHandler(&mockReservationService{})

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{not json`)))
	w := httptest.NewRecorder()

	handler.Create(w, req, httprouter.Params{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreate_SlotConflictStatus(t *testing.T) {
	svc := &mockReservationService{
		requestFunc: func(ctx context.Context, actor model.Actor, reservation *model.Reservation) error {
			return apperrors.SlotConflict("requested interval overlaps a committed block")
		},
	}
	handler := newHandler(svc)

	req := withActor(httptest.NewRequest(http.MethodPost, "/api/v1/reservations", strings.NewReader(`{}`)))
	w := httptest.NewRecorder()

	handler.Create(w, req, httprouter.Params{})

	require.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeSlotConflict, body["code"])
}

func TestGetByID_Success(t *testing.T) {
	svc := &mockReservationService{
		getByIDFunc: func(ctx context.Context, actor model.Actor, id string) (*model.Reservation, error) {
			return &model.Reservation{
				ID:     id,
				Status: model.ReservationActive,
			}, nil
		},
	}
	handler := newHandler(svc)

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/reservations/65f0a1b2c3d4e5f606000001", nil))
	w := httptest.NewRecorder()

	handler.GetByID(w, req, httprouter.Params{{Key: "id", Value: "65f0a1b2c3d4e5f606000001"}})

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data model.Reservation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.ReservationActive, body.Data.Status)
}

func TestGetByID_NotFound(t *testing.T) {
	handler := newHandler(&mockReservationService{})

	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/reservations/missing", nil))
	w := httptest.NewRecorder()

	handler.GetByID(w, req, httprouter.Params{{Key: "id", Value: "missing"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}
