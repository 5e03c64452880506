package handler

import (
	"encoding/json"
	"net/http"

	"makerdesk/internal/equipment/service"
	apperrors "makerdesk/pkg/errors"
	httputil "makerdesk/pkg/http"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"
	"makerdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type EquipmentHandler struct {
	service service.EquipmentService
	log     *logger.Logger
}

func NewEquipmentHandler(service service.EquipmentService, log *logger.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		service: service,
		log:     log,
	}
}

func (h *EquipmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/equipment", h.Create)
	router.GET("/api/v1/equipment", h.GetAll)
	router.GET("/api/v1/equipment/:id", h.GetByID)
	router.PUT("/api/v1/equipment/:id", h.Update)
	router.DELETE("/api/v1/equipment/:id", h.Delete)
}

func (h *EquipmentHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var equipment model.Equipment
	if err := json.NewDecoder(r.Body).Decode(&equipment); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Create(r.Context(), actor, &equipment); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, equipment)
}

func (h *EquipmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	equipment, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, equipment)
}

func (h *EquipmentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	query := r.URL.Query()
	filter := model.EquipmentFilter{
		Category:      query.Get("category"),
		Location:      query.Get("location"),
		Certification: query.Get("certification"),
		Status:        query.Get("status"),
	}

	items, total, err := h.service.GetAll(r.Context(), actor, filter, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WritePaginated(w, items, total, limit, offset)
}

func (h *EquipmentHandler) Update(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var updates model.EquipmentUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Update(r.Context(), actor, ps.ByName("id"), &updates); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *EquipmentHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	if err := h.service.Delete(r.Context(), actor, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
