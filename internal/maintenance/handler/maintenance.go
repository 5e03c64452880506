package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"makerdesk/internal/maintenance/service"
	apperrors "makerdesk/pkg/errors"
	httputil "makerdesk/pkg/http"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"
	"makerdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type MaintenanceHandler struct {
	service service.MaintenanceService
	log     *logger.Logger
}

func NewMaintenanceHandler(service service.MaintenanceService, log *logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		service: service,
		log:     log,
	}
}

func (h *MaintenanceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/equipment/:id/maintenance", h.Schedule)
	router.GET("/api/v1/equipment/:id/maintenance", h.GetByEquipment)
	router.POST("/api/v1/maintenance/:id/complete", h.Complete)
}

func (h *MaintenanceHandler) Schedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var log model.MaintenanceLog
	if err := json.NewDecoder(r.Body).Decode(&log); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}
	log.EquipmentID = ps.ByName("id")

	force := false
	if forceStr := r.URL.Query().Get("force"); forceStr != "" {
		parsed, err := strconv.ParseBool(forceStr)
		if err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("invalid force parameter: "+forceStr))
			return
		}
		force = parsed
	}

	if err := h.service.Schedule(r.Context(), actor, &log, force); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, log)
}

func (h *MaintenanceHandler) GetByEquipment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

	logs, err := h.service.GetByEquipment(r.Context(), actor, ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, logs)
}

func (h *MaintenanceHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var input service.CompletionInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
			return
		}
	}

	log, err := h.service.Complete(r.Context(), actor, ps.ByName("id"), input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, log)
}
