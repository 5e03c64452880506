package handler

import (
	"encoding/json"
	"net/http"

	"makerdesk/internal/usage/service"
	apperrors "makerdesk/pkg/errors"
	httputil "makerdesk/pkg/http"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// UsageHandler carries the analytics and moderation surface of the usage
// service.
type UsageHandler struct {
	usage   service.UsageService
	ratings service.RatingService
	log     *logger.Logger
}

func NewUsageHandler(usage service.UsageService, ratings service.RatingService, log *logger.Logger) *UsageHandler {
	return &UsageHandler{
		usage:   usage,
		ratings: ratings,
		log:     log,
	}
}

func (h *UsageHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/usage/equipment/:id", h.GetEquipmentUsage)
	router.GET("/api/v1/usage/summary", h.GetSummary)
	router.POST("/api/v1/ratings/:id/moderate", h.Moderate)
}

func (h *UsageHandler) GetEquipmentUsage(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	usage, err := h.usage.GetEquipmentUsage(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, usage)
}

func (h *UsageHandler) GetSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	rows, err := h.usage.Summary(r.Context(), actor, r.URL.Query().Get("group_by"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, rows)
}

func (h *UsageHandler) Moderate(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var input struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	rating, err := h.ratings.Moderate(r.Context(), actor, ps.ByName("id"), input.Approve)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, rating)
}
