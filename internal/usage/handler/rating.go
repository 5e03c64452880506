package handler

import (
	"encoding/json"
	"net/http"

	"makerdesk/internal/usage/service"
	apperrors "makerdesk/pkg/errors"
	httputil "makerdesk/pkg/http"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"
	"makerdesk/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// RatingHandler carries the member-facing rating surface. It registers on the
// reservations service: submission belongs next to the reservation it rates.
type RatingHandler struct {
	service service.RatingService
	log     *logger.Logger
}

func NewRatingHandler(service service.RatingService, log *logger.Logger) *RatingHandler {
	return &RatingHandler{
		service: service,
		log:     log,
	}
}

func (h *RatingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations/:id/rating", h.Submit)
	router.GET("/api/v1/equipment/:id/ratings", h.GetByEquipment)
}

func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	var rating model.Rating
	if err := json.NewDecoder(r.Body).Decode(&rating); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	if err := h.service.Submit(r.Context(), actor, ps.ByName("id"), &rating); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, rating)
}

func (h *RatingHandler) GetByEquipment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
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

	ratings, err := h.service.GetByEquipment(r.Context(), actor, ps.ByName("id"), limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, ratings)
}
