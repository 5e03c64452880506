package handler

import (
	"net/http"

	"makerdesk/internal/availability/service"
	apperrors "makerdesk/pkg/errors"
	httputil "makerdesk/pkg/http"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type CalendarHandler struct {
	service service.CalendarService
	log     *logger.Logger
}

func NewCalendarHandler(service service.CalendarService, log *logger.Logger) *CalendarHandler {
	return &CalendarHandler{
		service: service,
		log:     log,
	}
}

func (h *CalendarHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/equipment/:id/availability", h.GetCalendar)
}

func (h *CalendarHandler) GetCalendar(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.NotPermitted("missing identity"))
		return
	}

	start, end, err := httputil.ExtractTimeRange(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	calendar, err := h.service.Calendar(r.Context(), actor, ps.ByName("id"), start, end)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, calendar)
}
