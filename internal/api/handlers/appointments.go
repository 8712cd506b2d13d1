package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/services"
)

type AppointmentHandler struct {
	appts *services.AppointmentService
}

func NewAppointmentHandler(appts *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appts: appts}
}

func (h *AppointmentHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req struct {
		services.BookingRequest
		Funding string `json:"funding"` // "self_pay" | "allocation"
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	var (
		appt models.Appointment
		err  error
	)
	switch req.Funding {
	case "allocation":
		appt, err = h.appts.BookFromAllocation(r.Context(), req.BookingRequest)
	case "self_pay", "":
		appt, err = h.appts.BookSelfPay(r.Context(), req.BookingRequest)
	default:
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", "funding must be self_pay or allocation", nil)
		return
	}
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, appt)
}

func (h *AppointmentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	appt, err := h.appts.Transition(r.Context(), chi.URLParam(r, "id"), models.AppointmentStatus(req.Status))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.appts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appt)
}

func (h *AppointmentHandler) ListByCenter(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	appts, err := h.appts.ListByCenter(r.Context(), chi.URLParam(r, "centerID"), limit, offset)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, appts)
}
