package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/api/validate"
	"github.com/screenfund/backend/internal/services"
)

type WaitlistHandler struct {
	waitlist *services.WaitlistService
}

func NewWaitlistHandler(waitlist *services.WaitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PatientID       string `json:"patient_id"`
		ScreeningTypeID string `json:"screening_type_id"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if errs := validate.Collect(
		validate.Required("patient_id", req.PatientID),
		validate.Required("screening_type_id", req.ScreeningTypeID),
	); len(errs) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "validation_error", errs.Error(), errs)
		return
	}
	entry, err := h.waitlist.Join(r.Context(), req.PatientID, req.ScreeningTypeID)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, entry)
}

func (h *WaitlistHandler) Decline(w http.ResponseWriter, r *http.Request) {
	if err := h.waitlist.Decline(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "declined"})
}

func (h *WaitlistHandler) ListByPatient(w http.ResponseWriter, r *http.Request) {
	entries, err := h.waitlist.ListByPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}
