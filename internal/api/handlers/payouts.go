package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/services"
)

type PayoutHandler struct {
	settle *services.SettlementService
}

func NewPayoutHandler(settle *services.SettlementService) *PayoutHandler {
	return &PayoutHandler{settle: settle}
}

func (h *PayoutHandler) CenterBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.settle.CenterBalance(r.Context(), chi.URLParam(r, "centerID"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

// Build claims the center's settleable transactions into a pending
// payout batch.
func (h *PayoutHandler) Build(w http.ResponseWriter, r *http.Request) {
	p, err := h.settle.BuildPayoutBatch(r.Context(), chi.URLParam(r, "centerID"), models.PayoutManual)
	if err != nil {
		if errors.Is(err, services.ErrNothingToSettle) {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "nothing_to_settle", "no settleable transactions", nil)
			return
		}
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *PayoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	p, err := h.settle.SubmitPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *PayoutHandler) Retry(w http.ResponseWriter, r *http.Request) {
	p, err := h.settle.RetryPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.settle.GetPayout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *PayoutHandler) ListByCenter(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	ps, err := h.settle.ListPayouts(r.Context(), chi.URLParam(r, "centerID"), limit, offset)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ps)
}
