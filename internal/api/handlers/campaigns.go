package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/middleware"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/services"
)

type CampaignHandler struct {
	campaigns *services.CampaignService
}

func NewCampaignHandler(campaigns *services.CampaignService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

func (h *CampaignHandler) InitializeDonation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64  `json:"amount"`
		Email  string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	init, err := h.campaigns.InitializeDonation(r.Context(), req.Amount, req.Email)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, init)
}

type createCampaignReq struct {
	PaymentReference string    `json:"payment_reference"`
	Title            string    `json:"title"`
	Amount           int64     `json:"amount"`
	MaxPerPatient    int64     `json:"max_per_patient"`
	States           []string  `json:"states,omitempty"`
	LGAs             []string  `json:"lgas,omitempty"`
	Gender           string    `json:"gender,omitempty"`
	AgeMin           *int      `json:"age_min,omitempty"`
	AgeMax           *int      `json:"age_max,omitempty"`
	ScreeningTypeIDs []string  `json:"screening_type_ids"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// Create confirms a verified donation charge and opens the campaign it
// funds.
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCampaignReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	draft := models.Campaign{
		Title:            req.Title,
		TargetAmount:     req.Amount,
		MaxPerPatient:    req.MaxPerPatient,
		States:           req.States,
		LGAs:             req.LGAs,
		Gender:           models.Gender(req.Gender),
		AgeMin:           req.AgeMin,
		AgeMax:           req.AgeMax,
		ScreeningTypeIDs: req.ScreeningTypeIDs,
		ExpiresAt:        req.ExpiresAt,
	}
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		draft.OwnerID = &claims.UserID
	}
	c, err := h.campaigns.ConfirmDonation(r.Context(), req.PaymentReference, draft)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, c)
}

func (h *CampaignHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentReference string `json:"payment_reference"`
		Amount           int64  `json:"amount"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	if err := h.campaigns.TopUp(r.Context(), chi.URLParam(r, "id"), req.PaymentReference, req.Amount); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type deleteCampaignReq struct {
	Disposition      string `json:"disposition"` // recycle | transfer | refund
	TargetCampaignID string `json:"target_campaign_id,omitempty"`
}

func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteCampaignReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	var disp models.Disposition
	switch models.DispositionKind(req.Disposition) {
	case models.DispositionRecycle:
		disp = models.Recycle()
	case models.DispositionTransfer:
		disp = models.TransferTo(req.TargetCampaignID)
	case models.DispositionRefund:
		disp = models.Refund()
	}
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id"), disp); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, c)
}

func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	cs, err := h.campaigns.List(r.Context(), limit, offset)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cs)
}
