package handlers

import (
	"net/http"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/services"
)

// AdminHandler exposes the engines the scheduler normally drives, for
// operators who need an immediate pass.
type AdminHandler struct {
	matching *services.MatchingService
	settle   *services.SettlementService
}

func NewAdminHandler(matching *services.MatchingService, settle *services.SettlementService) *AdminHandler {
	return &AdminHandler{matching: matching, settle: settle}
}

func (h *AdminHandler) RunMatching(w http.ResponseWriter, r *http.Request) {
	results, err := h.matching.RunPass(r.Context())
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"matched": len(results), "results": results})
}

func (h *AdminHandler) RunSettlement(w http.ResponseWriter, r *http.Request) {
	if err := h.settle.SweepAll(r.Context()); err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
