package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/screenfund/backend/internal/api/httpx"
	"github.com/screenfund/backend/internal/models"
	"github.com/screenfund/backend/internal/services"
)

type DirectoryHandler struct {
	dir *services.DirectoryService
}

func NewDirectoryHandler(dir *services.DirectoryService) *DirectoryHandler {
	return &DirectoryHandler{dir: dir}
}

func (h *DirectoryHandler) CreateCenter(w http.ResponseWriter, r *http.Request) {
	var c models.Center
	if err := httpx.DecodeJSON(r, &c); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	out, err := h.dir.CreateCenter(r.Context(), c)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (h *DirectoryHandler) ListCenters(w http.ResponseWriter, r *http.Request) {
	cs, err := h.dir.ListCenters(r.Context())
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cs)
}

func (h *DirectoryHandler) CreateScreeningType(w http.ResponseWriter, r *http.Request) {
	var st models.ScreeningType
	if err := httpx.DecodeJSON(r, &st); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	out, err := h.dir.CreateScreeningType(r.Context(), st)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (h *DirectoryHandler) ListScreeningTypes(w http.ResponseWriter, r *http.Request) {
	sts, err := h.dir.ListScreeningTypes(r.Context())
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sts)
}

func (h *DirectoryHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var p models.Patient
	if err := httpx.DecodeJSON(r, &p); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json", nil)
		return
	}
	out, err := h.dir.CreatePatient(r.Context(), p)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

func (h *DirectoryHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	p, err := h.dir.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}
