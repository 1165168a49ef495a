package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/divtracker/internal/domain/model"
)

// NamesHandler serves the recorded display names of a profile.
type NamesHandler struct {
	deps Dependencies
}

// NewNamesHandler creates a new names handler.
func NewNamesHandler(deps Dependencies) *NamesHandler {
	return &NamesHandler{deps: deps}
}

type namesResponse struct {
	ID      string             `json:"id"`
	History []model.NameRecord `json:"history"`
}

// HandleGetNames handles GET /api/v1/names/{id}.
func (h *NamesHandler) HandleGetNames(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	history, err := h.deps.NameHistory(r.Context(), id)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, namesResponse{ID: id, History: history})
}
