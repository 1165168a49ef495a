package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/divtracker/internal/adapters/command"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

// StatsHandler answers statistics lookups.
type StatsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(deps Dependencies, l logger.Logger) *StatsHandler {
	return &StatsHandler{deps: deps, logger: l}
}

type recordView struct {
	ProfileID string       `json:"profile_id"`
	Stats     model.Record `json:"stats"`
}

type statsResponse struct {
	Game    string       `json:"game"`
	Name    string       `json:"name"`
	Records []recordView `json:"records"`
}

// HandleGetStats handles GET /api/v1/stats/{game}/{name}. The response is
// JSON unless format=text is given or only text/plain is accepted.
func (h *StatsHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	game, err := model.ParseGame(chi.URLParam(r, "game"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: missing name", ErrBadRequest))
		return
	}

	recs, err := h.deps.GetStats(r.Context(), game, name)
	if err != nil {
		h.logger.Debug(r.Context(), "stats lookup failed", logger.String("name", name), logger.Error(err))
		writeLookupError(w, err)
		return
	}

	if wantsText(r) {
		writeText(w, http.StatusOK, command.Format(recs))
		return
	}

	resp := statsResponse{Game: game.String(), Name: name, Records: make([]recordView, len(recs))}
	for i, rec := range recs {
		resp.Records[i] = recordView{ProfileID: rec.ProfileID(), Stats: rec}
	}
	writeJSON(w, http.StatusOK, resp)
}

func wantsText(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "text"
	}
	accept := r.Header.Get("Accept")
	return strings.HasPrefix(accept, "text/plain") && !strings.Contains(accept, "json")
}
