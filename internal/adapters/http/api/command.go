package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/divtracker/internal/adapters/command"
	"github.com/okian/divtracker/pkg/logger"
)

const maxCommandBytes = 4 << 10

// CommandHandler answers chat command text posted by a bot bridge.
type CommandHandler struct {
	handler *command.Handler
	logger  logger.Logger
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(h *command.Handler, l logger.Logger) *CommandHandler {
	return &CommandHandler{handler: h, logger: l}
}

type commandRequest struct {
	Text string `json:"text"`
}

type commandResponse struct {
	Reply string `json:"reply"`
}

// HandleCommand handles POST /api/v1/command.
func (h *CommandHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxCommandBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}

	reply, err := h.handler.Handle(r.Context(), req.Text)
	switch {
	case errors.Is(err, command.ErrNotCommand):
		writeError(w, http.StatusBadRequest, "not_a_command", err)
		return
	case err != nil:
		h.logger.Warn(r.Context(), "command failed", logger.String("text", req.Text), logger.Error(err))
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Reply: reply})
}
