// Package api exposes the lookup service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/okian/divtracker/internal/adapters/command"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dependencies required by HTTP handlers.
type Dependencies interface {
	GetStats(ctx context.Context, game model.Game, name string) ([]model.Record, error)
	NameHistory(ctx context.Context, id string) ([]model.NameRecord, error)
	Ready(ctx context.Context) error
	Status() map[string]any
}

// Server wires HTTP routes for the lookup API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	commandHandler *CommandHandler
	namesHandler   *NamesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, l logger.Logger) *Server {
	if l == nil {
		l = logger.Named("api")
	}
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps, l),
		commandHandler: NewCommandHandler(command.New(deps, l), l),
		namesHandler:   NewNamesHandler(deps),
	}
}

// Router returns the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	r.Get("/status", MetricsMiddleware(s.healthHandler.HandleStatus, "status"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats/{game}/{name}", MetricsMiddleware(s.statsHandler.HandleGetStats, "stats"))
		r.Post("/command", MetricsMiddleware(s.commandHandler.HandleCommand, "command"))
		r.Get("/names/{id}", MetricsMiddleware(s.namesHandler.HandleGetNames, "names"))
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeLookupError maps service errors onto HTTP statuses.
func writeLookupError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// classify checks systemic failures first: a batch error may also carry
// ErrNoResults among its joined causes.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrRenewalExhausted):
		return http.StatusBadGateway, "session_unavailable"
	case errors.Is(err, model.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrNoProfileForGame), errors.Is(err, model.ErrNoResults):
		return http.StatusNotFound, "no_results"
	case errors.Is(err, model.ErrUnknownGame), errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
