// Package command answers chat commands of the form "/div<N> <name>" or
// "/div <N> <name>".
package command

import (
	"context"
	"errors"
	"strings"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

const prefix = "/div"

// Replies sent back to the chat.
const (
	ReplyUsage    = "usage: /div <1|2> <player name>"
	ReplyBadGame  = "game must be 1 or 2"
	ReplyNotFound = "player not found"
)

// ErrNotCommand means the text is not addressed to this handler.
var ErrNotCommand = errors.New("not a /div command")

// StatsGetter is the lookup the handler delegates to.
type StatsGetter interface {
	GetStats(ctx context.Context, game model.Game, name string) ([]model.Record, error)
}

// Command is a parsed request. Game is kept raw so it can be rejected
// with a reply rather than a parse error.
type Command struct {
	Game string
	Name string
}

// Parse splits text into a Command. It returns ErrNotCommand for any other
// text; missing arguments leave the fields empty.
func Parse(text string) (Command, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(strings.ToLower(fields[0]), prefix) {
		return Command{}, ErrNotCommand
	}
	// "/divide" and friends belong to someone else.
	if !digits(fields[0][len(prefix):]) {
		return Command{}, ErrNotCommand
	}

	var c Command
	rest := fields[1:]
	if suffix := fields[0][len(prefix):]; suffix != "" {
		c.Game = suffix
	} else if len(rest) > 0 {
		c.Game, rest = rest[0], rest[1:]
	}
	c.Name = strings.Join(rest, " ")
	return c, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Handler turns chat text into a reply.
type Handler struct {
	svc    StatsGetter
	logger logger.Logger
}

// New constructs a Handler.
func New(svc StatsGetter, l logger.Logger) *Handler {
	if l == nil {
		l = logger.Named("command")
	}
	return &Handler{svc: svc, logger: l}
}

// Handle answers one command. Lookup failures other than an unknown player
// are returned as errors.
func (h *Handler) Handle(ctx context.Context, text string) (string, error) {
	c, err := Parse(text)
	if err != nil {
		return "", err
	}
	if c.Game == "" || c.Name == "" {
		return ReplyUsage, nil
	}

	game, err := model.ParseGame(c.Game)
	if err != nil {
		return ReplyBadGame, nil
	}

	recs, err := h.svc.GetStats(ctx, game, c.Name)
	switch {
	case errors.Is(err, model.ErrRenewalExhausted), errors.Is(err, model.ErrUpstream):
		return "", err
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrNoResults):
		h.logger.Debug(ctx, "command found nothing", logger.String("name", c.Name), logger.Error(err))
		return ReplyNotFound, nil
	case err != nil:
		return "", err
	case len(recs) == 0:
		return ReplyNotFound, nil
	}
	return Format(recs), nil
}

// Format joins records with a blank line between them.
func Format(recs []model.Record) string {
	parts := make([]string, len(recs))
	for i, r := range recs {
		parts[i] = strings.TrimRight(r.String(), "\n")
	}
	return strings.Join(parts, "\n\n")
}
