package ubi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

const sessionsPath = "/v3/profiles/sessions"

type sessionResponse struct {
	Ticket     string `json:"ticket"`
	SessionID  string `json:"sessionId"`
	Expiration string `json:"expiration"`
}

// Authenticator logs in with account credentials. It satisfies
// session.Authenticator.
type Authenticator struct {
	client   *Client
	username string
	password string
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(c *Client, username, password string) *Authenticator {
	return &Authenticator{client: c, username: username, password: password}
}

// Login creates a new session and returns its ticket.
func (a *Authenticator) Login(ctx context.Context) (model.Ticket, error) {
	var resp sessionResponse
	err := a.client.do(ctx, http.MethodPost, sessionsPath, func(req *http.Request) {
		req.SetBasicAuth(a.username, a.password)
	}, &resp)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: %w", ErrLogin, err)
	}
	if resp.Ticket == "" {
		return model.Ticket{}, fmt.Errorf("%w: empty ticket", ErrLogin)
	}

	exp, err := time.Parse(time.RFC3339Nano, resp.Expiration)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: expiration %q: %w", ErrLogin, resp.Expiration, err)
	}

	a.client.logger.Debug(ctx, "session created",
		logger.String("session_id", resp.SessionID),
		logger.Time("expires_at", exp),
	)
	return model.Ticket{Ticket: resp.Ticket, SessionID: resp.SessionID, ExpiresAt: exp.UTC()}, nil
}
