package ubi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/divtracker/internal/domain/model"
)

// DefaultSpaceID is the game 1 space on the services API.
const DefaultSpaceID = "6edd234a-abff-4e90-9aab-b9b9c6e49ff7"

type statscardResponse struct {
	Statscards []struct {
		StatName    string `json:"statName"`
		DisplayName string `json:"displayName"`
		Value       any    `json:"value"`
	} `json:"Statscards"`
}

// StatsSource fetches the positional game 1 statscard. It is keyed by
// profile id and never needs the display name.
type StatsSource struct {
	client  *Client
	tickets TicketSource
	spaceID string
}

// NewStatsSource constructs a StatsSource. An empty spaceID selects
// DefaultSpaceID.
func NewStatsSource(c *Client, tickets TicketSource, spaceID string) *StatsSource {
	if spaceID == "" {
		spaceID = DefaultSpaceID
	}
	return &StatsSource{client: c, tickets: tickets, spaceID: spaceID}
}

func (s *StatsSource) Game() model.Game { return model.Game1 }

func (s *StatsSource) NeedsName() bool { return false }

// Fetch returns the statscard entries in the order the API lists them. An
// error code in the answer becomes *model.UpstreamError.
func (s *StatsSource) Fetch(ctx context.Context, p model.ProfileRef) (model.StatsPayload, error) {
	t, err := s.tickets.Ticket(ctx)
	if err != nil {
		return model.StatsPayload{}, err
	}

	endpoint := fmt.Sprintf("/v1/profiles/%s/statscard?spaceId=%s", url.PathEscape(p.ID), url.QueryEscape(s.spaceID))
	var resp statscardResponse
	if err := s.client.do(ctx, http.MethodGet, endpoint, withTicket(t), &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code != "" {
			return model.StatsPayload{}, &model.UpstreamError{
				ProfileID: p.ID,
				Code:      apiErr.Code,
				Message:   apiErr.Message,
			}
		}
		return model.StatsPayload{}, fmt.Errorf("statscard %s: %w", p.ID, err)
	}

	stats := make([]model.RawStat, 0, len(resp.Statscards))
	for _, e := range resp.Statscards {
		key := e.StatName
		if key == "" {
			key = e.DisplayName
		}
		stats = append(stats, model.RawStat{Key: key, Value: scalar(e.Value)})
	}
	return model.StatsPayload{Profile: p, Stats: stats}, nil
}
