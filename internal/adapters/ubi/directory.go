package ubi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/okian/divtracker/internal/domain/model"
)

const profilesPath = "/v2/profiles"

// TicketSource hands out a valid session ticket.
type TicketSource interface {
	Ticket(ctx context.Context) (model.Ticket, error)
}

type profilesResponse struct {
	Profiles []struct {
		ProfileID      string `json:"profileId"`
		NameOnPlatform string `json:"nameOnPlatform"`
	} `json:"profiles"`
}

// Directory looks up profiles by display name or id.
type Directory struct {
	client  *Client
	tickets TicketSource
}

// NewDirectory constructs a Directory.
func NewDirectory(c *Client, tickets TicketSource) *Directory {
	return &Directory{client: c, tickets: tickets}
}

// ProfilesByName returns every profile currently using name.
func (d *Directory) ProfilesByName(ctx context.Context, name string) ([]model.ProfileRef, error) {
	q := url.Values{}
	q.Set("platformType", platformType)
	q.Set("nameOnPlatform", name)

	resp, err := d.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("profiles by name %q: %w", name, err)
	}

	out := make([]model.ProfileRef, 0, len(resp.Profiles))
	for _, p := range resp.Profiles {
		if p.ProfileID == "" {
			continue
		}
		out = append(out, model.ProfileRef{ID: p.ProfileID, Name: p.NameOnPlatform})
	}
	return out, nil
}

// ProfileByID returns the current display name of id.
func (d *Directory) ProfileByID(ctx context.Context, id string) (model.ProfileRef, error) {
	q := url.Values{}
	q.Set("platformType", platformType)
	q.Set("userId", id)

	resp, err := d.query(ctx, q)
	if err != nil {
		return model.ProfileRef{}, fmt.Errorf("profile by id %s: %w", id, err)
	}
	for _, p := range resp.Profiles {
		if p.NameOnPlatform != "" {
			return model.ProfileRef{ID: id, Name: p.NameOnPlatform}, nil
		}
	}
	return model.ProfileRef{}, fmt.Errorf("profile by id %s: %w", id, model.ErrNotFound)
}

func (d *Directory) query(ctx context.Context, q url.Values) (profilesResponse, error) {
	t, err := d.tickets.Ticket(ctx)
	if err != nil {
		return profilesResponse{}, err
	}
	var resp profilesResponse
	if err := d.client.do(ctx, http.MethodGet, profilesPath+"?"+q.Encode(), withTicket(t), &resp); err != nil {
		return profilesResponse{}, err
	}
	return resp, nil
}
