package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/bcnelson/env-manager/internal/domain"
)

// GroupClient manages stored groups and their activation.
type GroupClient struct {
	c *Client
}

// List returns all groups.
func (g *GroupClient) List(ctx context.Context) ([]domain.Group, error) {
	var groups []domain.Group
	if err := g.c.do(ctx, http.MethodGet, "/api/envgroup", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Get returns one group by name.
func (g *GroupClient) Get(ctx context.Context, name string) (*domain.Group, error) {
	var group domain.Group
	if err := g.c.do(ctx, http.MethodGet, "/api/envgroup/"+url.PathEscape(name), nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

// Save creates or replaces a group and returns it as stored.
func (g *GroupClient) Save(ctx context.Context, group domain.Group) (*domain.Group, error) {
	var saved domain.Group
	if err := g.c.do(ctx, http.MethodPost, "/api/envgroup", group, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

// Delete removes a group.
func (g *GroupClient) Delete(ctx context.Context, name string) error {
	q := url.Values{}
	q.Set("name", name)
	return g.c.do(ctx, http.MethodDelete, "/api/envgroup?"+q.Encode(), nil, nil)
}

// Activate asks the server to switch to an item and record the attempt.
func (g *GroupClient) Activate(ctx context.Context, req domain.ActivationRequest) (*domain.ActivationResponse, error) {
	var resp domain.ActivationResponse
	if err := g.c.do(ctx, http.MethodPut, "/api/envgroupswitch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preview returns the changes an activation would make.
func (g *GroupClient) Preview(ctx context.Context, req domain.ActivationRequest) (*domain.Plan, error) {
	var plan domain.Plan
	if err := g.c.do(ctx, http.MethodPost, "/api/envgroupswitch/preview", req, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// History lists recorded activations, newest first.
func (g *GroupClient) History(ctx context.Context, limit, offset int) ([]domain.Activation, error) {
	path := fmt.Sprintf("/api/activations?limit=%d&offset=%d", limit, offset)
	var history []domain.Activation
	if err := g.c.do(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}
