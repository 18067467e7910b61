package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bcnelson/env-manager/internal/domain"
)

// VariableClient reads and writes live environment variables.
type VariableClient struct {
	c *Client
}

// List returns every live variable with its remark.
func (v *VariableClient) List(ctx context.Context) ([]domain.EnvironmentVariable, error) {
	var vars []domain.EnvironmentVariable
	if err := v.c.do(ctx, http.MethodGet, "/api/env", nil, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}

// Upsert creates or updates one variable. A system write from an
// unprivileged server fails with domain.ErrForbidden.
func (v *VariableClient) Upsert(ctx context.Context, ev domain.EnvironmentVariable) error {
	req := domain.UpsertVariableRequest{Name: ev.Name, Value: ev.Value, Scope: ev.Scope, Remark: ev.Remark}
	return v.c.do(ctx, http.MethodPost, "/api/env", req, nil)
}

// Delete removes one variable.
func (v *VariableClient) Delete(ctx context.Context, name string, scope domain.Scope) error {
	q := url.Values{}
	q.Set("name", name)
	q.Set("source", string(scope))
	return v.c.do(ctx, http.MethodDelete, "/api/env?"+q.Encode(), nil, nil)
}

// BatchApply writes vars in one request. On a partial failure it returns
// the written prefix together with a *domain.ApplyError.
func (v *VariableClient) BatchApply(ctx context.Context, vars []domain.EnvironmentVariable) (domain.AppliedSet, error) {
	var resp domain.BatchApplyResponse
	if err := v.c.do(ctx, http.MethodPost, "/api/env/batch", domain.BatchApplyRequest{Variables: vars}, &resp); err != nil {
		return writtenPrefix(err), err
	}
	return resp.Applied, nil
}

// PruneRemarks drops remarks of variables that no longer exist.
func (v *VariableClient) PruneRemarks(ctx context.Context) (int, error) {
	var resp domain.PruneResponse
	if err := v.c.do(ctx, http.MethodPost, "/api/env/prune", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Pruned, nil
}
