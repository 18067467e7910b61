package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/api"
	"github.com/bcnelson/env-manager/internal/client"
	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/envstore"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/service"
	"github.com/bcnelson/env-manager/internal/storage/memory"
)

func newServer(t *testing.T, admin bool, token string) *httptest.Server {
	t.Helper()
	store := memory.New()
	backend := envstore.NewFile(filepath.Join(t.TempDir(), "env.json"), nil)
	vars := service.NewVariableService(backend, store, permission.NewGate(admin), nil)
	switches := service.NewSwitchService(store, vars, nil)

	srv := httptest.NewServer(api.NewRouter(store, vars, switches, token, nil))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.New(url, opts...)
	require.NoError(t, err)
	return c
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"forbidden", http.StatusForbidden, `{"status":403,"code":"FORBIDDEN","message":"nope"}`, domain.ErrForbidden},
		{"not found", http.StatusNotFound, `{"status":404,"code":"RESOURCE_NOT_FOUND","message":"gone"}`, domain.ErrNotFound},
		{"bad request", http.StatusBadRequest, `{"status":400,"code":"VALIDATION_ERROR","message":"name: is required"}`, domain.ErrInvalidInput},
		{"unauthorized", http.StatusUnauthorized, `{"status":401,"code":"UNAUTHORIZED","message":"missing token"}`, domain.ErrUnauthorized},
		{"apply failed", http.StatusInternalServerError, `{"status":500,"code":"APPLY_FAILED","message":"boom","applied":[{"name":"A","source":"user","value":"1"}]}`, domain.ErrApplyFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := newClient(t, srv.URL).Variables().Upsert(context.Background(),
				domain.EnvironmentVariable{Name: "A", Value: "1", Scope: domain.ScopeUser})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_GenericFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Groups().List(context.Background())
	require.Error(t, err)

	var rerr *client.ResponseError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, http.StatusBadGateway, rerr.Status)
	assert.Equal(t, "upstream exploded", rerr.Message)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_BatchApplyReturnsWrittenPrefix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"code":"APPLY_FAILED","message":"disk full","applied":[{"name":"B","source":"system","value":"2"}]}`))
	}))
	defer srv.Close()

	applied, err := newClient(t, srv.URL).Variables().BatchApply(context.Background(), []domain.EnvironmentVariable{
		{Name: "B", Value: "2", Scope: domain.ScopeSystem},
		{Name: "A", Value: "1", Scope: domain.ScopeUser},
	})
	require.Error(t, err)

	var applyErr *domain.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, domain.AppliedSet{{Name: "B", Scope: domain.ScopeSystem, Value: "2"}}, applied)
	assert.Equal(t, applied, domain.AppliedSet(applyErr.Written))
}

func TestClient_SendsToken(t *testing.T) {
	srv := newServer(t, false, "secret")

	_, err := newClient(t, srv.URL).Variables().List(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	vars, err := newClient(t, srv.URL, client.WithToken("secret")).Variables().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vars)
}

func TestClient_AgainstServer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false, "")
	c := newClient(t, srv.URL)

	admin, err := c.IsAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, admin)

	// Variables
	vars := c.Variables()
	require.NoError(t, vars.Upsert(ctx, domain.EnvironmentVariable{Name: "EDITOR", Value: "vim", Scope: domain.ScopeUser, Remark: "terminal"}))
	err = vars.Upsert(ctx, domain.EnvironmentVariable{Name: "JAVA_HOME", Value: "/opt/jdk", Scope: domain.ScopeSystem})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	list, err := vars.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "terminal", list[0].Remark)

	assert.ErrorIs(t, vars.Delete(ctx, "MISSING", domain.ScopeUser), domain.ErrNotFound)
	require.NoError(t, vars.Delete(ctx, "EDITOR", domain.ScopeUser))

	// Groups
	groups := c.Groups()
	saved, err := groups.Save(ctx, domain.Group{Name: "dev", Items: []domain.GroupItem{
		{Name: "local", Variables: []domain.EnvironmentVariable{{Name: "API_URL", Value: "http://localhost", Scope: domain.ScopeUser}}},
		{Name: "prod", Selected: true, Variables: []domain.EnvironmentVariable{{Name: "API_URL", Value: "https://api.example.com", Scope: domain.ScopeSystem}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "dev", saved.Name)

	_, err = groups.Save(ctx, domain.Group{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	got, err := groups.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)

	_, err = groups.Get(ctx, "qa")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	resp, err := groups.Activate(ctx, domain.ActivationRequest{GroupName: "dev", ItemName: "local"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ActivationID)
	assert.Len(t, resp.Applied, 1)

	_, err = groups.Activate(ctx, domain.ActivationRequest{GroupName: "dev", ItemName: "prod"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	plan, err := groups.Preview(ctx, domain.ActivationRequest{GroupName: "dev", ItemName: "local"})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, domain.ChangeUnchanged, plan.Changes[0].Change)

	history, err := groups.History(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, groups.Delete(ctx, "dev"))
	assert.ErrorIs(t, groups.Delete(ctx, "dev"), domain.ErrNotFound)
}

func TestClient_GroupNamesNeedingEscape(t *testing.T) {
	ctx := context.Background()
	groups := newClient(t, newServer(t, false, "").URL).Groups()

	for _, name := range []string{"100%", "a%20b", "a b", "a/b", "50%/x"} {
		t.Run(name, func(t *testing.T) {
			_, err := groups.Save(ctx, domain.Group{Name: name, Items: []domain.GroupItem{
				{Name: "i", Variables: []domain.EnvironmentVariable{{Name: "A", Value: "1", Scope: domain.ScopeUser}}},
			}})
			require.NoError(t, err)

			got, err := groups.Get(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, name, got.Name)
		})
	}
}

// slowBackend delays every write.
type slowBackend struct {
	envstore.Backend
	delay time.Duration
	sets  atomic.Int32
}

func (b *slowBackend) Set(ctx context.Context, scope domain.Scope, name, value string) error {
	time.Sleep(b.delay)
	if err := b.Backend.Set(ctx, scope, name, value); err != nil {
		return err
	}
	b.sets.Add(1)
	return nil
}

func TestClient_TimedOutBatchStillCompletes(t *testing.T) {
	store := memory.New()
	backend := &slowBackend{
		Backend: envstore.NewFile(filepath.Join(t.TempDir(), "env.json"), nil),
		delay:   100 * time.Millisecond,
	}
	vars := service.NewVariableService(backend, store, permission.NewGate(false), nil)
	switches := service.NewSwitchService(store, vars, nil)
	srv := httptest.NewServer(api.NewRouter(store, vars, switches, "", nil))
	t.Cleanup(srv.Close)

	batch := []domain.EnvironmentVariable{
		{Name: "A", Value: "1", Scope: domain.ScopeUser},
		{Name: "B", Value: "2", Scope: domain.ScopeUser},
		{Name: "C", Value: "3", Scope: domain.ScopeUser},
		{Name: "D", Value: "4", Scope: domain.ScopeUser},
	}
	c := newClient(t, srv.URL, client.WithTimeout(50*time.Millisecond))
	_, err := c.Variables().BatchApply(context.Background(), batch)
	require.Error(t, err)

	// The server carries the batch through after the caller gave up.
	require.Eventually(t, func() bool { return backend.sets.Load() == 4 }, 5*time.Second, 20*time.Millisecond)

	live, err := newClient(t, srv.URL).Variables().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, live, 4)
}

func TestNew_NoTimeoutByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	vars, err := newClient(t, srv.URL).Variables().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, vars)

	_, err = newClient(t, srv.URL, client.WithTimeout(20*time.Millisecond)).Variables().List(context.Background())
	assert.Error(t, err)
}

func TestClient_PruneRemarks(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t, false, "")
	vars := newClient(t, srv.URL).Variables()

	n, err := vars.PruneRemarks(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNew_NormalizesBaseURL(t *testing.T) {
	srv := newServer(t, true, "")

	// Scheme-less address with a trailing slash.
	c := newClient(t, srv.Listener.Addr().String()+"/")
	admin, err := c.IsAdmin(context.Background())
	require.NoError(t, err)
	assert.True(t, admin)
}
