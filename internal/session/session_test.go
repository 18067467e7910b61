package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcnelson/env-manager/internal/api"
	"github.com/bcnelson/env-manager/internal/client"
	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/envstore"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/service"
	"github.com/bcnelson/env-manager/internal/session"
	"github.com/bcnelson/env-manager/internal/storage/memory"
)

var errDisk = errors.New("disk full")

// failingBackend refuses to set the named variables.
type failingBackend struct {
	envstore.Backend
	mu    sync.Mutex
	names map[string]bool
}

func (b *failingBackend) Set(ctx context.Context, scope domain.Scope, name, value string) error {
	b.mu.Lock()
	fail := b.names[name]
	b.mu.Unlock()
	if fail {
		return errDisk
	}
	return b.Backend.Set(ctx, scope, name, value)
}

func (b *failingBackend) fail(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names[name] = true
}

type harness struct {
	backend *failingBackend
	server  *httptest.Server
	client  *client.Client
	// While holding is set, group saves block until hold is closed.
	holding atomic.Bool
	hold    chan struct{}
	entered chan struct{}

	// requests counts calls that reached the server.
	requests atomic.Int32
}

func newHarness(t *testing.T, admin bool) *harness {
	t.Helper()
	h := &harness{
		backend: &failingBackend{
			Backend: envstore.NewFile(filepath.Join(t.TempDir(), "env.json"), nil),
			names:   map[string]bool{},
		},
		hold:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	store := memory.New()
	vars := service.NewVariableService(h.backend, store, permission.NewGate(admin), nil)
	switches := service.NewSwitchService(store, vars, nil)
	router := api.NewRouter(store, vars, switches, "", nil)

	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.requests.Add(1)
		if h.holding.Load() && r.Method == http.MethodPost && r.URL.Path == "/api/envgroup" {
			h.entered <- struct{}{}
			<-h.hold
		}
		router.ServeHTTP(w, r)
	}))
	t.Cleanup(h.server.Close)

	c, err := client.New(h.server.URL)
	require.NoError(t, err)
	h.client = c
	return h
}

func (h *harness) open(t *testing.T, opts session.Options) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), h.client, opts)
	require.NoError(t, err)
	return s
}

func devGroup() domain.Group {
	return domain.Group{
		Name: "dev",
		Items: []domain.GroupItem{
			{Name: "local", Variables: []domain.EnvironmentVariable{{Name: "API_URL", Value: "http://localhost", Scope: domain.ScopeUser}}},
			{Name: "prod", Selected: true, Variables: []domain.EnvironmentVariable{{Name: "API_URL", Value: "https://api.example.com", Scope: domain.ScopeSystem}}},
		},
	}
}

func liveValue(snap session.Snapshot, name string, scope domain.Scope) (string, bool) {
	for _, v := range snap.Variables {
		if v.Name == name && v.Scope == scope {
			return v.Value, true
		}
	}
	return "", false
}

func TestOpen_DetectsPrivilegeOnce(t *testing.T) {
	for _, admin := range []bool{false, true} {
		s := newHarness(t, admin).open(t, session.Options{})
		assert.Equal(t, admin, s.Gate().IsAdmin())
		assert.Equal(t, admin, s.Snapshot().IsAdmin)
		assert.True(t, s.Gate().CanWrite(domain.ScopeUser))
		assert.Equal(t, admin, s.Gate().CanWrite(domain.ScopeSystem))
	}
}

func TestSession_DevScenario(t *testing.T) {
	ctx := context.Background()
	s := newHarness(t, false).open(t, session.Options{})

	saved, err := s.SaveGroup(ctx, devGroup())
	require.NoError(t, err)
	assert.Len(t, saved.Items, 2)
	require.Len(t, s.Snapshot().Groups, 1)

	applied, err := s.Activate(ctx, "dev", "local")
	require.NoError(t, err)
	assert.Equal(t, domain.AppliedSet{{Name: "API_URL", Scope: domain.ScopeUser, Value: "http://localhost"}}, applied)

	val, ok := liveValue(s.Snapshot(), "API_URL", domain.ScopeUser)
	require.True(t, ok)
	assert.Equal(t, "http://localhost", val)

	_, err = s.Activate(ctx, "dev", "prod")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, ok = liveValue(s.Snapshot(), "API_URL", domain.ScopeSystem)
	assert.False(t, ok, "forbidden activation must not write")

	_, err = s.Activate(ctx, "dev", "staging")
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Len(t, s.Snapshot().Variables, 1)

	// Activation leaves the stored default alone.
	group, ok := s.Group("dev")
	require.True(t, ok)
	item, _ := group.DefaultItem()
	assert.Equal(t, "prod", item.Name)
}

func TestSession_ActivateDefaultItem(t *testing.T) {
	ctx := context.Background()
	s := newHarness(t, true).open(t, session.Options{})
	_, err := s.SaveGroup(ctx, devGroup())
	require.NoError(t, err)

	applied, err := s.Activate(ctx, "dev", "")
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, domain.ScopeSystem, applied[0].Scope)
}

func TestSession_ServerActivationIsRecorded(t *testing.T) {
	ctx := context.Background()
	s := newHarness(t, false).open(t, session.Options{ServerActivation: true})
	_, err := s.SaveGroup(ctx, devGroup())
	require.NoError(t, err)

	_, err = s.Activate(ctx, "dev", "local")
	require.NoError(t, err)
	_, err = s.Activate(ctx, "dev", "prod")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	history, err := s.History(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestSession_ActivateMidBatchFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	s := h.open(t, session.Options{})

	group := domain.Group{Name: "jdk", Items: []domain.GroupItem{{
		Name: "17",
		Variables: []domain.EnvironmentVariable{
			{Name: "JAVA_HOME", Value: "/opt/jdk17", Scope: domain.ScopeSystem},
			{Name: "JDK_OPTS", Value: "-Xmx1g", Scope: domain.ScopeUser},
		},
	}}}
	_, err := s.SaveGroup(ctx, group)
	require.NoError(t, err)

	h.backend.fail("JDK_OPTS")
	applied, err := s.Activate(ctx, "jdk", "17")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrApplyFailed)

	var applyErr *domain.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, domain.AppliedSet{{Name: "JAVA_HOME", Scope: domain.ScopeSystem, Value: "/opt/jdk17"}}, applied)

	// The refreshed view shows the partial state.
	val, ok := liveValue(s.Snapshot(), "JAVA_HOME", domain.ScopeSystem)
	require.True(t, ok)
	assert.Equal(t, "/opt/jdk17", val)
	_, ok = liveValue(s.Snapshot(), "JDK_OPTS", domain.ScopeUser)
	assert.False(t, ok)
}

func TestSession_SaveGroupValidatesLocally(t *testing.T) {
	s := newHarness(t, false).open(t, session.Options{})

	_, err := s.SaveGroup(context.Background(), domain.Group{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.SaveGroup(context.Background(), domain.Group{Name: "g", Items: []domain.GroupItem{
		{Name: "a", Variables: []domain.EnvironmentVariable{{Name: "X", Value: "1", Scope: "machine"}}},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, s.Snapshot().Groups)
}

func TestSession_DeleteGroup(t *testing.T) {
	ctx := context.Background()
	s := newHarness(t, false).open(t, session.Options{})
	_, err := s.SaveGroup(ctx, devGroup())
	require.NoError(t, err)

	require.NoError(t, s.DeleteGroup(ctx, "dev"))
	assert.Empty(t, s.Snapshot().Groups)
	assert.ErrorIs(t, s.DeleteGroup(ctx, "dev"), domain.ErrNotFound)
}

func TestSession_Variables(t *testing.T) {
	ctx := context.Background()
	s := newHarness(t, false).open(t, session.Options{})

	require.NoError(t, s.UpsertVariable(ctx, domain.EnvironmentVariable{Name: "EDITOR", Value: "vim", Scope: domain.ScopeUser}))
	require.Len(t, s.Snapshot().Variables, 1)

	err := s.UpsertVariable(ctx, domain.EnvironmentVariable{Name: "JAVA_HOME", Value: "/opt", Scope: domain.ScopeSystem})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, s.DeleteVariable(ctx, "PATH", domain.ScopeSystem), domain.ErrForbidden)

	old := domain.EnvironmentVariable{Name: "EDITOR", Value: "vim", Scope: domain.ScopeUser}
	require.NoError(t, s.ReplaceVariable(ctx, old, domain.EnvironmentVariable{Name: "VISUAL", Value: "code", Scope: domain.ScopeUser}))
	_, ok := liveValue(s.Snapshot(), "EDITOR", domain.ScopeUser)
	assert.False(t, ok)
	val, ok := liveValue(s.Snapshot(), "VISUAL", domain.ScopeUser)
	require.True(t, ok)
	assert.Equal(t, "code", val)

	require.NoError(t, s.DeleteVariable(ctx, "VISUAL", domain.ScopeUser))
	assert.Empty(t, s.Snapshot().Variables)
	assert.ErrorIs(t, s.DeleteVariable(ctx, "VISUAL", domain.ScopeUser), domain.ErrNotFound)
}

func TestSession_VariablesValidateLocally(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	s := h.open(t, session.Options{})
	before := h.requests.Load()

	for _, v := range []domain.EnvironmentVariable{
		{Name: "", Value: "1", Scope: domain.ScopeUser},
		{Name: "A=B", Value: "1", Scope: domain.ScopeUser},
		{Name: "A", Value: "1", Scope: "machine"},
	} {
		assert.ErrorIs(t, s.UpsertVariable(ctx, v), domain.ErrInvalidInput, "name %q scope %q", v.Name, v.Scope)
	}
	assert.ErrorIs(t, s.DeleteVariable(ctx, "", domain.ScopeUser), domain.ErrInvalidInput)
	assert.ErrorIs(t, s.DeleteVariable(ctx, "A", "machine"), domain.ErrInvalidInput)

	assert.Equal(t, before, h.requests.Load())
}

func TestSession_ReplacePartialFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	s := h.open(t, session.Options{})

	old := domain.EnvironmentVariable{Name: "GOPATH", Value: "/go", Scope: domain.ScopeUser}
	require.NoError(t, s.UpsertVariable(ctx, old))

	h.backend.fail("GOROOT")
	err := s.ReplaceVariable(ctx, old, domain.EnvironmentVariable{Name: "GOROOT", Value: "/go", Scope: domain.ScopeUser})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRenamePartial)

	var renameErr *domain.RenameError
	require.True(t, errors.As(err, &renameErr))
	assert.Equal(t, "GOPATH", renameErr.Deleted.Name)
	assert.Empty(t, s.Snapshot().Variables, "old variable stays deleted")
}

func TestSession_DropsRepeatedTrigger(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	s := h.open(t, session.Options{})

	h.holding.Store(true)

	done := make(chan error, 1)
	go func() {
		_, err := s.SaveGroup(ctx, devGroup())
		done <- err
	}()
	<-h.entered

	_, err := s.SaveGroup(ctx, devGroup())
	assert.ErrorIs(t, err, domain.ErrInFlight)

	// A different operation is not blocked.
	require.NoError(t, s.UpsertVariable(ctx, domain.EnvironmentVariable{Name: "A", Value: "1", Scope: domain.ScopeUser}))

	h.holding.Store(false)
	close(h.hold)
	require.NoError(t, <-done)
	assert.Len(t, s.Snapshot().Groups, 1)
}
