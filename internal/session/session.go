// Package session holds the state of one interactive client session: the
// permission gate detected at start, the API clients, the in-flight guard and
// the last fetched view of variables and groups.
//
// Every mutation re-fetches the view afterwards, whatever its outcome, so a
// failed or partial write is never hidden behind stale state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bcnelson/env-manager/internal/client"
	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/engine"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/validation"
)

// Snapshot is the last fetched view of the environment.
type Snapshot struct {
	Variables []domain.EnvironmentVariable
	Groups    []domain.Group
	IsAdmin   bool
}

// Options configures a Session.
type Options struct {
	// ServerActivation routes activations through the server's switch
	// endpoint, which records them in the activation history. Otherwise the
	// engine runs here and writes through the batch endpoint.
	ServerActivation bool
	Logger           *slog.Logger
}

// Session is one client session. It is safe for concurrent use; concurrent
// triggers of the same mutation are dropped with domain.ErrInFlight.
type Session struct {
	gate   permission.Gate
	vars   *client.VariableClient
	groups *client.GroupClient
	guard  *engine.Guard
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// Open detects the privilege level once and fetches the initial view.
func Open(ctx context.Context, c *client.Client, opts Options) (*Session, error) {
	gate, err := permission.Detect(ctx, c)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		gate:   gate,
		vars:   c.Variables(),
		groups: c.Groups(),
		guard:  engine.NewGuard(),
		opts:   opts,
		logger: logger,
	}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Gate returns the permission gate captured when the session was opened.
func (s *Session) Gate() permission.Gate {
	return s.gate
}

// Snapshot returns the last fetched view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh re-fetches variables and groups concurrently.
func (s *Session) Refresh(ctx context.Context) (Snapshot, error) {
	var (
		vars   []domain.EnvironmentVariable
		groups []domain.Group
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vars, err = s.vars.List(gctx)
		if err != nil {
			return fmt.Errorf("listing variables: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		groups, err = s.groups.List(gctx)
		if err != nil {
			return fmt.Errorf("listing groups: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return s.Snapshot(), err
	}

	snap := Snapshot{Variables: vars, Groups: groups, IsAdmin: s.gate.IsAdmin()}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()
	return snap, nil
}

// Group returns a group from the last fetched view.
func (s *Session) Group(name string) (*domain.Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.snapshot.Groups {
		if s.snapshot.Groups[i].Name == name {
			return s.snapshot.Groups[i].Clone(), true
		}
	}
	return nil, false
}

// Activate makes the named item of a group the live environment. An empty
// itemName selects the group's default item.
func (s *Session) Activate(ctx context.Context, groupName, itemName string) (domain.AppliedSet, error) {
	var applied domain.AppliedSet
	err := s.mutate(ctx, engine.OpActivate, func() error {
		group, err := s.groups.Get(ctx, groupName)
		if err != nil {
			return err
		}
		if itemName == "" {
			item, ok := group.DefaultItem()
			if !ok {
				return fmt.Errorf("%w: group %q has no items", domain.ErrItemNotFound, groupName)
			}
			itemName = item.Name
		}

		if s.opts.ServerActivation {
			resp, err := s.groups.Activate(ctx, domain.ActivationRequest{GroupName: group.Name, ItemName: itemName})
			if err != nil {
				applied = writtenPrefix(err)
				return err
			}
			applied = resp.Applied
			return nil
		}

		applied, err = engine.Activate(ctx, s.gate, s.vars, group, itemName)
		return err
	})
	return applied, err
}

// Preview returns what activating an item would change.
func (s *Session) Preview(ctx context.Context, groupName, itemName string) (*domain.Plan, error) {
	return s.groups.Preview(ctx, domain.ActivationRequest{GroupName: groupName, ItemName: itemName})
}

// SaveGroup normalizes an edited group and stores it. Validation failures
// are reported before any request is made.
func (s *Session) SaveGroup(ctx context.Context, form domain.Group) (*domain.Group, error) {
	group, err := engine.CollectGroup(form)
	if err != nil {
		return nil, err
	}
	var saved *domain.Group
	err = s.mutate(ctx, engine.OpSaveGroup, func() error {
		var err error
		saved, err = s.groups.Save(ctx, *group)
		return err
	})
	return saved, err
}

// DeleteGroup removes a group.
func (s *Session) DeleteGroup(ctx context.Context, name string) error {
	return s.mutate(ctx, engine.OpDeleteGroup, func() error {
		return s.groups.Delete(ctx, name)
	})
}

// UpsertVariable writes a single variable.
func (s *Session) UpsertVariable(ctx context.Context, v domain.EnvironmentVariable) error {
	if err := validation.ValidateVariable(v); err != nil {
		return err
	}
	if err := s.gate.Check(v); err != nil {
		return err
	}
	return s.mutate(ctx, engine.OpUpsertVariable, func() error {
		return s.vars.Upsert(ctx, v)
	})
}

// ReplaceVariable writes updated in place of old, renaming or rescoping it
// when the keys differ.
func (s *Session) ReplaceVariable(ctx context.Context, old, updated domain.EnvironmentVariable) error {
	return s.mutate(ctx, engine.OpUpsertVariable, func() error {
		return engine.Replace(ctx, s.gate, s.vars, old, updated)
	})
}

// DeleteVariable removes a single variable.
func (s *Session) DeleteVariable(ctx context.Context, name string, scope domain.Scope) error {
	var errs validation.ValidationErrors
	if name == "" {
		errs.Add("name", name, "name is required")
	}
	if err := validation.ValidateScope(scope); err != nil {
		errs.Add("source", string(scope), err.Error())
	}
	if err := errs.Err(); err != nil {
		return err
	}
	if err := s.gate.Check(domain.EnvironmentVariable{Name: name, Scope: scope}); err != nil {
		return err
	}
	return s.mutate(ctx, engine.OpDeleteVariable, func() error {
		return s.vars.Delete(ctx, name, scope)
	})
}

// PruneRemarks drops remarks of variables that no longer exist.
func (s *Session) PruneRemarks(ctx context.Context) (int, error) {
	return s.vars.PruneRemarks(ctx)
}

// History lists recorded server-side activations.
func (s *Session) History(ctx context.Context, limit, offset int) ([]domain.Activation, error) {
	return s.groups.History(ctx, limit, offset)
}

// mutate runs fn under the guard for op and refreshes the view afterwards.
// A refresh failure is logged; the mutation's own result is returned.
func (s *Session) mutate(ctx context.Context, op string, fn func() error) error {
	err := s.guard.Do(op, fn)
	if errors.Is(err, domain.ErrInFlight) {
		s.logger.Debug("dropped repeated trigger", "op", op)
		return err
	}
	if _, rerr := s.Refresh(ctx); rerr != nil {
		s.logger.Warn("failed to refresh after mutation", "op", op, "error", rerr)
	}
	return err
}

func writtenPrefix(err error) domain.AppliedSet {
	var applyErr *domain.ApplyError
	if errors.As(err, &applyErr) {
		return applyErr.Written
	}
	return nil
}
