package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/envstore"
	"github.com/bcnelson/env-manager/internal/merger"
	"github.com/bcnelson/env-manager/internal/metrics"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/storage"
	"github.com/bcnelson/env-manager/internal/validation"
)

// VariableService reads and writes the live environment and keeps the
// remarks of variables in storage.
type VariableService struct {
	backend envstore.Backend
	store   storage.Storage
	merger  *merger.Merger
	gate    permission.Gate
	logger  *slog.Logger
}

// NewVariableService creates a new VariableService. gate is the privilege
// of the server process, captured once at startup.
func NewVariableService(backend envstore.Backend, store storage.Storage, gate permission.Gate, logger *slog.Logger) *VariableService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VariableService{
		backend: backend,
		store:   store,
		merger:  merger.New(store),
		gate:    gate,
		logger:  logger,
	}
}

// Gate returns the permission gate writes are checked against.
func (s *VariableService) Gate() permission.Gate {
	return s.gate
}

// Live returns the live variables without remarks.
func (s *VariableService) Live(ctx context.Context) ([]domain.EnvironmentVariable, error) {
	vars, err := s.backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing environment: %w", err)
	}
	return vars, nil
}

// List returns every live variable with its remark, system scope first.
func (s *VariableService) List(ctx context.Context) ([]domain.EnvironmentVariable, error) {
	live, err := s.Live(ctx)
	if err != nil {
		return nil, err
	}
	vars, err := s.merger.Merge(ctx, live)
	if err != nil {
		return nil, fmt.Errorf("loading remarks: %w", err)
	}
	envstore.SortVariables(vars)
	return vars, nil
}

// Upsert creates or overwrites a live variable and stores its remark.
func (s *VariableService) Upsert(ctx context.Context, v domain.EnvironmentVariable) error {
	if err := validation.ValidateVariable(v); err != nil {
		return err
	}
	if err := s.gate.Check(v); err != nil {
		metrics.RecordVariableWrite(string(v.Scope), "set", "forbidden")
		return err
	}
	if err := s.set(ctx, v); err != nil {
		return err
	}
	if err := s.saveRemark(ctx, s.store, v); err != nil {
		// The variable itself was written.
		s.logger.Warn("saving remark failed", "name", v.Name, "scope", v.Scope, "error", err)
	}
	return nil
}

// Delete removes a live variable and its remark.
func (s *VariableService) Delete(ctx context.Context, name string, scope domain.Scope) error {
	if err := validation.ValidateScope(scope); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if name == "" {
		return fmt.Errorf("%w: variable name is required", domain.ErrInvalidInput)
	}
	if !s.gate.CanWrite(scope) {
		metrics.RecordVariableWrite(string(scope), "delete", "forbidden")
		return fmt.Errorf("deleting %s variable %s: %w", scope, name, domain.ErrForbidden)
	}

	if err := s.backend.Delete(ctx, scope, name); err != nil {
		metrics.RecordVariableWrite(string(scope), "delete", writeResult(err))
		return err
	}
	metrics.RecordVariableWrite(string(scope), "delete", "ok")
	s.logger.Info("variable deleted", "name", name, "scope", scope)

	if err := s.store.DeleteProperty(ctx, name, scope); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("deleting remark failed", "name", name, "scope", scope, "error", err)
	}
	return nil
}

// BatchApply writes vars into the live environment, system variables first.
//
// Every variable is validated and checked against the gate before the first
// write, so a rejected batch writes nothing. Writes stop at the first
// failure; the variables written up to that point are returned and carried
// by the *domain.ApplyError. Nothing is rolled back.
func (s *VariableService) BatchApply(ctx context.Context, vars []domain.EnvironmentVariable) (domain.AppliedSet, error) {
	var errs validation.ValidationErrors
	for i, v := range vars {
		if err := validation.ValidateVariable(v); err != nil {
			errs.Add(fmt.Sprintf("variables[%d]", i), v.Name, err.Error())
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}
	for _, v := range vars {
		if err := s.gate.Check(v); err != nil {
			metrics.RecordVariableWrite(string(v.Scope), "set", "forbidden")
			return nil, err
		}
	}

	ordered := make([]domain.EnvironmentVariable, len(vars))
	copy(ordered, vars)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Scope == domain.ScopeSystem && ordered[j].Scope != domain.ScopeSystem
	})

	// A started batch runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	applied := make(domain.AppliedSet, 0, len(ordered))
	var writeErr error
	for _, v := range ordered {
		if err := s.set(ctx, v); err != nil {
			writeErr = err
			break
		}
		applied = append(applied, domain.AppliedVariable{Name: v.Name, Scope: v.Scope, Value: v.Value})
	}

	s.saveRemarks(ctx, ordered[:len(applied)])

	if writeErr != nil {
		s.logger.Error("batch apply stopped", "written", len(applied), "total", len(ordered), "error", writeErr)
		return applied, &domain.ApplyError{Written: applied, Err: writeErr}
	}
	s.logger.Info("batch applied", "count", len(applied))
	return applied, nil
}

// PruneRemarks deletes stored remarks whose variable no longer exists.
func (s *VariableService) PruneRemarks(ctx context.Context) (int, error) {
	live, err := s.Live(ctx)
	if err != nil {
		return 0, err
	}
	orphans, err := s.merger.Orphans(ctx, live)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, p := range orphans {
		if err := s.store.DeleteProperty(ctx, p.Name, p.Scope); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return pruned, err
		}
		pruned++
	}
	if pruned > 0 {
		s.logger.Info("orphaned remarks pruned", "count", pruned)
	}
	return pruned, nil
}

func (s *VariableService) set(ctx context.Context, v domain.EnvironmentVariable) error {
	if err := s.backend.Set(ctx, v.Scope, v.Name, v.Value); err != nil {
		metrics.RecordVariableWrite(string(v.Scope), "set", writeResult(err))
		return err
	}
	metrics.RecordVariableWrite(string(v.Scope), "set", "ok")
	s.logger.Debug("variable written", "name", v.Name, "scope", v.Scope)
	return nil
}

// saveRemarks records the remarks of written variables in one transaction.
// Variables without a remark keep whatever remark is stored.
func (s *VariableService) saveRemarks(ctx context.Context, written []domain.EnvironmentVariable) {
	withRemark := written[:0:0]
	for _, v := range written {
		if v.Remark != "" {
			withRemark = append(withRemark, v)
		}
	}
	if len(withRemark) == 0 {
		return
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		s.logger.Warn("saving remarks failed", "error", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range withRemark {
		if err := s.saveRemark(ctx, tx, v); err != nil {
			s.logger.Warn("saving remarks failed", "name", v.Name, "scope", v.Scope, "error", err)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		s.logger.Warn("saving remarks failed", "error", err)
	}
}

func (s *VariableService) saveRemark(ctx context.Context, store storage.Storage, v domain.EnvironmentVariable) error {
	if v.Remark == "" {
		err := store.DeleteProperty(ctx, v.Name, v.Scope)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return store.SetProperty(ctx, &domain.Property{Name: v.Name, Scope: v.Scope, Remark: v.Remark})
}

func writeResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
