package engine

import (
	"context"
	"fmt"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/permission"
	"github.com/bcnelson/env-manager/internal/validation"
)

// VariableWriter writes single variables into the live environment.
type VariableWriter interface {
	Upsert(ctx context.Context, v domain.EnvironmentVariable) error
	Delete(ctx context.Context, name string, scope domain.Scope) error
}

// Replace writes updated in place of old.
//
// When name and scope are unchanged this is a single upsert. Otherwise it is
// two steps, delete old then write updated, because the store has no rename.
// The steps are not atomic: when the delete succeeds and the write fails,
// Replace returns a *domain.RenameError and the old variable stays deleted.
func Replace(ctx context.Context, gate permission.Gate, store VariableWriter, old, updated domain.EnvironmentVariable) error {
	if err := validation.ValidateVariable(updated); err != nil {
		return err
	}
	if err := gate.Check(updated); err != nil {
		return err
	}
	if old.Key() == updated.Key() {
		return store.Upsert(ctx, updated)
	}
	if err := gate.Check(old); err != nil {
		return err
	}

	if err := store.Delete(ctx, old.Name, old.Scope); err != nil {
		return fmt.Errorf("deleting %s (%s): %w", old.Name, old.Scope, err)
	}
	if err := store.Upsert(ctx, updated); err != nil {
		return &domain.RenameError{Deleted: old, Err: err}
	}
	return nil
}
