// Package engine switches group items into the live environment.
//
// The engine owns the rules of a switch: the item must exist, every variable
// must pass the permission gate before anything is written, and the item's
// variables go to the store as one batch. It keeps no state of its own; the
// group, the gate and the store are passed into every call.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/permission"
)

// BatchWriter writes a list of variables into the live environment.
// On failure it returns the prefix that was written along with the error.
type BatchWriter interface {
	BatchApply(ctx context.Context, vars []domain.EnvironmentVariable) (domain.AppliedSet, error)
}

// Activate makes the variables of the named item the live environment.
//
// The whole activation is rejected with domain.ErrForbidden, before any
// write, when one of the item's variables may not be written under gate.
// A store failure is returned as a *domain.ApplyError: some writes may have
// landed and the caller must re-read the environment. Activate never changes
// which item is marked as the group's default.
func Activate(ctx context.Context, gate permission.Gate, store BatchWriter, group *domain.Group, itemName string) (domain.AppliedSet, error) {
	item, err := resolve(group, itemName)
	if err != nil {
		return nil, err
	}

	for _, v := range item.Variables {
		if !v.Scope.Valid() {
			return nil, fmt.Errorf("%w: variable %s has unknown scope %q", domain.ErrInvalidInput, v.Name, v.Scope)
		}
		if err := gate.Check(v); err != nil {
			return nil, err
		}
	}

	if len(item.Variables) == 0 {
		return domain.AppliedSet{}, nil
	}

	batch := append([]domain.EnvironmentVariable(nil), item.Variables...)
	applied, err := store.BatchApply(ctx, batch)
	if err != nil {
		var applyErr *domain.ApplyError
		if errors.As(err, &applyErr) {
			return applyErr.Written, err
		}
		// A store that refuses or rejects the batch up front has written nothing.
		if (errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrInvalidInput)) && len(applied) == 0 {
			return nil, err
		}
		return applied, &domain.ApplyError{Written: applied, Err: err}
	}
	return applied, nil
}

// Plan previews what Activate would write, comparing the item against the
// current live variables. It writes nothing.
func Plan(gate permission.Gate, group *domain.Group, itemName string, live []domain.EnvironmentVariable) (*domain.Plan, error) {
	item, err := resolve(group, itemName)
	if err != nil {
		return nil, err
	}

	current := make(map[domain.VariableKey]string, len(live))
	for _, v := range live {
		current[v.Key()] = v.Value
	}

	plan := &domain.Plan{
		GroupName: group.Name,
		ItemName:  item.Name,
		Changes:   make([]domain.PlannedChange, 0, len(item.Variables)),
	}
	for _, v := range item.Variables {
		change := domain.PlannedChange{
			Name:    v.Name,
			Scope:   v.Scope,
			Value:   v.Value,
			Change:  domain.ChangeCreate,
			Allowed: gate.CanWrite(v.Scope),
		}
		if prev, ok := current[v.Key()]; ok {
			change.Previous = prev
			change.Change = domain.ChangeUpdate
			if prev == v.Value {
				change.Change = domain.ChangeUnchanged
			}
		}
		if !change.Allowed {
			plan.Forbidden = true
		}
		plan.Changes = append(plan.Changes, change)
	}
	return plan, nil
}

func resolve(group *domain.Group, itemName string) (*domain.GroupItem, error) {
	if group == nil {
		return nil, fmt.Errorf("group: %w", domain.ErrNotFound)
	}
	if itemName == "" {
		return nil, fmt.Errorf("%w: empty item name in group %q", domain.ErrItemNotFound, group.Name)
	}
	item, ok := group.FindItem(itemName)
	if !ok {
		return nil, fmt.Errorf("%w: %q in group %q", domain.ErrItemNotFound, itemName, group.Name)
	}
	return item, nil
}
