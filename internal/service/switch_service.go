package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcnelson/env-manager/internal/domain"
	"github.com/bcnelson/env-manager/internal/engine"
	"github.com/bcnelson/env-manager/internal/metrics"
	"github.com/bcnelson/env-manager/internal/storage"
)

// DefaultHistoryLimit is the page size of History when none is given.
const DefaultHistoryLimit = 50

// SwitchService activates stored group items and records every attempt.
type SwitchService struct {
	store  storage.Storage
	vars   *VariableService
	logger *slog.Logger
}

// NewSwitchService creates a new SwitchService.
func NewSwitchService(store storage.Storage, vars *VariableService, logger *slog.Logger) *SwitchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SwitchService{store: store, vars: vars, logger: logger}
}

// Activate writes the variables of the requested item into the live
// environment. The attempt is recorded as pending before anything is
// written and updated with its outcome afterwards.
func (s *SwitchService) Activate(ctx context.Context, req domain.ActivationRequest) (*domain.ActivationResponse, error) {
	req.GroupName = strings.TrimSpace(req.GroupName)
	if req.GroupName == "" {
		return nil, fmt.Errorf("%w: groupName is required", domain.ErrInvalidInput)
	}

	activation := &domain.Activation{
		ID:        uuid.New().String(),
		GroupName: req.GroupName,
		ItemName:  req.ItemName,
		Status:    domain.ActivationPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateActivation(ctx, activation); err != nil {
		return nil, fmt.Errorf("recording activation: %w", err)
	}

	// Once recorded, the attempt is carried through and its outcome stored
	// even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	applied, err := s.activate(ctx, req)

	now := time.Now().UTC()
	activation.Status = activationStatus(err)
	activation.AppliedCount = len(applied)
	activation.FinishedAt = &now
	if err != nil {
		activation.Error = err.Error()
	}
	if uerr := s.store.UpdateActivation(ctx, activation); uerr != nil {
		s.logger.Warn("failed to update activation record", "id", activation.ID, "error", uerr)
	}
	metrics.RecordActivation(activation.Status)

	if err != nil {
		s.logger.Warn("activation failed",
			"id", activation.ID, "group", req.GroupName, "item", req.ItemName,
			"status", activation.Status, "applied", len(applied), "error", err)
		return nil, err
	}

	s.logger.Info("activation succeeded",
		"id", activation.ID, "group", req.GroupName, "item", req.ItemName, "applied", len(applied))
	return &domain.ActivationResponse{ActivationID: activation.ID, Applied: applied}, nil
}

func (s *SwitchService) activate(ctx context.Context, req domain.ActivationRequest) (domain.AppliedSet, error) {
	group, err := s.store.GetGroup(ctx, req.GroupName)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("group %q: %w", req.GroupName, domain.ErrNotFound)
		}
		return nil, err
	}
	return engine.Activate(ctx, s.vars.Gate(), s.vars, group, req.ItemName)
}

// Preview returns what activating the requested item would change.
func (s *SwitchService) Preview(ctx context.Context, req domain.ActivationRequest) (*domain.Plan, error) {
	group, err := s.store.GetGroup(ctx, strings.TrimSpace(req.GroupName))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("group %q: %w", req.GroupName, domain.ErrNotFound)
		}
		return nil, err
	}
	live, err := s.vars.Live(ctx)
	if err != nil {
		return nil, err
	}
	return engine.Plan(s.vars.Gate(), group, req.ItemName, live)
}

// History lists recorded activations, newest first.
func (s *SwitchService) History(ctx context.Context, limit, offset int) ([]*domain.Activation, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListActivations(ctx, limit, offset)
}

func activationStatus(err error) string {
	switch {
	case err == nil:
		return domain.ActivationSuccess
	// An apply failure may wrap a forbidden cause; it is still a failed write.
	case errors.Is(err, domain.ErrApplyFailed):
		return domain.ActivationFailed
	case errors.Is(err, domain.ErrForbidden):
		return domain.ActivationForbidden
	case errors.Is(err, domain.ErrNotFound):
		return domain.ActivationNotFound
	default:
		return domain.ActivationFailed
	}
}
