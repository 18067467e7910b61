package storage

import (
	"context"

	"github.com/bcnelson/env-manager/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Groups. SaveGroup creates the group or replaces it, items included.
	SaveGroup(ctx context.Context, group *domain.Group) error
	GetGroup(ctx context.Context, name string) (*domain.Group, error)
	ListGroups(ctx context.Context) ([]*domain.Group, error)
	DeleteGroup(ctx context.Context, name string) error

	// Properties hold the remarks of live variables.
	SetProperty(ctx context.Context, prop *domain.Property) error
	GetProperty(ctx context.Context, name string, scope domain.Scope) (*domain.Property, error)
	ListProperties(ctx context.Context) ([]*domain.Property, error)
	DeleteProperty(ctx context.Context, name string, scope domain.Scope) error

	// Activations
	CreateActivation(ctx context.Context, activation *domain.Activation) error
	GetActivation(ctx context.Context, id string) (*domain.Activation, error)
	ListActivations(ctx context.Context, limit, offset int) ([]*domain.Activation, error)
	UpdateActivation(ctx context.Context, activation *domain.Activation) error

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
