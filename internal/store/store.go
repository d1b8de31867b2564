// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/handoff-chat/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyAcknowledged is returned when acknowledging a handled escalation.
	ErrAlreadyAcknowledged = errors.New("escalation already acknowledged")
)

// EscalationFilter narrows ListEscalations.
type EscalationFilter struct {
	PendingOnly bool
	UserID      string
	Limit       int
}

// Repository defines the interface for persisting users and the escalation ledger.
// Conversations themselves are never persisted.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns nil, nil when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// DeleteIdleUsers removes users inactive for longer than idle.
	DeleteIdleUsers(ctx context.Context, idle time.Duration) (int64, error)

	// CreateEscalation appends an entry to the escalation ledger.
	CreateEscalation(ctx context.Context, e *domain.Escalation) error

	// GetEscalation retrieves a ledger entry by ID.
	GetEscalation(ctx context.Context, id string) (*domain.Escalation, error)

	// ListEscalations returns ledger entries, newest first.
	ListEscalations(ctx context.Context, filter EscalationFilter) ([]*domain.Escalation, error)

	// AcknowledgeEscalation marks an entry as handled by an operator.
	AcknowledgeEscalation(ctx context.Context, id string, at time.Time) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
