// Package repository defines the persistence interfaces for users,
// organisations, memberships and audit logs, with GORM and in-memory
// implementations.
package repository

import (
	"context"
	"errors"

	"org_membership/internal/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type OrganisationRepository interface {
	Create(ctx context.Context, o *models.Organisation) error
	GetByID(ctx context.Context, orgID string) (*models.Organisation, error)
	// ListForUser returns the organisations userID belongs to, in the
	// order the memberships were created.
	ListForUser(ctx context.Context, userID string) ([]models.Organisation, error)
	// AddMember is idempotent: adding an existing member succeeds.
	AddMember(ctx context.Context, orgID, userID string) error
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
	SharesOrganisation(ctx context.Context, userA, userB string) (bool, error)
}

type AuditRepository interface {
	Record(ctx context.Context, entry *models.AuditLog) error
	// ListForOrganisation returns up to limit entries newest first, starting
	// below afterID when afterID > 0.
	ListForOrganisation(ctx context.Context, orgID string, afterID int64, limit int) ([]models.AuditLog, error)
}

// Store groups the repositories so a unit of work can run in one
// transaction.
type Store interface {
	Users() UserRepository
	Organisations() OrganisationRepository
	AuditLogs() AuditRepository
	// Transaction runs fn against a Store bound to a single transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}
