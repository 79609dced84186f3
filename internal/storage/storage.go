// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kaira-dev/kaira/internal/models"
)

// Sentinel errors returned by repositories. Handlers map these to the
// API error taxonomy.
var (
	// ErrDuplicate is returned when a uniqueness constraint is violated
	// (username or project name).
	ErrDuplicate = errors.New("duplicate value")

	// ErrNotFound is returned by write operations that matched no row.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a project write carries a
	// stale version number.
	ErrVersionConflict = errors.New("version conflict")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates a default admin if no users exist.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Profiles() ProfileRepository
	Projects() ProjectRepository
}

// UserRepository defines operations for the credential store.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// SetLoginState flips the logged-in flag. When loggedIn is true the
	// last-login timestamp is set to at. Returns ErrNotFound if the id
	// does not resolve.
	SetLoginState(ctx context.Context, id string, loggedIn bool, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Count(ctx context.Context) (int64, error)
}

// ProfileRepository defines operations for per-user profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Update(ctx context.Context, profile *models.Profile) error
}

// ProjectRepository defines operations for project records.
//
// Write operations that also append audit entries run as a single
// transaction: either the row update and every entry are persisted, or
// nothing is.
type ProjectRepository interface {
	// Create inserts the project together with its initial audit entry.
	// Returns ErrDuplicate if the name is taken.
	Create(ctx context.Context, project *models.Project, entry models.AuditEntry) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByName(ctx context.Context, name string) (*models.Project, error)
	// NameExists is advisory only: a Create immediately after can still
	// fail with ErrDuplicate.
	NameExists(ctx context.Context, name string) (bool, error)
	// ListByOwner returns the owner's projects ordered most recently
	// updated first, excluding soft-deleted ones unless includeDeleted.
	ListByOwner(ctx context.Context, ownerID string, includeDeleted bool) ([]*models.Project, error)
	// Update persists the project and appends the given audit entries.
	// The project's Version must be the version that was read; on success
	// it is incremented, on a stale version ErrVersionConflict is
	// returned and nothing is written.
	Update(ctx context.Context, project *models.Project, entries []models.AuditEntry) error
}
