package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/engcrm/internal/domain"
)

// ErrNotFound is returned when a record does not exist in the caller's organization.
var ErrNotFound = errors.New("not found")

// EntityRepository defines the interface for CRM record operations
type EntityRepository interface {
	Create(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	GetByID(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.Entity, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error)
	Update(ctx context.Context, entity domain.Entity) (domain.Entity, error)
	Delete(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) error
	ListByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, sort domain.EntitySort, limit int, offset int) ([]domain.Entity, int, error)

	// FetchAll returns every entity of a type, the full scan used by smart lists.
	FetchAll(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error)
	// FetchIndexed returns a superset of the entities matching filter, narrowed
	// by an index on the property.
	FetchIndexed(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, filter domain.IndexFilter) ([]domain.Entity, error)

	CountByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) (int64, error)
}

// SmartListRepository defines persistence for smart list definitions
type SmartListRepository interface {
	Create(ctx context.Context, list domain.SmartList) (domain.SmartList, error)
	GetByID(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, error)
	// List returns lists of entityType visible to viewer. An empty entityType
	// lists every type.
	List(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, viewer string) ([]domain.SmartList, error)
	// ListAll returns every list of entityType regardless of visibility. An
	// empty entityType lists every type.
	ListAll(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.SmartList, error)
	Update(ctx context.Context, list domain.SmartList) (domain.SmartList, error)
	Delete(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) error
	UpdateCachedCount(ctx context.Context, organizationID uuid.UUID, id uuid.UUID, count int64, refreshedAt time.Time) error
}
