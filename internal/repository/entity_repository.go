package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/engcrm/internal/db"
	"github.com/rpattn/engcrm/internal/domain"
)

const entityColumns = "id, organization_id, entity_type, properties, created_at, updated_at"

// entityRepository implements EntityRepository interface
type entityRepository struct {
	db db.DBTX
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(exec db.DBTX) EntityRepository {
	return &entityRepository{db: exec}
}

// Create creates a new entity
func (r *entityRepository) Create(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := r.db.QueryRow(ctx,
		"INSERT INTO entities ("+entityColumns+") VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+entityColumns,
		entity.ID, entity.OrganizationID, string(entity.EntityType), propertiesJSON, entity.CreatedAt, entity.UpdatedAt,
	)
	created, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to create entity: %w", err)
	}
	return created, nil
}

// GetByID retrieves an entity by ID within an organization
func (r *entityRepository) GetByID(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.Entity, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE organization_id = $1 AND id = $2",
		organizationID, id,
	)
	entity, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", notFound(err))
	}
	return entity, nil
}

// GetByIDs retrieves multiple entities by their IDs.
func (r *entityRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	if len(ids) == 0 {
		return []domain.Entity{}, nil
	}

	rows, err := r.db.Query(ctx, "SELECT "+entityColumns+" FROM entities WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get entities by IDs: %w", err)
	}
	return collectEntities(rows)
}

// Update replaces an entity's properties
func (r *entityRepository) Update(ctx context.Context, entity domain.Entity) (domain.Entity, error) {
	propertiesJSON, err := entity.GetPropertiesAsJSONB()
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to marshal properties: %w", err)
	}

	row := r.db.QueryRow(ctx,
		"UPDATE entities SET properties = $3, updated_at = $4 WHERE organization_id = $1 AND id = $2 RETURNING "+entityColumns,
		entity.OrganizationID, entity.ID, propertiesJSON, entity.UpdatedAt,
	)
	updated, err := scanEntity(row)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to update entity: %w", notFound(err))
	}
	return updated, nil
}

// Delete deletes an entity
func (r *entityRepository) Delete(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM entities WHERE organization_id = $1 AND id = $2", organizationID, id)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete entity: %w", ErrNotFound)
	}
	return nil
}

// ListByType pages through entities of one type
func (r *entityRepository) ListByType(
	ctx context.Context,
	organizationID uuid.UUID,
	entityType domain.EntityType,
	sort domain.EntitySort,
	limit int,
	offset int,
) ([]domain.Entity, int, error) {
	builder := newSQLBuilder()
	orgIdx := builder.addArg(organizationID)
	typeIdx := builder.addArg(string(entityType))
	orderClause := buildOrderClause(sort, builder)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	limitIdx := builder.addArg(limit)
	offsetIdx := builder.addArg(offset)

	query := fmt.Sprintf("SELECT %s, COUNT(*) OVER() AS total_count FROM entities WHERE organization_id = %s AND entity_type = %s %s LIMIT %s OFFSET %s",
		entityColumns,
		builder.placeholder(orgIdx), builder.placeholder(typeIdx),
		orderClause,
		builder.placeholder(limitIdx), builder.placeholder(offsetIdx),
	)

	rows, err := r.db.Query(ctx, query, builder.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list entities by type: %w", err)
	}
	defer rows.Close()

	var (
		entities   = make([]domain.Entity, 0)
		totalCount int64
	)
	for rows.Next() {
		var rec entityRecord
		if err := rows.Scan(&rec.id, &rec.organizationID, &rec.entityType, &rec.properties, &rec.createdAt, &rec.updatedAt, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("failed to scan entity: %w", err)
		}
		entity, err := rec.toDomain()
		if err != nil {
			return nil, 0, err
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate entities: %w", err)
	}

	return entities, int(totalCount), nil
}

// FetchAll returns every entity of a type in an organization
func (r *entityRepository) FetchAll(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error) {
	rows, err := r.db.Query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE organization_id = $1 AND entity_type = $2 ORDER BY created_at DESC, id",
		organizationID, string(entityType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	return collectEntities(rows)
}

// FetchIndexed narrows the fetch with a jsonb index lookup
func (r *entityRepository) FetchIndexed(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, filter domain.IndexFilter) ([]domain.Entity, error) {
	builder := newSQLBuilder()
	orgIdx := builder.addArg(organizationID)
	typeIdx := builder.addArg(string(entityType))

	clause, err := indexFilterClause(filter, builder)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM entities WHERE organization_id = %s AND entity_type = %s AND %s ORDER BY created_at DESC, id",
		entityColumns, builder.placeholder(orgIdx), builder.placeholder(typeIdx), clause)

	rows, err := r.db.Query(ctx, query, builder.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch indexed entities: %w", err)
	}
	return collectEntities(rows)
}

// CountByType returns the count of entities of a specific type for an organization
func (r *entityRepository) CountByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM entities WHERE organization_id = $1 AND entity_type = $2",
		organizationID, string(entityType),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entity count by type: %w", err)
	}
	return count, nil
}

type entityRecord struct {
	id             uuid.UUID
	organizationID uuid.UUID
	entityType     string
	properties     []byte
	createdAt      time.Time
	updatedAt      time.Time
}

func (rec entityRecord) toDomain() (domain.Entity, error) {
	properties, err := domain.FromJSONBProperties(json.RawMessage(rec.properties))
	if err != nil {
		return domain.Entity{}, fmt.Errorf("failed to decode properties for entity %s: %w", rec.id, err)
	}

	return domain.Entity{
		ID:             rec.id,
		OrganizationID: rec.organizationID,
		EntityType:     domain.EntityType(rec.entityType),
		Properties:     properties,
		CreatedAt:      rec.createdAt,
		UpdatedAt:      rec.updatedAt,
	}, nil
}

func scanEntity(row pgx.Row) (domain.Entity, error) {
	var rec entityRecord
	if err := row.Scan(&rec.id, &rec.organizationID, &rec.entityType, &rec.properties, &rec.createdAt, &rec.updatedAt); err != nil {
		return domain.Entity{}, err
	}
	return rec.toDomain()
}

func collectEntities(rows pgx.Rows) ([]domain.Entity, error) {
	defer rows.Close()

	entities := make([]domain.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entities: %w", err)
	}
	return entities, nil
}

// notFound maps pgx.ErrNoRows onto ErrNotFound while keeping the original error.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
