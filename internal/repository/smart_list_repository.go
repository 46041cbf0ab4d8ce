package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/engcrm/internal/db"
	"github.com/rpattn/engcrm/internal/domain"
)

const smartListColumns = "id, organization_id, name, description, entity_type, filters, is_public, created_by, cached_count, last_refreshed_at, created_at, updated_at"

type smartListRepository struct {
	db db.DBTX
}

// NewSmartListRepository creates a new smart list repository
func NewSmartListRepository(exec db.DBTX) SmartListRepository {
	return &smartListRepository{db: exec}
}

func (r *smartListRepository) Create(ctx context.Context, list domain.SmartList) (domain.SmartList, error) {
	filtersJSON, err := domain.FiltersToJSONB(list.Filters)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to marshal filters: %w", err)
	}

	row := r.db.QueryRow(ctx,
		"INSERT INTO smart_lists ("+smartListColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING "+smartListColumns,
		list.ID, list.OrganizationID, list.Name, list.Description, string(list.EntityType), filtersJSON,
		list.IsPublic, list.CreatedBy, list.CachedCount, list.LastRefreshedAt, list.CreatedAt, list.UpdatedAt,
	)
	created, err := scanSmartList(row)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to create smart list: %w", err)
	}
	return created, nil
}

func (r *smartListRepository) GetByID(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, error) {
	row := r.db.QueryRow(ctx,
		"SELECT "+smartListColumns+" FROM smart_lists WHERE organization_id = $1 AND id = $2",
		organizationID, id,
	)
	list, err := scanSmartList(row)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to get smart list: %w", notFound(err))
	}
	return list, nil
}

func (r *smartListRepository) List(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, viewer string) ([]domain.SmartList, error) {
	builder := newSQLBuilder()
	query := fmt.Sprintf("SELECT %s FROM smart_lists WHERE organization_id = %s AND (is_public OR (created_by <> '' AND created_by = %s))",
		smartListColumns,
		builder.placeholder(builder.addArg(organizationID)),
		builder.placeholder(builder.addArg(viewer)),
	)
	if entityType != "" {
		query += fmt.Sprintf(" AND entity_type = %s", builder.placeholder(builder.addArg(string(entityType))))
	}
	query += " ORDER BY name, id"

	return r.query(ctx, query, builder.args...)
}

func (r *smartListRepository) ListAll(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.SmartList, error) {
	builder := newSQLBuilder()
	query := fmt.Sprintf("SELECT %s FROM smart_lists WHERE organization_id = %s",
		smartListColumns,
		builder.placeholder(builder.addArg(organizationID)),
	)
	if entityType != "" {
		query += fmt.Sprintf(" AND entity_type = %s", builder.placeholder(builder.addArg(string(entityType))))
	}
	query += " ORDER BY name, id"

	return r.query(ctx, query, builder.args...)
}

func (r *smartListRepository) query(ctx context.Context, query string, args ...any) ([]domain.SmartList, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list smart lists: %w", err)
	}
	defer rows.Close()

	lists := make([]domain.SmartList, 0)
	for rows.Next() {
		list, err := scanSmartList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan smart list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate smart lists: %w", err)
	}
	return lists, nil
}

// Update writes the editable definition together with the cache columns, so
// a definition change that cleared the cache persists the cleared state.
func (r *smartListRepository) Update(ctx context.Context, list domain.SmartList) (domain.SmartList, error) {
	filtersJSON, err := domain.FiltersToJSONB(list.Filters)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to marshal filters: %w", err)
	}

	row := r.db.QueryRow(ctx,
		`UPDATE smart_lists
		SET name = $3, description = $4, entity_type = $5, filters = $6, is_public = $7,
			cached_count = $8, last_refreshed_at = $9, updated_at = $10
		WHERE organization_id = $1 AND id = $2
		RETURNING `+smartListColumns,
		list.OrganizationID, list.ID, list.Name, list.Description, string(list.EntityType), filtersJSON,
		list.IsPublic, list.CachedCount, list.LastRefreshedAt, list.UpdatedAt,
	)
	updated, err := scanSmartList(row)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to update smart list: %w", notFound(err))
	}
	return updated, nil
}

func (r *smartListRepository) Delete(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM smart_lists WHERE organization_id = $1 AND id = $2", organizationID, id)
	if err != nil {
		return fmt.Errorf("failed to delete smart list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete smart list: %w", ErrNotFound)
	}
	return nil
}

// UpdateCachedCount touches only the cache columns. Concurrent refreshes
// resolve as last write wins.
func (r *smartListRepository) UpdateCachedCount(ctx context.Context, organizationID uuid.UUID, id uuid.UUID, count int64, refreshedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE smart_lists SET cached_count = $3, last_refreshed_at = $4 WHERE organization_id = $1 AND id = $2",
		organizationID, id, count, refreshedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update cached count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update cached count: %w", ErrNotFound)
	}
	return nil
}

func scanSmartList(row pgx.Row) (domain.SmartList, error) {
	var (
		list        domain.SmartList
		entityType  string
		filtersJSON []byte
	)
	if err := row.Scan(
		&list.ID, &list.OrganizationID, &list.Name, &list.Description, &entityType, &filtersJSON,
		&list.IsPublic, &list.CreatedBy, &list.CachedCount, &list.LastRefreshedAt, &list.CreatedAt, &list.UpdatedAt,
	); err != nil {
		return domain.SmartList{}, err
	}

	filters, err := domain.FiltersFromJSONB(json.RawMessage(filtersJSON))
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to decode filters for smart list %s: %w", list.ID, err)
	}
	list.EntityType = domain.EntityType(entityType)
	list.Filters = filters
	return list, nil
}
