package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/domain"
)

func entityRow(e domain.Entity, properties string) []any {
	return []any{e.ID, e.OrganizationID, string(e.EntityType), []byte(properties), e.CreatedAt, e.UpdatedAt}
}

func TestEntityRepositoryFetchIndexedScopesQuery(t *testing.T) {
	org := uuid.New()
	ada := domain.NewEntity(org, domain.EntityTypeContact, nil)
	stub := &stubDB{rows: [][]any{entityRow(ada, `{"status":"lead","lead_score":42}`)}}
	repo := NewEntityRepository(stub)

	entities, err := repo.FetchIndexed(context.Background(), org, domain.EntityTypeContact, domain.IndexFilter{
		Field:  "status",
		Kind:   domain.IndexFilterEquals,
		Values: []string{"lead"},
	})
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, ada.ID, entities[0].ID)
	assert.Equal(t, map[string]any{"status": "lead", "lead_score": 42.0}, entities[0].Properties)

	call := stub.lastCall()
	assert.Contains(t, call.sql, "WHERE organization_id = $1 AND entity_type = $2 AND (properties ->> $3::text = ANY($4::text[])")
	assert.Equal(t, []any{org, "contact", "status", []string{"lead"}}, call.args)
}

func TestEntityRepositoryFetchAllOrdersNewestFirst(t *testing.T) {
	org := uuid.New()
	stub := &stubDB{}
	repo := NewEntityRepository(stub)

	entities, err := repo.FetchAll(context.Background(), org, domain.EntityTypeDeal)
	require.NoError(t, err)
	assert.Empty(t, entities)

	call := stub.lastCall()
	assert.Contains(t, call.sql, "ORDER BY created_at DESC, id")
	assert.Equal(t, []any{org, "deal"}, call.args)
}

func TestEntityRepositoryNotFoundMapping(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	stub := &stubDB{tag: "DELETE 0"}
	repo := NewEntityRepository(stub)

	assert.ErrorIs(t, repo.Delete(ctx, org, uuid.New()), ErrNotFound)

	_, err := repo.GetByID(ctx, org, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.Update(ctx, domain.NewEntity(org, domain.EntityTypeContact, nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntityRepositoryGetByIDsSkipsEmptyInput(t *testing.T) {
	stub := &stubDB{}
	repo := NewEntityRepository(stub)

	entities, err := repo.GetByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Empty(t, stub.calls)
}

func TestEntityRepositoryRejectsCorruptProperties(t *testing.T) {
	org := uuid.New()
	e := domain.NewEntity(org, domain.EntityTypeContact, nil)
	repo := NewEntityRepository(&stubDB{rows: [][]any{entityRow(e, `not json`)}})

	_, err := repo.FetchAll(context.Background(), org, domain.EntityTypeContact)
	assert.ErrorContains(t, err, "failed to decode properties")
}
