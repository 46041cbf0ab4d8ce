package entityloader

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/repository"
)

type stubRepo struct {
	repository.EntityRepository

	mu       sync.Mutex
	entities []domain.Entity
	calls    int
	err      error
}

func (s *stubRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Entity, 0)
	for _, e := range s.entities {
		if slices.Contains(ids, e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestLoadManyBatchesAndScopes(t *testing.T) {
	org := uuid.New()
	mine := domain.NewEntity(org, domain.EntityTypeContact, map[string]any{"first_name": "Ada"})
	other := domain.NewEntity(uuid.New(), domain.EntityTypeContact, map[string]any{"first_name": "Eve"})
	repo := &stubRepo{entities: []domain.Entity{mine, other}}

	loader := NewEntityLoader(repo, org)
	entities, err := LoadMany(context.Background(), loader.Loader, []uuid.UUID{other.ID, mine.ID, uuid.New()})
	require.NoError(t, err)

	require.Len(t, entities, 1)
	assert.Equal(t, mine.ID, entities[0].ID)
	assert.Equal(t, 1, repo.calls)
}

func TestLoadManyPropagatesStoreErrors(t *testing.T) {
	storeErr := errors.New("connection refused")
	loader := NewEntityLoader(&stubRepo{err: storeErr}, uuid.New())

	_, err := LoadMany(context.Background(), loader.Loader, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, storeErr)
}
