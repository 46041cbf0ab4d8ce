package entityloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/repository"
)

// EntityLoader batches entity lookups made while serving one request.
type EntityLoader struct {
	Loader *dataloader.Loader
}

// NewEntityLoader creates a loader scoped to one organization. Entities that
// belong to another organization load as missing.
func NewEntityLoader(repo repository.EntityRepository, organizationID uuid.UUID) *EntityLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		// Convert keys to []uuid.UUID, failing only the malformed keys
		ids := make([]uuid.UUID, 0, len(keys))
		parsed := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid UUID: %w", err)}
				continue
			}
			parsed[i] = id
			ids = append(ids, id)
		}

		entities, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				if results[i] == nil {
					results[i] = &dataloader.Result{Error: err}
				}
			}
			return results
		}

		entityMap := make(map[uuid.UUID]domain.Entity, len(entities))
		for _, e := range entities {
			if e.OrganizationID == organizationID {
				entityMap[e.ID] = e
			}
		}

		// Build results in the same order as keys
		for i, id := range parsed {
			if results[i] != nil {
				continue
			}
			if e, ok := entityMap[id]; ok {
				results[i] = &dataloader.Result{Data: e}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
	return &EntityLoader{Loader: loader}
}

// LoadMany resolves ids in order. Missing entities are omitted from the
// returned slice.
func LoadMany(ctx context.Context, loader *dataloader.Loader, ids []uuid.UUID) ([]domain.Entity, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	values, errs := loader.LoadMany(ctx, keys)()
	entities := make([]domain.Entity, 0, len(values))
	for i, value := range values {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if e, ok := value.(domain.Entity); ok {
			entities = append(entities, e)
		}
	}
	return entities, nil
}
