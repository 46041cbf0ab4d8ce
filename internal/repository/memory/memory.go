// Package memory holds process-local repositories for development servers
// and handler tests. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/repository"
)

// EntityStore is an in-memory repository.EntityRepository.
type EntityStore struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]domain.Entity
}

// NewEntityStore creates an empty store.
func NewEntityStore() *EntityStore {
	return &EntityStore{entities: make(map[uuid.UUID]domain.Entity)}
}

var _ repository.EntityRepository = (*EntityStore)(nil)

func (s *EntityStore) Create(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return domain.Entity{}, fmt.Errorf("failed to create entity: id %s already exists", entity.ID)
	}
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *EntityStore) GetByID(_ context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[id]
	if !ok || entity.OrganizationID != organizationID {
		return domain.Entity{}, fmt.Errorf("failed to get entity: %w", repository.ErrNotFound)
	}
	return entity, nil
}

func (s *EntityStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		if entity, ok := s.entities[id]; ok {
			out = append(out, entity)
		}
	}
	return out, nil
}

func (s *EntityStore) Update(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entities[entity.ID]
	if !ok || existing.OrganizationID != entity.OrganizationID {
		return domain.Entity{}, fmt.Errorf("failed to update entity: %w", repository.ErrNotFound)
	}
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *EntityStore) Delete(_ context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.entities[id]
	if !ok || existing.OrganizationID != organizationID {
		return fmt.Errorf("failed to delete entity: %w", repository.ErrNotFound)
	}
	delete(s.entities, id)
	return nil
}

func (s *EntityStore) ListByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, order domain.EntitySort, limit int, offset int) ([]domain.Entity, int, error) {
	all, err := s.FetchAll(ctx, organizationID, entityType)
	if err != nil {
		return nil, 0, err
	}
	if order.Field == domain.EntitySortFieldUpdatedAt {
		sort.SliceStable(all, func(i, j int) bool {
			if order.Direction == domain.SortDirectionAsc {
				return all[i].UpdatedAt.Before(all[j].UpdatedAt)
			}
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		})
	} else if order.Direction == domain.SortDirectionAsc {
		slices.Reverse(all)
	}

	total := len(all)
	if limit <= 0 {
		limit = 50
	}
	offset = min(max(offset, 0), total)
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

// FetchAll returns entities newest first, as the SQL store does.
func (s *EntityStore) FetchAll(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error) {
	return s.collect(organizationID, entityType, func(domain.Entity) bool { return true }), nil
}

// FetchIndexed keeps the same rows as the SQL pre-filter: matches plus rows
// whose stored value has an unexpected JSON type.
func (s *EntityStore) FetchIndexed(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType, filter domain.IndexFilter) ([]domain.Entity, error) {
	if strings.TrimSpace(filter.Field) == "" || len(filter.Values) == 0 {
		return nil, fmt.Errorf("index filter requires a field and values")
	}
	return s.collect(organizationID, entityType, func(e domain.Entity) bool {
		value, ok := e.Properties[filter.Field]
		if !ok || value == nil {
			return false
		}
		switch filter.Kind {
		case domain.IndexFilterEquals:
			str, isString := value.(string)
			return !isString || slices.Contains(filter.Values, str)
		case domain.IndexFilterArrayContains:
			switch items := value.(type) {
			case []any:
				for _, item := range items {
					str, isString := item.(string)
					if !isString || str == filter.Values[0] {
						return true
					}
				}
				return false
			case []string:
				return slices.Contains(items, filter.Values[0])
			}
			return true
		}
		return true
	}), nil
}

func (s *EntityStore) CountByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) (int64, error) {
	all, err := s.FetchAll(ctx, organizationID, entityType)
	if err != nil {
		return 0, err
	}
	return int64(len(all)), nil
}

func (s *EntityStore) collect(organizationID uuid.UUID, entityType domain.EntityType, keep func(domain.Entity) bool) []domain.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entity, 0)
	for _, e := range s.entities {
		if e.OrganizationID == organizationID && e.EntityType == entityType && keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// SmartListStore is an in-memory repository.SmartListRepository.
type SmartListStore struct {
	mu    sync.RWMutex
	lists map[uuid.UUID]domain.SmartList
}

// NewSmartListStore creates an empty store.
func NewSmartListStore() *SmartListStore {
	return &SmartListStore{lists: make(map[uuid.UUID]domain.SmartList)}
}

var _ repository.SmartListRepository = (*SmartListStore)(nil)

func (s *SmartListStore) Create(_ context.Context, list domain.SmartList) (domain.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lists[list.ID]; exists {
		return domain.SmartList{}, fmt.Errorf("failed to create smart list: id %s already exists", list.ID)
	}
	s.lists[list.ID] = list
	return list, nil
}

func (s *SmartListStore) GetByID(_ context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return domain.SmartList{}, fmt.Errorf("failed to get smart list: %w", repository.ErrNotFound)
	}
	return list, nil
}

func (s *SmartListStore) List(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType, viewer string) ([]domain.SmartList, error) {
	return s.collect(func(l domain.SmartList) bool {
		return l.OrganizationID == organizationID &&
			(entityType == "" || l.EntityType == entityType) &&
			l.VisibleTo(viewer)
	}), nil
}

func (s *SmartListStore) ListAll(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.SmartList, error) {
	return s.collect(func(l domain.SmartList) bool {
		return l.OrganizationID == organizationID && (entityType == "" || l.EntityType == entityType)
	}), nil
}

func (s *SmartListStore) Update(_ context.Context, list domain.SmartList) (domain.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.lists[list.ID]
	if !ok || existing.OrganizationID != list.OrganizationID {
		return domain.SmartList{}, fmt.Errorf("failed to update smart list: %w", repository.ErrNotFound)
	}
	list.CreatedBy = existing.CreatedBy
	list.CreatedAt = existing.CreatedAt
	s.lists[list.ID] = list
	return list, nil
}

func (s *SmartListStore) Delete(_ context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return fmt.Errorf("failed to delete smart list: %w", repository.ErrNotFound)
	}
	delete(s.lists, id)
	return nil
}

func (s *SmartListStore) UpdateCachedCount(_ context.Context, organizationID uuid.UUID, id uuid.UUID, count int64, refreshedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return fmt.Errorf("failed to update cached count: %w", repository.ErrNotFound)
	}
	s.lists[id] = list.WithRefresh(count, refreshedAt)
	return nil
}

func (s *SmartListStore) collect(keep func(domain.SmartList) bool) []domain.SmartList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SmartList, 0)
	for _, l := range s.lists {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
