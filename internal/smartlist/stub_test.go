package smartlist

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
	"github.com/rpattn/engcrm/internal/repository"
)

var testOrg = uuid.MustParse("0f9a2c4e-8d1b-4c3a-9e57-2b6f1d0a7c11")

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return reg
}

func newContact(props map[string]any) domain.Entity {
	return domain.NewEntity(testOrg, domain.EntityTypeContact, props)
}

// stubEntityRepository keeps entities in memory. FetchIndexed mirrors the
// rows the SQL pre-filter keeps, including rows with unexpected JSON types.
type stubEntityRepository struct {
	mu           sync.Mutex
	entities     []domain.Entity
	fullFetches  int
	indexFetches int
	fetchErr     error
}

func (s *stubEntityRepository) add(entities ...domain.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, entities...)
}

func (s *stubEntityRepository) Create(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.add(entity)
	return entity, nil
}

func (s *stubEntityRepository) GetByID(_ context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		if e.OrganizationID == organizationID && e.ID == id {
			return e, nil
		}
	}
	return domain.Entity{}, fmt.Errorf("entity %s: %w", id, repository.ErrNotFound)
}

func (s *stubEntityRepository) GetByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Entity, 0)
	for _, e := range s.entities {
		if slices.Contains(ids, e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *stubEntityRepository) Update(_ context.Context, entity domain.Entity) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entities {
		if e.ID == entity.ID {
			s.entities[i] = entity
			return entity, nil
		}
	}
	return domain.Entity{}, repository.ErrNotFound
}

func (s *stubEntityRepository) Delete(_ context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entities {
		if e.OrganizationID == organizationID && e.ID == id {
			s.entities = append(s.entities[:i], s.entities[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *stubEntityRepository) ListByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, _ domain.EntitySort, limit int, offset int) ([]domain.Entity, int, error) {
	all, err := s.FetchAll(ctx, organizationID, entityType)
	if err != nil {
		return nil, 0, err
	}
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *stubEntityRepository) FetchAll(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	s.fullFetches++
	return s.matching(organizationID, entityType, func(domain.Entity) bool { return true }), nil
}

func (s *stubEntityRepository) FetchIndexed(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType, filter domain.IndexFilter) ([]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	s.indexFetches++
	return s.matching(organizationID, entityType, func(e domain.Entity) bool {
		value, ok := e.Properties[filter.Field]
		if !ok || value == nil {
			return false
		}
		switch filter.Kind {
		case domain.IndexFilterEquals:
			str, isString := value.(string)
			return !isString || slices.Contains(filter.Values, str)
		case domain.IndexFilterArrayContains:
			items, isList := value.([]any)
			if !isList {
				return true
			}
			for _, item := range items {
				str, isString := item.(string)
				if !isString || str == filter.Values[0] {
					return true
				}
			}
			return false
		}
		return true
	}), nil
}

func (s *stubEntityRepository) CountByType(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType) (int64, error) {
	all, err := s.FetchAll(ctx, organizationID, entityType)
	return int64(len(all)), err
}

func (s *stubEntityRepository) matching(organizationID uuid.UUID, entityType domain.EntityType, keep func(domain.Entity) bool) []domain.Entity {
	out := make([]domain.Entity, 0)
	for _, e := range s.entities {
		if e.OrganizationID == organizationID && e.EntityType == entityType && keep(e) {
			out = append(out, e)
		}
	}
	return out
}

type stubSmartListRepository struct {
	mu    sync.Mutex
	lists map[uuid.UUID]domain.SmartList
}

func newStubSmartListRepository(lists ...domain.SmartList) *stubSmartListRepository {
	repo := &stubSmartListRepository{lists: make(map[uuid.UUID]domain.SmartList)}
	for _, l := range lists {
		repo.lists[l.ID] = l
	}
	return repo
}

func (s *stubSmartListRepository) Create(_ context.Context, list domain.SmartList) (domain.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[list.ID] = list
	return list, nil
}

func (s *stubSmartListRepository) GetByID(_ context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return domain.SmartList{}, fmt.Errorf("smart list %s: %w", id, repository.ErrNotFound)
	}
	return list, nil
}

func (s *stubSmartListRepository) List(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType, viewer string) ([]domain.SmartList, error) {
	return s.filter(func(l domain.SmartList) bool {
		return l.OrganizationID == organizationID &&
			(entityType == "" || l.EntityType == entityType) &&
			l.VisibleTo(viewer)
	}), nil
}

func (s *stubSmartListRepository) ListAll(_ context.Context, organizationID uuid.UUID, entityType domain.EntityType) ([]domain.SmartList, error) {
	return s.filter(func(l domain.SmartList) bool {
		return l.OrganizationID == organizationID && (entityType == "" || l.EntityType == entityType)
	}), nil
}

func (s *stubSmartListRepository) Update(_ context.Context, list domain.SmartList) (domain.SmartList, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.lists[list.ID]
	if !ok || existing.OrganizationID != list.OrganizationID {
		return domain.SmartList{}, repository.ErrNotFound
	}
	s.lists[list.ID] = list
	return list, nil
}

func (s *stubSmartListRepository) Delete(_ context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return repository.ErrNotFound
	}
	delete(s.lists, id)
	return nil
}

func (s *stubSmartListRepository) UpdateCachedCount(_ context.Context, organizationID uuid.UUID, id uuid.UUID, count int64, refreshedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list, ok := s.lists[id]
	if !ok || list.OrganizationID != organizationID {
		return repository.ErrNotFound
	}
	s.lists[id] = list.WithRefresh(count, refreshedAt)
	return nil
}

func (s *stubSmartListRepository) filter(keep func(domain.SmartList) bool) []domain.SmartList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SmartList, 0)
	for _, l := range s.lists {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var (
	_ repository.EntityRepository    = (*stubEntityRepository)(nil)
	_ repository.SmartListRepository = (*stubSmartListRepository)(nil)
)
