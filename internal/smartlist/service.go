package smartlist

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/repository"
)

const (
	defaultPreviewLimit       = 100
	defaultRefreshConcurrency = 4
)

// SmartListInput is the editable part of a smart list.
type SmartListInput struct {
	Name        string                `json:"name" validate:"required,max=200"`
	Description string                `json:"description" validate:"max=2000"`
	EntityType  string                `json:"entity_type" validate:"required,oneof=contact company deal"`
	Filters     []domain.FilterClause `json:"filters" validate:"max=50"`
	IsPublic    bool                  `json:"is_public"`
}

// PreviewOptions controls ordering and size of a preview.
type PreviewOptions struct {
	Sort  domain.EntitySort
	Limit int
}

// PreviewResult holds the first Limit matches and the total match count.
type PreviewResult struct {
	Entities  []domain.Entity `json:"entities"`
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated"`
}

// RefreshResult is the outcome of recomputing one list's count.
type RefreshResult struct {
	ListID      uuid.UUID `json:"list_id"`
	Count       int64     `json:"count"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// RefreshFailure records a list that could not be refreshed during RefreshAll.
type RefreshFailure struct {
	ListID uuid.UUID `json:"list_id"`
	Err    error     `json:"-"`
}

// RefreshAllResult splits a bulk refresh into refreshed and failed lists.
type RefreshAllResult struct {
	Refreshed []RefreshResult  `json:"refreshed"`
	Failed    []RefreshFailure `json:"failed"`
}

// Service implements smart list persistence, preview and refresh.
type Service struct {
	catalog      Catalog
	lists        repository.SmartListRepository
	entities     repository.EntityRepository
	logger       *zap.Logger
	validate     *validator.Validate
	now          func() time.Time
	previewLimit int
	indexScope   bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPreviewLimit sets the default number of entities a preview returns.
func WithPreviewLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.previewLimit = limit
		}
	}
}

// WithIndexScope toggles index-scoped fetches. Results are the same either
// way; disabling it forces a full scan.
func WithIndexScope(enabled bool) Option {
	return func(s *Service) {
		s.indexScope = enabled
	}
}

// NewService creates a smart list service
func NewService(
	catalog Catalog,
	lists repository.SmartListRepository,
	entities repository.EntityRepository,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		catalog:      catalog,
		lists:        lists,
		entities:     entities,
		logger:       logger.Named("smartlist"),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		now:          time.Now,
		previewLimit: defaultPreviewLimit,
		indexScope:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns the lists of entityType visible to viewer.
func (s *Service) List(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, viewer string) ([]domain.SmartList, error) {
	if entityType != "" && !entityType.IsValid() {
		return nil, ValidationErrors{{Index: -1, Kind: KindUnknownEntityType, Reason: fmt.Sprintf("entity type %q is not supported", entityType)}}
	}
	lists, err := s.lists.List(ctx, organizationID, entityType, viewer)
	if err != nil {
		return nil, fmt.Errorf("failed to list smart lists: %w", err)
	}
	return lists, nil
}

// Get returns one list.
func (s *Service) Get(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, error) {
	list, err := s.lists.GetByID(ctx, organizationID, id)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to get smart list: %w", err)
	}
	return list, nil
}

// Create validates input and persists a new list owned by viewer.
func (s *Service) Create(ctx context.Context, organizationID uuid.UUID, viewer string, input SmartListInput) (domain.SmartList, error) {
	entityType, filters, err := s.checkInput(input)
	if err != nil {
		return domain.SmartList{}, err
	}

	now := s.now().UTC()
	list := domain.NewSmartList(organizationID, strings.TrimSpace(input.Name), entityType, filters, input.IsPublic, viewer).
		WithDescription(input.Description)
	list.CreatedAt = now
	list.UpdatedAt = now

	created, err := s.lists.Create(ctx, list)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to create smart list: %w", err)
	}

	s.logger.Info("smart list created",
		zap.Stringer("organization_id", organizationID),
		zap.Stringer("list_id", created.ID),
		zap.String("entity_type", string(created.EntityType)),
		zap.Int("clauses", len(created.Filters)),
	)
	return created, nil
}

// Update validates input and replaces the list definition. The cached count
// is cleared when the entity type or filters change.
func (s *Service) Update(ctx context.Context, organizationID uuid.UUID, id uuid.UUID, input SmartListInput) (domain.SmartList, error) {
	entityType, filters, err := s.checkInput(input)
	if err != nil {
		return domain.SmartList{}, err
	}

	existing, err := s.lists.GetByID(ctx, organizationID, id)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to get smart list: %w", err)
	}

	next := existing.
		WithDefinition(strings.TrimSpace(input.Name), entityType, filters, input.IsPublic).
		WithDescription(input.Description)
	next.UpdatedAt = s.now().UTC()

	updated, err := s.lists.Update(ctx, next)
	if err != nil {
		return domain.SmartList{}, fmt.Errorf("failed to update smart list: %w", err)
	}

	s.logger.Info("smart list updated",
		zap.Stringer("organization_id", organizationID),
		zap.Stringer("list_id", id),
		zap.Bool("cache_cleared", existing.CachedCount != nil && updated.CachedCount == nil),
	)
	return updated, nil
}

// Delete removes a list.
func (s *Service) Delete(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) error {
	if err := s.lists.Delete(ctx, organizationID, id); err != nil {
		return fmt.Errorf("failed to delete smart list: %w", err)
	}
	s.logger.Info("smart list deleted", zap.Stringer("organization_id", organizationID), zap.Stringer("list_id", id))
	return nil
}

// Preview evaluates unsaved filters and returns the matching entities.
func (s *Service) Preview(
	ctx context.Context,
	organizationID uuid.UUID,
	entityType domain.EntityType,
	filters []domain.FilterClause,
	opts PreviewOptions,
) (PreviewResult, error) {
	start := s.now()

	normalized, err := domain.NormalizeFilters(filters)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("failed to normalize filters: %w", err)
	}
	if errs := Validate(s.catalog, entityType, normalized); len(errs) > 0 {
		recordValidationFailures(errs)
		return PreviewResult{}, errs
	}

	var sortField domain.FieldDefinition
	if opts.Sort.Field == domain.EntitySortFieldProperty {
		field, ok := s.catalog.Field(entityType, opts.Sort.PropertyKey)
		if !ok {
			return PreviewResult{}, ValidationErrors{{
				Index:  -1,
				Field:  opts.Sort.PropertyKey,
				Kind:   KindUnknownField,
				Reason: fmt.Sprintf("cannot sort by undeclared field %q", opts.Sort.PropertyKey),
			}}
		}
		sortField = field
	}

	plan, err := Compile(s.catalog, entityType, normalized)
	if err != nil {
		return PreviewResult{}, err
	}

	candidates, err := s.fetch(ctx, organizationID, plan)
	if err != nil {
		return PreviewResult{}, err
	}

	matched, err := plan.Filter(candidates)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("failed to evaluate filters: %w", err)
	}

	sortEntities(matched, opts.Sort, sortField)

	limit := opts.Limit
	if limit <= 0 {
		limit = s.previewLimit
	}
	result := PreviewResult{Entities: matched, Total: len(matched)}
	if len(matched) > limit {
		result.Entities = matched[:limit]
		result.Truncated = true
	}

	scope := "full"
	if s.indexScope && plan.IndexFilter != nil {
		scope = "index"
	}
	previewDuration.WithLabelValues(string(entityType), scope).Observe(s.now().Sub(start).Seconds())
	matchedEntities.WithLabelValues(string(entityType)).Observe(float64(result.Total))

	s.logger.Debug("smart list preview",
		zap.Stringer("organization_id", organizationID),
		zap.String("entity_type", string(entityType)),
		zap.String("scope", scope),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", result.Total),
	)
	return result, nil
}

// Refresh recomputes a list's count over the current entity set and stores
// it. Concurrent refreshes of one list overwrite each other.
func (s *Service) Refresh(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (RefreshResult, error) {
	start := s.now()

	list, err := s.lists.GetByID(ctx, organizationID, id)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to get smart list: %w", err)
	}

	result, err := s.refreshList(ctx, list)
	outcome := resultOK
	switch {
	case errors.Is(err, ErrSchemaDrift):
		outcome = resultDrift
	case err != nil:
		outcome = resultError
	}
	refreshTotal.WithLabelValues(string(list.EntityType), outcome).Inc()
	refreshDuration.WithLabelValues(string(list.EntityType), outcome).Observe(s.now().Sub(start).Seconds())

	if err != nil {
		s.logger.Warn("smart list refresh failed",
			zap.Stringer("organization_id", organizationID),
			zap.Stringer("list_id", id),
			zap.Error(err),
		)
		return RefreshResult{}, err
	}
	return result, nil
}

// RefreshAll refreshes every list of entityType in the organization, or of
// every type when entityType is empty, with at most concurrency lists in
// flight. Lists whose filters no longer compile or
// whose entities hold mistyped values are reported in Failed; store errors
// abort the run.
func (s *Service) RefreshAll(ctx context.Context, organizationID uuid.UUID, entityType domain.EntityType, concurrency int) (RefreshAllResult, error) {
	if entityType != "" && !entityType.IsValid() {
		return RefreshAllResult{}, ValidationErrors{{Index: -1, Kind: KindUnknownEntityType, Reason: fmt.Sprintf("entity type %q is not supported", entityType)}}
	}
	if concurrency <= 0 {
		concurrency = defaultRefreshConcurrency
	}

	lists, err := s.lists.ListAll(ctx, organizationID, entityType)
	if err != nil {
		return RefreshAllResult{}, fmt.Errorf("failed to list smart lists: %w", err)
	}

	results := make([]RefreshResult, len(lists))
	failures := make([]error, len(lists))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range lists {
		g.Go(func() error {
			result, err := s.Refresh(gctx, organizationID, lists[i].ID)
			if err == nil {
				results[i] = result
				return nil
			}
			if isListFailure(err) {
				failures[i] = err
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return RefreshAllResult{}, fmt.Errorf("failed to refresh smart lists: %w", err)
	}

	out := RefreshAllResult{Refreshed: make([]RefreshResult, 0, len(lists)), Failed: make([]RefreshFailure, 0)}
	for i, list := range lists {
		if failures[i] != nil {
			out.Failed = append(out.Failed, RefreshFailure{ListID: list.ID, Err: failures[i]})
			continue
		}
		out.Refreshed = append(out.Refreshed, results[i])
	}

	s.logger.Info("smart lists refreshed",
		zap.Stringer("organization_id", organizationID),
		zap.String("entity_type", string(entityType)),
		zap.Int("refreshed", len(out.Refreshed)),
		zap.Int("failed", len(out.Failed)),
	)
	return out, nil
}

// Members returns every entity currently matching a saved list along with
// the list itself.
func (s *Service) Members(ctx context.Context, organizationID uuid.UUID, id uuid.UUID) (domain.SmartList, []domain.Entity, error) {
	list, err := s.lists.GetByID(ctx, organizationID, id)
	if err != nil {
		return domain.SmartList{}, nil, fmt.Errorf("failed to get smart list: %w", err)
	}

	plan, err := Compile(s.catalog, list.EntityType, list.Filters)
	if err != nil {
		return domain.SmartList{}, nil, err
	}
	candidates, err := s.fetch(ctx, organizationID, plan)
	if err != nil {
		return domain.SmartList{}, nil, err
	}
	matched, err := plan.Filter(candidates)
	if err != nil {
		return domain.SmartList{}, nil, fmt.Errorf("failed to evaluate filters: %w", err)
	}
	return list, matched, nil
}

func (s *Service) refreshList(ctx context.Context, list domain.SmartList) (RefreshResult, error) {
	plan, err := Compile(s.catalog, list.EntityType, list.Filters)
	if err != nil {
		return RefreshResult{}, err
	}

	candidates, err := s.fetch(ctx, list.OrganizationID, plan)
	if err != nil {
		return RefreshResult{}, err
	}

	count, err := plan.Count(candidates)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("failed to evaluate filters: %w", err)
	}

	refreshedAt := s.now().UTC()
	if err := s.lists.UpdateCachedCount(ctx, list.OrganizationID, list.ID, count, refreshedAt); err != nil {
		return RefreshResult{}, fmt.Errorf("failed to store cached count: %w", err)
	}
	matchedEntities.WithLabelValues(string(list.EntityType)).Observe(float64(count))

	s.logger.Info("smart list refreshed",
		zap.Stringer("organization_id", list.OrganizationID),
		zap.Stringer("list_id", list.ID),
		zap.Int64("count", count),
		zap.Int("candidates", len(candidates)),
	)
	return RefreshResult{ListID: list.ID, Count: count, RefreshedAt: refreshedAt}, nil
}

// fetch loads the candidate entities for a plan, narrowed by the plan's
// index filter when one exists.
func (s *Service) fetch(ctx context.Context, organizationID uuid.UUID, plan *Plan) ([]domain.Entity, error) {
	if s.indexScope && plan.IndexFilter != nil {
		entities, err := s.entities.FetchIndexed(ctx, organizationID, plan.EntityType(), *plan.IndexFilter)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entities: %w", err)
		}
		return entities, nil
	}
	entities, err := s.entities.FetchAll(ctx, organizationID, plan.EntityType())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entities: %w", err)
	}
	return entities, nil
}

// checkInput validates list attributes and filters, returning every problem
// in one ValidationErrors value.
func (s *Service) checkInput(input SmartListInput) (domain.EntityType, []domain.FilterClause, error) {
	var errs ValidationErrors

	input.Name = strings.TrimSpace(input.Name)
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return "", nil, fmt.Errorf("failed to validate smart list: %w", err)
		}
		for _, fe := range fieldErrs {
			kind := KindInvalidInput
			if fe.StructField() == "EntityType" && fe.Tag() == "oneof" {
				kind = KindUnknownEntityType
			}
			errs = append(errs, ValidationError{
				Index:  -1,
				Field:  inputFieldName(fe.StructField()),
				Kind:   kind,
				Reason: inputReason(fe),
			})
		}
	}

	filters, err := domain.NormalizeFilters(input.Filters)
	if err != nil {
		return "", nil, fmt.Errorf("failed to normalize filters: %w", err)
	}

	entityType := domain.EntityType(input.EntityType)
	if entityType.IsValid() {
		errs = append(errs, Validate(s.catalog, entityType, filters)...)
	}

	if len(errs) > 0 {
		recordValidationFailures(errs)
		return "", nil, errs
	}
	return entityType, filters, nil
}

func inputFieldName(structField string) string {
	switch structField {
	case "EntityType":
		return "entity_type"
	case "IsPublic":
		return "is_public"
	}
	return strings.ToLower(structField)
}

func inputReason(fe validator.FieldError) string {
	name := inputFieldName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "max":
		return fmt.Sprintf("%s must be at most %s long", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", name, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}

// isListFailure reports errors that concern a single list rather than the
// store.
func isListFailure(err error) bool {
	var compileErr *CompileError
	return errors.As(err, &compileErr) ||
		errors.Is(err, ErrValueTypeMismatch) ||
		errors.Is(err, repository.ErrNotFound)
}

// sortEntities orders preview results in place. A property sort compares
// values by the field's declared type. Values that do not fit that type come
// after every typed value, and empty values come last; both keep their fetch
// order regardless of direction.
func sortEntities(entities []domain.Entity, order domain.EntitySort, field domain.FieldDefinition) {
	if order.Field == "" {
		order = domain.DefaultEntitySort()
	}
	desc := order.Direction != domain.SortDirectionAsc

	if order.Field != domain.EntitySortFieldProperty {
		sort.SliceStable(entities, func(i, j int) bool {
			a, b := entities[i].CreatedAt, entities[j].CreatedAt
			if order.Field == domain.EntitySortFieldUpdatedAt {
				a, b = entities[i].UpdatedAt, entities[j].UpdatedAt
			}
			if desc {
				return a.After(b)
			}
			return a.Before(b)
		})
		return
	}

	ranks := make(map[uuid.UUID]int, len(entities))
	for _, e := range entities {
		ranks[e.ID] = sortRank(field, e)
	}
	sort.SliceStable(entities, func(i, j int) bool {
		ri, rj := ranks[entities[i].ID], ranks[entities[j].ID]
		if ri != rj {
			return ri < rj
		}
		if ri != rankTyped {
			return false
		}
		a, _ := entities[i].FieldValue(field.Name)
		b, _ := entities[j].FieldValue(field.Name)
		c, _ := compareTyped(field, a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

const (
	rankTyped = iota
	rankMistyped
	rankEmpty
)

func sortRank(field domain.FieldDefinition, e domain.Entity) int {
	value, present := e.FieldValue(field.Name)
	if isEmpty(value, present) {
		return rankEmpty
	}
	if _, ok := compareTyped(field, value, value); !ok {
		return rankMistyped
	}
	return rankTyped
}

// compareTyped compares two values of the field's declared type. It reports
// false when either value does not fit that type.
func compareTyped(field domain.FieldDefinition, a, b any) (int, bool) {
	switch field.Type {
	case domain.FieldTypeNumber:
		an, aok := asNumber(a)
		bn, bok := asNumber(b)
		if !aok || !bok {
			return 0, false
		}
		return cmp.Compare(an, bn), true
	case domain.FieldTypeDate:
		at, aok := asTime(a)
		bt, bok := asTime(b)
		if !aok || !bok {
			return 0, false
		}
		return at.Compare(bt), true
	case domain.FieldTypeBoolean:
		ab, aok := asBool(a)
		bb, bok := asBool(b)
		if !aok || !bok {
			return 0, false
		}
		switch {
		case ab == bb:
			return 0, true
		case !ab:
			return -1, true
		}
		return 1, true
	case domain.FieldTypeTags:
		at, aok := asStringList(a)
		bt, bok := asStringList(b)
		if !aok || !bok {
			return 0, false
		}
		return slices.Compare(at, bt), true
	default:
		as, aok := asString(a)
		bs, bok := asString(b)
		if !aok || !bok {
			return 0, false
		}
		if field.CaseInsensitive {
			as, bs = strings.ToLower(as), strings.ToLower(bs)
		}
		return strings.Compare(as, bs), true
	}
}
