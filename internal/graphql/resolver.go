package graphql

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/engcrm/internal/auth"
	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
	"github.com/rpattn/engcrm/internal/repository"
	"github.com/rpattn/engcrm/internal/smartlist"
)

const maxPreviewLimit = 1000

// Resolver handles GraphQL queries and mutations
type Resolver struct {
	service            *smartlist.Service
	registry           *registry.Registry
	refreshConcurrency int
}

// NewResolver creates a new GraphQL resolver
func NewResolver(service *smartlist.Service, reg *registry.Registry, refreshConcurrency int) *Resolver {
	return &Resolver{
		service:            service,
		registry:           reg,
		refreshConcurrency: refreshConcurrency,
	}
}

// Query resolvers

// Fields returns the filterable fields of an entity type with their operators
func (r *Resolver) Fields(ctx context.Context, entityType string) ([]*FieldDefinition, error) {
	fields, err := r.registry.FieldsFor(domain.EntityType(entityType))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadInput, err)
	}

	result := make([]*FieldDefinition, len(fields))
	for i, field := range fields {
		result[i] = toGraphFieldDefinition(field)
	}
	return result, nil
}

// SmartLists returns the lists visible to the caller
func (r *Resolver) SmartLists(ctx context.Context, entityType *string) ([]*SmartList, error) {
	org, err := auth.RequireOrganization(ctx)
	if err != nil {
		return nil, err
	}

	var filter domain.EntityType
	if entityType != nil {
		filter = domain.EntityType(*entityType)
	}
	lists, err := r.service.List(ctx, org, filter, auth.UserIDFromContext(ctx))
	if err != nil {
		return nil, err
	}

	result := make([]*SmartList, len(lists))
	for i, list := range lists {
		result[i] = toGraphSmartList(list)
	}
	return result, nil
}

// SmartList returns one visible list
func (r *Resolver) SmartList(ctx context.Context, id string) (*SmartList, error) {
	org, listID, err := listScope(ctx, id)
	if err != nil {
		return nil, err
	}
	list, err := r.visibleList(ctx, org, listID)
	if err != nil {
		return nil, err
	}
	return toGraphSmartList(list), nil
}

// SmartListMembers returns every entity currently matching a saved list
func (r *Resolver) SmartListMembers(ctx context.Context, id string) ([]*Entity, error) {
	org, listID, err := listScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.visibleList(ctx, org, listID); err != nil {
		return nil, err
	}

	_, members, err := r.service.Members(ctx, org, listID)
	if err != nil {
		return nil, err
	}
	return toGraphEntities(members), nil
}

// PreviewSmartList evaluates unsaved filters
func (r *Resolver) PreviewSmartList(ctx context.Context, input PreviewInput) (*PreviewResult, error) {
	org, err := auth.RequireOrganization(ctx)
	if err != nil {
		return nil, err
	}

	var opts smartlist.PreviewOptions
	if input.Limit != nil {
		if *input.Limit < 0 || *input.Limit > maxPreviewLimit {
			return nil, fmt.Errorf("%w: limit must be between 0 and %d", errBadInput, maxPreviewLimit)
		}
		opts.Limit = *input.Limit
	}
	if input.Sort != nil {
		opts.Sort = domain.EntitySort{Field: domain.EntitySortField(input.Sort.Field)}
		if input.Sort.Direction != nil {
			opts.Sort.Direction = domain.SortDirection(*input.Sort.Direction)
		}
		if input.Sort.PropertyKey != nil {
			opts.Sort.PropertyKey = *input.Sort.PropertyKey
		}
	}

	result, err := r.service.Preview(ctx, org, domain.EntityType(input.EntityType), toDomainFilters(input.Filters), opts)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{
		Entities:  toGraphEntities(result.Entities),
		Total:     result.Total,
		Truncated: result.Truncated,
	}, nil
}

// Mutation resolvers

// CreateSmartList saves a new list owned by the caller
func (r *Resolver) CreateSmartList(ctx context.Context, input SmartListInput) (*SmartList, error) {
	org, err := auth.RequireOrganization(ctx)
	if err != nil {
		return nil, err
	}

	list, err := r.service.Create(ctx, org, auth.UserIDFromContext(ctx), toServiceInput(input))
	if err != nil {
		return nil, err
	}
	return toGraphSmartList(list), nil
}

// UpdateSmartList replaces a list definition
func (r *Resolver) UpdateSmartList(ctx context.Context, id string, input SmartListInput) (*SmartList, error) {
	org, listID, err := listScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.visibleList(ctx, org, listID); err != nil {
		return nil, err
	}

	list, err := r.service.Update(ctx, org, listID, toServiceInput(input))
	if err != nil {
		return nil, err
	}
	return toGraphSmartList(list), nil
}

// DeleteSmartList removes a list
func (r *Resolver) DeleteSmartList(ctx context.Context, id string) (bool, error) {
	org, listID, err := listScope(ctx, id)
	if err != nil {
		return false, err
	}
	if _, err := r.visibleList(ctx, org, listID); err != nil {
		return false, err
	}

	if err := r.service.Delete(ctx, org, listID); err != nil {
		return false, err
	}
	return true, nil
}

// RefreshSmartList recomputes and stores a list's cached count
func (r *Resolver) RefreshSmartList(ctx context.Context, id string) (*RefreshResult, error) {
	org, listID, err := listScope(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := r.visibleList(ctx, org, listID); err != nil {
		return nil, err
	}

	result, err := r.service.Refresh(ctx, org, listID)
	if err != nil {
		return nil, err
	}
	return toGraphRefreshResult(result), nil
}

// RefreshSmartLists refreshes every list of the organization, optionally of one type
func (r *Resolver) RefreshSmartLists(ctx context.Context, entityType *string) (*RefreshAllResult, error) {
	org, err := auth.RequireOrganization(ctx)
	if err != nil {
		return nil, err
	}

	var filter domain.EntityType
	if entityType != nil {
		filter = domain.EntityType(*entityType)
	}
	result, err := r.service.RefreshAll(ctx, org, filter, r.refreshConcurrency)
	if err != nil {
		return nil, err
	}

	out := &RefreshAllResult{
		Refreshed: make([]*RefreshResult, len(result.Refreshed)),
		Failed:    make([]*RefreshFailure, len(result.Failed)),
	}
	for i, refreshed := range result.Refreshed {
		out.Refreshed[i] = toGraphRefreshResult(refreshed)
	}
	for i, failed := range result.Failed {
		out.Failed[i] = &RefreshFailure{ListID: failed.ListID.String(), Error: failed.Err.Error()}
	}
	return out, nil
}

// visibleList reports private lists of other users as missing.
func (r *Resolver) visibleList(ctx context.Context, org, id uuid.UUID) (domain.SmartList, error) {
	list, err := r.service.Get(ctx, org, id)
	if err != nil {
		return domain.SmartList{}, err
	}
	if !list.VisibleTo(auth.UserIDFromContext(ctx)) {
		return domain.SmartList{}, fmt.Errorf("failed to get smart list: %w", repository.ErrNotFound)
	}
	return list, nil
}

func listScope(ctx context.Context, id string) (uuid.UUID, uuid.UUID, error) {
	org, err := auth.RequireOrganization(ctx)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	listID, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: invalid smart list ID: %v", errBadInput, err)
	}
	return org, listID, nil
}
