package graphql

import (
	"time"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
	"github.com/rpattn/engcrm/internal/smartlist"
)

// JSON tags match the schema field names; the executor projects selections by them.

type OperatorDefinition struct {
	Operator string `json:"operator"`
	Label    string `json:"label"`
	Arity    string `json:"arity"`
}

type FieldDefinition struct {
	Name            string                `json:"name"`
	Label           *string               `json:"label"`
	Type            string                `json:"type"`
	Options         []string              `json:"options"`
	CaseInsensitive bool                  `json:"caseInsensitive"`
	Indexed         bool                  `json:"indexed"`
	System          bool                  `json:"system"`
	Operators       []*OperatorDefinition `json:"operators"`
}

type FilterClause struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type SmartList struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organizationId"`
	Name            string          `json:"name"`
	Description     *string         `json:"description"`
	EntityType      string          `json:"entityType"`
	Filters         []*FilterClause `json:"filters"`
	IsPublic        bool            `json:"isPublic"`
	CreatedBy       string          `json:"createdBy"`
	CachedCount     *int64          `json:"cachedCount"`
	LastRefreshedAt *string         `json:"lastRefreshedAt"`
	CreatedAt       string          `json:"createdAt"`
	UpdatedAt       string          `json:"updatedAt"`
}

type Entity struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organizationId"`
	EntityType     string         `json:"entityType"`
	Properties     map[string]any `json:"properties"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

type PreviewResult struct {
	Entities  []*Entity `json:"entities"`
	Total     int       `json:"total"`
	Truncated bool      `json:"truncated"`
}

type RefreshResult struct {
	ListID      string `json:"listId"`
	Count       int64  `json:"count"`
	RefreshedAt string `json:"refreshedAt"`
}

type RefreshFailure struct {
	ListID string `json:"listId"`
	Error  string `json:"error"`
}

type RefreshAllResult struct {
	Refreshed []*RefreshResult  `json:"refreshed"`
	Failed    []*RefreshFailure `json:"failed"`
}

type FilterClauseInput struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type SmartListInput struct {
	Name        string               `json:"name"`
	Description *string              `json:"description"`
	EntityType  string               `json:"entityType"`
	Filters     []*FilterClauseInput `json:"filters"`
	IsPublic    *bool                `json:"isPublic"`
}

type SortInput struct {
	Field       string  `json:"field"`
	Direction   *string `json:"direction"`
	PropertyKey *string `json:"propertyKey"`
}

type PreviewInput struct {
	EntityType string               `json:"entityType"`
	Filters    []*FilterClauseInput `json:"filters"`
	Sort       *SortInput           `json:"sort"`
	Limit      *int                 `json:"limit"`
}

func toGraphFieldDefinition(field domain.FieldDefinition) *FieldDefinition {
	var label *string
	if field.Label != "" {
		l := field.Label
		label = &l
	}

	operators := registry.OperatorsFor(field.Type)
	defs := make([]*OperatorDefinition, len(operators))
	for i, op := range operators {
		defs[i] = &OperatorDefinition{Operator: string(op.Operator), Label: op.Label, Arity: string(op.Arity)}
	}

	options := field.Options
	if options == nil {
		options = []string{}
	}

	return &FieldDefinition{
		Name:            field.Name,
		Label:           label,
		Type:            string(field.Type),
		Options:         options,
		CaseInsensitive: field.CaseInsensitive,
		Indexed:         field.Indexed,
		System:          field.System,
		Operators:       defs,
	}
}

func toGraphSmartList(list domain.SmartList) *SmartList {
	var description *string
	if list.Description != "" {
		desc := list.Description
		description = &desc
	}

	var refreshedAt *string
	if list.LastRefreshedAt != nil {
		at := list.LastRefreshedAt.Format(time.RFC3339)
		refreshedAt = &at
	}

	filters := make([]*FilterClause, len(list.Filters))
	for i, f := range list.Filters {
		filters[i] = &FilterClause{Field: f.Field, Operator: string(f.Operator), Value: f.Value}
	}

	return &SmartList{
		ID:              list.ID.String(),
		OrganizationID:  list.OrganizationID.String(),
		Name:            list.Name,
		Description:     description,
		EntityType:      string(list.EntityType),
		Filters:         filters,
		IsPublic:        list.IsPublic,
		CreatedBy:       list.CreatedBy,
		CachedCount:     list.CachedCount,
		LastRefreshedAt: refreshedAt,
		CreatedAt:       list.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       list.UpdatedAt.Format(time.RFC3339),
	}
}

func toGraphEntity(e domain.Entity) *Entity {
	properties := e.Properties
	if properties == nil {
		properties = map[string]any{}
	}
	return &Entity{
		ID:             e.ID.String(),
		OrganizationID: e.OrganizationID.String(),
		EntityType:     string(e.EntityType),
		Properties:     properties,
		CreatedAt:      e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      e.UpdatedAt.Format(time.RFC3339),
	}
}

func toGraphEntities(entities []domain.Entity) []*Entity {
	out := make([]*Entity, len(entities))
	for i, e := range entities {
		out[i] = toGraphEntity(e)
	}
	return out
}

func toGraphRefreshResult(result smartlist.RefreshResult) *RefreshResult {
	return &RefreshResult{
		ListID:      result.ListID.String(),
		Count:       result.Count,
		RefreshedAt: result.RefreshedAt.Format(time.RFC3339),
	}
}

func toDomainFilters(inputs []*FilterClauseInput) []domain.FilterClause {
	filters := make([]domain.FilterClause, 0, len(inputs))
	for _, in := range inputs {
		if in == nil {
			continue
		}
		filters = append(filters, domain.FilterClause{Field: in.Field, Operator: domain.Operator(in.Operator), Value: in.Value})
	}
	return filters
}

func toServiceInput(input SmartListInput) smartlist.SmartListInput {
	out := smartlist.SmartListInput{
		Name:       input.Name,
		EntityType: input.EntityType,
		Filters:    toDomainFilters(input.Filters),
	}
	if input.Description != nil {
		out.Description = *input.Description
	}
	if input.IsPublic != nil {
		out.IsPublic = *input.IsPublic
	}
	return out
}
