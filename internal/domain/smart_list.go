package domain

import (
	"time"

	"github.com/google/uuid"
)

// SmartList is a saved, named filter over one entity type together with a
// point-in-time match count.
type SmartList struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	EntityType     EntityType     `json:"entity_type"`
	Filters        []FilterClause `json:"filters"`
	IsPublic       bool           `json:"is_public"`
	CreatedBy      string         `json:"created_by"`
	// CachedCount and LastRefreshedAt are nil until the first refresh.
	CachedCount     *int64     `json:"cached_count,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewSmartList creates a new smart list definition with immutable pattern
func NewSmartList(organizationID uuid.UUID, name string, entityType EntityType, filters []FilterClause, isPublic bool, createdBy string) SmartList {
	now := time.Now().UTC()
	return SmartList{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		Name:           name,
		EntityType:     entityType,
		Filters:        CopyFilters(filters),
		IsPublic:       isPublic,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithDescription returns a new list with updated description
func (l SmartList) WithDescription(description string) SmartList {
	next := l.clone()
	next.Description = description
	next.UpdatedAt = time.Now().UTC()
	return next
}

// WithDefinition returns a new list with the editable definition replaced.
// The cached count is dropped when the entity type or filters change because
// it no longer describes the list.
func (l SmartList) WithDefinition(name string, entityType EntityType, filters []FilterClause, isPublic bool) SmartList {
	next := l.clone()
	next.Name = name
	next.IsPublic = isPublic
	if entityType != l.EntityType || !sameFilters(l.Filters, filters) {
		next.CachedCount = nil
		next.LastRefreshedAt = nil
	}
	next.EntityType = entityType
	next.Filters = CopyFilters(filters)
	next.UpdatedAt = time.Now().UTC()
	return next
}

// WithRefresh returns a new list carrying a freshly computed count.
func (l SmartList) WithRefresh(count int64, refreshedAt time.Time) SmartList {
	next := l.clone()
	next.CachedCount = &count
	next.LastRefreshedAt = &refreshedAt
	return next
}

// VisibleTo reports whether viewer may see the list.
func (l SmartList) VisibleTo(viewer string) bool {
	return l.IsPublic || (viewer != "" && l.CreatedBy == viewer)
}

func (l SmartList) clone() SmartList {
	next := l
	next.Filters = CopyFilters(l.Filters)
	if l.CachedCount != nil {
		count := *l.CachedCount
		next.CachedCount = &count
	}
	if l.LastRefreshedAt != nil {
		at := *l.LastRefreshedAt
		next.LastRefreshedAt = &at
	}
	return next
}

func sameFilters(a, b []FilterClause) bool {
	left, err := FiltersToJSONB(a)
	if err != nil {
		return false
	}
	right, err := FiltersToJSONB(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}
