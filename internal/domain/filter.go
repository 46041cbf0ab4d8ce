package domain

import (
	"encoding/json"
	"fmt"
)

// FilterClause is one field/operator/value condition of a smart list.
//
// Value is JSON-shaped: a scalar for single-value operators, a two element
// slice for between, a non-empty slice for in/not_in and nil for the empty
// checks.
type FilterClause struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// IndexFilterKind enumerates the pre-filters an entity store can apply.
type IndexFilterKind string

const (
	// IndexFilterEquals keeps rows whose property text equals one of Values.
	IndexFilterEquals IndexFilterKind = "equals"
	// IndexFilterArrayContains keeps rows whose array property holds Values[0].
	IndexFilterArrayContains IndexFilterKind = "array_contains"
)

// IndexFilter is a store-level pre-filter derived from a filter clause. It
// narrows the fetched rows and never replaces predicate evaluation.
type IndexFilter struct {
	Field  string
	Kind   IndexFilterKind
	Values []string
}

// CopyFilters returns a copy of the clause slice.
func CopyFilters(filters []FilterClause) []FilterClause {
	if filters == nil {
		return []FilterClause{}
	}
	out := make([]FilterClause, len(filters))
	copy(out, filters)
	return out
}

// FiltersToJSONB encodes filter clauses for a jsonb column.
func FiltersToJSONB(filters []FilterClause) (json.RawMessage, error) {
	if filters == nil {
		filters = []FilterClause{}
	}
	return json.Marshal(filters)
}

// FiltersFromJSONB decodes filter clauses stored in a jsonb column.
func FiltersFromJSONB(data json.RawMessage) ([]FilterClause, error) {
	if len(data) == 0 {
		return []FilterClause{}, nil
	}

	var filters []FilterClause
	if err := json.Unmarshal(data, &filters); err != nil {
		return nil, err
	}
	if filters == nil {
		filters = []FilterClause{}
	}
	return filters, nil
}

// NormalizeFilters round-trips clauses through their JSON encoding so values
// take the same shape they will have after being read back from storage
// (float64 numbers, []any slices, RFC3339 strings).
func NormalizeFilters(filters []FilterClause) ([]FilterClause, error) {
	raw, err := FiltersToJSONB(filters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}
	normalized, err := FiltersFromJSONB(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode filters: %w", err)
	}
	return normalized, nil
}
