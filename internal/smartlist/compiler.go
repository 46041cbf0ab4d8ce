package smartlist

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
)

// Predicate reports whether an entity satisfies a compiled filter list.
type Predicate func(domain.Entity) (bool, error)

// matcher evaluates one clause against the stored value of its field.
type matcher func(value any, present bool) (bool, error)

type compiledClause struct {
	field    domain.FieldDefinition
	operator domain.Operator
	sortKey  string
	index    *domain.IndexFilter
	evaluate matcher
}

// Plan is a compiled filter list. Clauses are evaluated in a canonical order
// that does not depend on how the caller listed them, so reordering clauses
// never changes the outcome, errors included.
type Plan struct {
	entityType domain.EntityType
	clauses    []compiledClause
	// IndexFilter, when set, lets the store narrow the fetch. It is derived
	// from the first clause evaluated, so rows it excludes would have been
	// rejected by that clause without error.
	IndexFilter *domain.IndexFilter
}

// Compile turns validated clauses into a Plan. A clause whose field is no
// longer declared fails with ErrSchemaDrift rather than being skipped.
func Compile(catalog Catalog, entityType domain.EntityType, clauses []domain.FilterClause) (*Plan, error) {
	if _, err := catalog.FieldsFor(entityType); err != nil {
		return nil, &CompileError{
			ValidationError: ValidationError{Index: -1, Kind: KindUnknownEntityType, Reason: err.Error()},
			Err:             err,
		}
	}

	compiled := make([]compiledClause, 0, len(clauses))
	for i, clause := range clauses {
		if problem := checkClause(catalog, entityType, i, clause, KindSchemaDrift); problem != nil {
			cause := ErrInvalidClause
			if problem.Kind == KindSchemaDrift {
				cause = ErrSchemaDrift
			}
			return nil, &CompileError{ValidationError: *problem, Err: cause}
		}

		field, _ := catalog.Field(entityType, strings.TrimSpace(clause.Field))
		c, err := compileClause(field, clause)
		if err != nil {
			return nil, &CompileError{
				ValidationError: ValidationError{Index: i, Field: field.Name, Kind: KindInvalidValueType, Reason: err.Error()},
				Err:             ErrInvalidClause,
			}
		}
		compiled = append(compiled, c)
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		left, right := compiled[i], compiled[j]
		if (left.index != nil) != (right.index != nil) {
			return left.index != nil
		}
		return left.sortKey < right.sortKey
	})

	plan := &Plan{entityType: entityType, clauses: compiled}
	if len(compiled) > 0 && compiled[0].index != nil {
		filter := *compiled[0].index
		filter.Values = append([]string(nil), filter.Values...)
		plan.IndexFilter = &filter
	}
	return plan, nil
}

// EntityType returns the entity type the plan filters.
func (p *Plan) EntityType() domain.EntityType { return p.entityType }

// Match evaluates the plan against one entity. Entities of another type never
// match. Evaluation stops at the first clause that rejects the entity.
func (p *Plan) Match(e domain.Entity) (bool, error) {
	if e.EntityType != p.entityType {
		return false, nil
	}
	for _, c := range p.clauses {
		value, present := e.FieldValue(c.field.Name)
		ok, err := c.evaluate(value, present)
		if err != nil {
			return false, fmt.Errorf("entity %s field %s: %w", e.ID, c.field.Name, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Predicate exposes Match as a Predicate.
func (p *Plan) Predicate() Predicate { return p.Match }

// Filter returns the entities that match, preserving input order.
func (p *Plan) Filter(entities []domain.Entity) ([]domain.Entity, error) {
	matched := make([]domain.Entity, 0)
	for _, e := range entities {
		ok, err := p.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// Count returns how many entities match.
func (p *Plan) Count(entities []domain.Entity) (int64, error) {
	var count int64
	for _, e := range entities {
		ok, err := p.Match(e)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}

func compileClause(field domain.FieldDefinition, clause domain.FilterClause) (compiledClause, error) {
	def, _ := registry.Allows(field.Type, clause.Operator)
	values, _ := clauseValues(def, clause.Value)

	keyValue, err := json.Marshal(clause.Value)
	if err != nil {
		return compiledClause{}, fmt.Errorf("value cannot be encoded: %w", err)
	}

	c := compiledClause{
		field:    field,
		operator: clause.Operator,
		sortKey:  field.Name + "\x00" + string(clause.Operator) + "\x00" + string(keyValue),
	}

	switch clause.Operator {
	case domain.OperatorIsEmpty:
		c.evaluate = func(value any, present bool) (bool, error) {
			return isEmpty(value, present), nil
		}
		return c, nil
	case domain.OperatorIsNotEmpty:
		c.evaluate = func(value any, present bool) (bool, error) {
			return !isEmpty(value, present), nil
		}
		return c, nil
	}

	var positive matcher
	switch field.Type {
	case domain.FieldTypeText, domain.FieldTypeEnum:
		positive, c.index = compileText(field, clause.Operator, values)
	case domain.FieldTypeNumber:
		positive, err = compileNumber(clause.Operator, values)
	case domain.FieldTypeDate:
		positive, err = compileDate(clause.Operator, values)
	case domain.FieldTypeBoolean:
		positive, err = compileBoolean(values)
	case domain.FieldTypeTags:
		positive, c.index = compileTags(field, clause.Operator, values)
	default:
		err = fmt.Errorf("field type %q cannot be filtered", field.Type)
	}
	if err != nil {
		return compiledClause{}, err
	}

	// Positive comparisons never match an empty value.
	guarded := func(value any, present bool) (bool, error) {
		if isEmpty(value, present) {
			return false, nil
		}
		return positive(value, present)
	}

	switch clause.Operator {
	case domain.OperatorNotEquals, domain.OperatorNotContains, domain.OperatorNotIn:
		c.index = nil
		c.evaluate = func(value any, present bool) (bool, error) {
			ok, err := guarded(value, present)
			if err != nil {
				return false, err
			}
			return !ok, nil
		}
	default:
		c.evaluate = guarded
	}
	return c, nil
}

func mismatch(field domain.FieldType, value any) error {
	return fmt.Errorf("%w: stored %T where %s expected", ErrValueTypeMismatch, value, field)
}

func compileText(field domain.FieldDefinition, op domain.Operator, values []any) (matcher, *domain.IndexFilter) {
	fold := func(s string) string { return s }
	if field.CaseInsensitive {
		fold = strings.ToLower
	}

	wanted := make([]string, len(values))
	set := make(map[string]struct{}, len(values))
	for i, v := range values {
		s, _ := asString(v)
		wanted[i] = s
		set[fold(s)] = struct{}{}
	}

	stored := func(value any) (string, error) {
		s, ok := asString(value)
		if !ok {
			return "", mismatch(field.Type, value)
		}
		return fold(s), nil
	}

	var index *domain.IndexFilter
	if field.Indexed && !field.CaseInsensitive && !field.System {
		switch op {
		case domain.OperatorEquals, domain.OperatorIn:
			index = &domain.IndexFilter{Field: field.Name, Kind: domain.IndexFilterEquals, Values: wanted}
		}
	}

	switch op {
	case domain.OperatorContains, domain.OperatorNotContains:
		needle := ""
		if len(wanted) > 0 {
			needle = fold(wanted[0])
		}
		return func(value any, _ bool) (bool, error) {
			s, err := stored(value)
			if err != nil {
				return false, err
			}
			return strings.Contains(s, needle), nil
		}, index
	default:
		// equals, not_equals, in, not_in share set membership.
		return func(value any, _ bool) (bool, error) {
			s, err := stored(value)
			if err != nil {
				return false, err
			}
			_, ok := set[s]
			return ok, nil
		}, index
	}
}

func compileNumber(op domain.Operator, values []any) (matcher, error) {
	bounds := make([]float64, len(values))
	for i, v := range values {
		n, ok := asNumber(v)
		if !ok {
			return nil, fmt.Errorf("value %v is not a number", v)
		}
		bounds[i] = n
	}

	compare := func(n float64) bool {
		switch op {
		case domain.OperatorGreaterThan:
			return n > bounds[0]
		case domain.OperatorLessThan:
			return n < bounds[0]
		case domain.OperatorBetween:
			return n >= bounds[0] && n <= bounds[1]
		default:
			return n == bounds[0]
		}
	}

	return func(value any, _ bool) (bool, error) {
		n, ok := asNumber(value)
		if !ok {
			return false, mismatch(domain.FieldTypeNumber, value)
		}
		return compare(n), nil
	}, nil
}

func compileDate(op domain.Operator, values []any) (matcher, error) {
	bounds := make([]time.Time, len(values))
	for i, v := range values {
		t, ok := asTime(v)
		if !ok {
			return nil, fmt.Errorf("value %v is not a date", v)
		}
		bounds[i] = t
	}

	compare := func(t time.Time) bool {
		switch op {
		case domain.OperatorGreaterThan:
			return t.After(bounds[0])
		case domain.OperatorLessThan:
			return t.Before(bounds[0])
		case domain.OperatorBetween:
			return !t.Before(bounds[0]) && !t.After(bounds[1])
		default:
			return t.Equal(bounds[0])
		}
	}

	return func(value any, _ bool) (bool, error) {
		t, ok := asTime(value)
		if !ok {
			return false, mismatch(domain.FieldTypeDate, value)
		}
		return compare(t), nil
	}, nil
}

func compileBoolean(values []any) (matcher, error) {
	want, ok := asBool(values[0])
	if !ok {
		return nil, fmt.Errorf("value %v is not a boolean", values[0])
	}
	return func(value any, _ bool) (bool, error) {
		b, ok := asBool(value)
		if !ok {
			return false, mismatch(domain.FieldTypeBoolean, value)
		}
		return b == want, nil
	}, nil
}

func compileTags(field domain.FieldDefinition, op domain.Operator, values []any) (matcher, *domain.IndexFilter) {
	set := make(map[string]struct{}, len(values))
	wanted := make([]string, len(values))
	for i, v := range values {
		s, _ := asString(v)
		wanted[i] = s
		set[s] = struct{}{}
	}

	var index *domain.IndexFilter
	if field.Indexed && op == domain.OperatorContains {
		index = &domain.IndexFilter{Field: field.Name, Kind: domain.IndexFilterArrayContains, Values: wanted}
	}

	return func(value any, _ bool) (bool, error) {
		tags, ok := asStringList(value)
		if !ok {
			return false, mismatch(domain.FieldTypeTags, value)
		}
		for _, tag := range tags {
			if _, hit := set[tag]; hit {
				return true, nil
			}
		}
		return false, nil
	}, index
}
