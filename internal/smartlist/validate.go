package smartlist

import (
	"fmt"
	"strings"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
)

// Catalog is the field lookup the engine needs from a registry.
type Catalog interface {
	FieldsFor(entityType domain.EntityType) ([]domain.FieldDefinition, error)
	Field(entityType domain.EntityType, name string) (domain.FieldDefinition, bool)
}

var _ Catalog = (*registry.Registry)(nil)

// Validate checks every clause against the catalog and returns all problems
// at once. A nil result means the clauses are valid.
func Validate(catalog Catalog, entityType domain.EntityType, clauses []domain.FilterClause) ValidationErrors {
	if _, err := catalog.FieldsFor(entityType); err != nil {
		return ValidationErrors{{
			Index:  -1,
			Kind:   KindUnknownEntityType,
			Reason: fmt.Sprintf("entity type %q is not supported", entityType),
		}}
	}

	var errs ValidationErrors
	for i, clause := range clauses {
		if problem := checkClause(catalog, entityType, i, clause, KindUnknownField); problem != nil {
			errs = append(errs, *problem)
		}
	}
	return errs
}

// checkClause returns the first problem with a clause, in the order field,
// operator, arity, value type. missingKind is reported when the field does
// not exist.
func checkClause(catalog Catalog, entityType domain.EntityType, index int, clause domain.FilterClause, missingKind ErrorKind) *ValidationError {
	name := strings.TrimSpace(clause.Field)
	field, ok := catalog.Field(entityType, name)
	if !ok || name == "" {
		reason := fmt.Sprintf("field %q does not exist on %s", clause.Field, entityType)
		if missingKind == KindSchemaDrift {
			reason = fmt.Sprintf("field %q referenced by a saved filter no longer exists on %s", clause.Field, entityType)
		}
		return &ValidationError{Index: index, Field: clause.Field, Kind: missingKind, Reason: reason}
	}

	def, ok := registry.Allows(field.Type, clause.Operator)
	if !ok {
		return &ValidationError{
			Index:  index,
			Field:  field.Name,
			Kind:   KindInvalidOperatorForField,
			Reason: fmt.Sprintf("operator %q is not allowed for %s fields", clause.Operator, field.Type),
		}
	}

	values, problem := clauseValues(def, clause.Value)
	if problem != "" {
		return &ValidationError{Index: index, Field: field.Name, Kind: KindInvalidValueArity, Reason: problem}
	}

	for _, v := range values {
		if reason := checkValueType(field, v); reason != "" {
			return &ValidationError{Index: index, Field: field.Name, Kind: KindInvalidValueType, Reason: reason}
		}
	}

	return nil
}

// clauseValues unpacks a clause value according to the operator's arity.
// A non-empty string describes an arity problem.
func clauseValues(def domain.OperatorDefinition, value any) ([]any, string) {
	switch def.Arity {
	case domain.ArityNone:
		if value == nil {
			return nil, ""
		}
		if list, ok := asList(value); ok && len(list) == 0 {
			return nil, ""
		}
		return nil, fmt.Sprintf("operator %q takes no value", def.Operator)

	case domain.AritySingle:
		if value == nil {
			return nil, fmt.Sprintf("operator %q requires a value", def.Operator)
		}
		if _, ok := asList(value); ok {
			return nil, fmt.Sprintf("operator %q takes a single value, not a list", def.Operator)
		}
		return []any{value}, ""

	case domain.ArityRange:
		list, ok := asList(value)
		if !ok || len(list) != 2 {
			return nil, fmt.Sprintf("operator %q requires exactly two bounds", def.Operator)
		}
		for _, bound := range list {
			if bound == nil {
				return nil, fmt.Sprintf("operator %q bounds cannot be null", def.Operator)
			}
			if _, nested := asList(bound); nested {
				return nil, fmt.Sprintf("operator %q bounds must be scalars", def.Operator)
			}
		}
		return list, ""

	case domain.AritySet:
		list, ok := asList(value)
		if !ok || len(list) == 0 {
			return nil, fmt.Sprintf("operator %q requires a non-empty list of values", def.Operator)
		}
		for _, member := range list {
			if member == nil {
				return nil, fmt.Sprintf("operator %q values cannot be null", def.Operator)
			}
			if _, nested := asList(member); nested {
				return nil, fmt.Sprintf("operator %q values must be scalars", def.Operator)
			}
		}
		return list, ""
	}

	return nil, fmt.Sprintf("operator %q has unknown arity", def.Operator)
}

// checkValueType applies the strict type policy to a clause value. It
// returns an empty string when the value fits the field.
func checkValueType(field domain.FieldDefinition, value any) string {
	switch field.Type {
	case domain.FieldTypeText, domain.FieldTypeTags:
		if _, ok := asString(value); !ok {
			return fmt.Sprintf("value %v (%T) is not text", value, value)
		}
	case domain.FieldTypeEnum:
		s, ok := asString(value)
		if !ok {
			return fmt.Sprintf("value %v (%T) is not text", value, value)
		}
		if !field.HasOption(s) {
			return fmt.Sprintf("value %q is not one of %s", s, strings.Join(field.Options, ", "))
		}
	case domain.FieldTypeNumber:
		if _, ok := asNumber(value); !ok {
			return fmt.Sprintf("value %v (%T) is not a number", value, value)
		}
	case domain.FieldTypeDate:
		if _, ok := asTime(value); !ok {
			return fmt.Sprintf("value %v is not a date (RFC3339 or YYYY-MM-DD)", value)
		}
	case domain.FieldTypeBoolean:
		if _, ok := asBool(value); !ok {
			return fmt.Sprintf("value %v (%T) is not a boolean", value, value)
		}
	default:
		return fmt.Sprintf("field type %q cannot be filtered", field.Type)
	}
	return ""
}
