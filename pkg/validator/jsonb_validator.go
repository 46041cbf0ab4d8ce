package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rpattn/engcrm/internal/domain"
)

// FieldSource supplies the declared fields of an entity type.
type FieldSource interface {
	FieldsFor(entityType domain.EntityType) ([]domain.FieldDefinition, error)
}

// PropertyValidator checks entity properties against the field registry
type PropertyValidator struct {
	fields FieldSource
}

// NewPropertyValidator creates a new property validator
func NewPropertyValidator(fields FieldSource) *PropertyValidator {
	return &PropertyValidator{fields: fields}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// Err returns the result as an error, or nil when the properties are valid.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	messages := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		messages[i] = e.Message
	}
	return fmt.Errorf("invalid properties: %s", strings.Join(messages, "; "))
}

// ValidateProperties validates properties of an entity type. Null values are
// accepted for every field and mean "empty".
func (pv *PropertyValidator) ValidateProperties(entityType domain.EntityType, properties map[string]any) (ValidationResult, error) {
	defs, err := pv.fields.FieldsFor(entityType)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("failed to load fields: %w", err)
	}

	fieldDefinitions := make(map[string]domain.FieldDefinition, len(defs))
	for _, def := range defs {
		fieldDefinitions[def.Name] = def
	}

	result := ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}

	// Sorted so error order is stable for callers and tests.
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := properties[name]
		def, exists := fieldDefinitions[name]
		switch {
		case !exists:
			result.addError(name, fmt.Sprintf("property '%s' is not defined for %s", name, entityType), value)
			continue
		case def.System:
			result.addError(name, fmt.Sprintf("property '%s' is maintained by the system", name), value)
			continue
		case value == nil:
			continue
		}

		if err := validateFieldType(def, value); err != nil {
			result.addError(name, err.Error(), value)
		}
	}

	return result, nil
}

func (r *ValidationResult) addError(field, message string, value any) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Value: value})
}

// validateFieldType validates the type of a field value
func validateFieldType(def domain.FieldDefinition, value any) error {
	switch def.Type {
	case domain.FieldTypeText:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", def.Name, value)
		}
	case domain.FieldTypeNumber:
		if !isNumber(value) {
			return fmt.Errorf("field '%s' must be a number, got %T", def.Name, value)
		}
	case domain.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' must be a boolean, got %T", def.Name, value)
		}
	case domain.FieldTypeDate:
		switch v := value.(type) {
		case string:
			if !isDate(v) {
				return fmt.Errorf("field '%s' must be an RFC3339 timestamp or YYYY-MM-DD date", def.Name)
			}
		case time.Time:
			// already parsed; accept value
		default:
			return fmt.Errorf("field '%s' must be a date string, got %T", def.Name, value)
		}
	case domain.FieldTypeEnum:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", def.Name, value)
		}
		if str != "" && !def.HasOption(str) {
			return fmt.Errorf("field '%s' value '%s' is not one of %s", def.Name, str, strings.Join(def.Options, ", "))
		}
	case domain.FieldTypeTags:
		values, ok := value.([]any)
		if !ok {
			if strSlice, ok := value.([]string); ok {
				values = make([]any, len(strSlice))
				for i, v := range strSlice {
					values[i] = v
				}
			} else {
				return fmt.Errorf("field '%s' must be an array of strings, got %T", def.Name, value)
			}
		}
		for _, item := range values {
			str, ok := item.(string)
			if !ok {
				return fmt.Errorf("field '%s' tag values must be strings, got %T", def.Name, item)
			}
			if strings.TrimSpace(str) == "" {
				return fmt.Errorf("field '%s' contains an empty tag", def.Name)
			}
		}
	default:
		return fmt.Errorf("unknown field type: %s", def.Type)
	}

	return nil
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
	case int, int8, int16, int32, int64:
		return true
	case uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isDate(value string) bool {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if _, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return true
		}
	}
	return false
}
