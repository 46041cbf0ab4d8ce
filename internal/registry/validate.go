package registry

import (
	"fmt"
	"strings"

	"github.com/rpattn/engcrm/internal/domain"
)

var indexableTypes = map[domain.FieldType]struct{}{
	domain.FieldTypeText: {},
	domain.FieldTypeEnum: {},
	domain.FieldTypeTags: {},
}

var systemFieldTypes = map[string]domain.FieldType{
	domain.SystemFieldCreatedAt: domain.FieldTypeDate,
	domain.SystemFieldUpdatedAt: domain.FieldTypeDate,
}

// ValidateFields checks a single entity type's field definitions for
// consistency before they are admitted into a registry.
func ValidateFields(fields []domain.FieldDefinition) error {
	seen := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			return fmt.Errorf("field name is required")
		}
		if name != field.Name {
			return fmt.Errorf("field %q has surrounding whitespace", field.Name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("field %s declared more than once", name)
		}
		seen[name] = struct{}{}

		if !field.Type.IsValid() {
			return fmt.Errorf("field %s has unknown type %q", name, field.Type)
		}

		if field.Type == domain.FieldTypeEnum && len(field.Options) == 0 {
			return fmt.Errorf("enum field %s must declare options", name)
		}
		if field.Type != domain.FieldTypeEnum && len(field.Options) > 0 {
			return fmt.Errorf("field %s cannot declare options because type %s is not enum", name, field.Type)
		}

		if field.CaseInsensitive && field.Type != domain.FieldTypeText {
			return fmt.Errorf("field %s cannot be case-insensitive because type %s is not text", name, field.Type)
		}

		if _, ok := indexableTypes[field.Type]; field.Indexed && !ok {
			return fmt.Errorf("field %s cannot be indexed because type %s does not support index lookups", name, field.Type)
		}

		if field.System {
			want, ok := systemFieldTypes[name]
			if !ok {
				return fmt.Errorf("field %s is not a known system field", name)
			}
			if field.Type != want {
				return fmt.Errorf("system field %s must have type %s", name, want)
			}
			if field.Indexed {
				return fmt.Errorf("system field %s cannot be indexed", name)
			}
		}
	}

	return nil
}
