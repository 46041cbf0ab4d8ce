package domain

// FieldType represents the data type of a filterable field
type FieldType string

const (
	FieldTypeText    FieldType = "text"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeEnum    FieldType = "enum"
	FieldTypeBoolean FieldType = "boolean"
	// FieldTypeTags holds a list of strings. Membership operators compare
	// whole elements rather than substrings.
	FieldTypeTags FieldType = "tags"
)

// IsValid reports whether ft is a known field type.
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldTypeText, FieldTypeNumber, FieldTypeDate, FieldTypeEnum, FieldTypeBoolean, FieldTypeTags:
		return true
	}
	return false
}

// FieldDefinition describes one field of an entity type
type FieldDefinition struct {
	Name  string    `json:"name" yaml:"name"`
	Label string    `json:"label,omitempty" yaml:"label"`
	Type  FieldType `json:"type" yaml:"type"`
	// Options enumerates the legal values of an enum field.
	Options []string `json:"options,omitempty" yaml:"options"`
	// CaseInsensitive folds case for text comparisons on this field.
	CaseInsensitive bool `json:"caseInsensitive,omitempty" yaml:"case_insensitive"`
	// Indexed marks fields the entity store can pre-filter on.
	Indexed bool `json:"indexed,omitempty" yaml:"indexed"`
	// System fields are entity columns, not properties.
	System bool `json:"system,omitempty" yaml:"system"`
}

// HasOption reports whether value is one of the field's enum options.
func (f FieldDefinition) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// CopyFields returns a copy of the slice so callers cannot mutate shared definitions.
func CopyFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	out := make([]FieldDefinition, len(fields))
	for i, f := range fields {
		f.Options = append([]string(nil), f.Options...)
		out[i] = f
	}
	return out
}
