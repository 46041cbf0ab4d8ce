// Package registry holds the static catalogue of filterable fields per entity
// type and the operators legal for each field type.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rpattn/engcrm/internal/domain"
)

//go:embed fields.yaml
var defaultFields []byte

// ErrUnknownEntityType is returned for lookups on an entity type the registry
// does not describe.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Registry maps entity types to their field definitions. It is immutable once
// loaded and safe for concurrent use.
type Registry struct {
	fields map[domain.EntityType][]domain.FieldDefinition
	index  map[domain.EntityType]map[string]domain.FieldDefinition
}

// Default loads the field catalogue embedded in the binary.
func Default() (*Registry, error) {
	return Load(defaultFields)
}

// LoadFile loads a replacement field catalogue from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return Load(data)
}

// Load decodes and validates a YAML field catalogue.
func Load(data []byte) (*Registry, error) {
	var doc map[string][]domain.FieldDefinition
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	reg := &Registry{
		fields: make(map[domain.EntityType][]domain.FieldDefinition, len(doc)),
		index:  make(map[domain.EntityType]map[string]domain.FieldDefinition, len(doc)),
	}
	for rawType, fields := range doc {
		entityType, err := domain.ParseEntityType(rawType)
		if err != nil {
			return nil, fmt.Errorf("registry: %w", err)
		}
		if err := ValidateFields(fields); err != nil {
			return nil, fmt.Errorf("registry %s: %w", entityType, err)
		}
		reg.fields[entityType] = domain.CopyFields(fields)
		byName := make(map[string]domain.FieldDefinition, len(fields))
		for _, f := range fields {
			byName[f.Name] = f
		}
		reg.index[entityType] = byName
	}

	for _, t := range domain.EntityTypes() {
		if _, ok := reg.fields[t]; !ok {
			return nil, fmt.Errorf("registry: no fields declared for %s", t)
		}
	}

	return reg, nil
}

// FieldsFor returns the fields declared for entityType in declaration order.
func (r *Registry) FieldsFor(entityType domain.EntityType) ([]domain.FieldDefinition, error) {
	fields, ok := r.fields[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return domain.CopyFields(fields), nil
}

// Field looks up a single field definition.
func (r *Registry) Field(entityType domain.EntityType, name string) (domain.FieldDefinition, bool) {
	byName, ok := r.index[entityType]
	if !ok {
		return domain.FieldDefinition{}, false
	}
	f, ok := byName[name]
	if !ok {
		return domain.FieldDefinition{}, false
	}
	f.Options = append([]string(nil), f.Options...)
	return f, true
}

// EntityTypes returns the entity types the registry describes, sorted.
func (r *Registry) EntityTypes() []domain.EntityType {
	types := make([]domain.EntityType, 0, len(r.fields))
	for t := range r.fields {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
