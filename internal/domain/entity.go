package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// System field names resolved from entity columns rather than properties.
const (
	SystemFieldCreatedAt = "created_at"
	SystemFieldUpdatedAt = "updated_at"
)

// Entity represents a CRM record (contact, company or deal) with dynamic properties
type Entity struct {
	ID             uuid.UUID      `json:"id"`
	OrganizationID uuid.UUID      `json:"organization_id"`
	EntityType     EntityType     `json:"entity_type"`
	Properties     map[string]any `json:"properties"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewEntity creates a new entity with immutable pattern
func NewEntity(organizationID uuid.UUID, entityType EntityType, properties map[string]any) Entity {
	now := time.Now().UTC()
	return Entity{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		EntityType:     entityType,
		Properties:     copyProperties(properties),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithProperty returns a new entity with an added/updated property
func (e Entity) WithProperty(key string, value any) Entity {
	newProperties := copyProperties(e.Properties)
	newProperties[key] = value

	return Entity{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		Properties:     newProperties,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}
}

// WithoutProperty returns a new entity without the specified property
func (e Entity) WithoutProperty(key string) Entity {
	newProperties := copyProperties(e.Properties)
	delete(newProperties, key)

	return Entity{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		Properties:     newProperties,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}
}

// WithProperties returns a new entity with the property set replaced
func (e Entity) WithProperties(properties map[string]any) Entity {
	return Entity{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType,
		Properties:     copyProperties(properties),
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      time.Now().UTC(),
	}
}

// FieldValue returns the value stored for a field name. System fields map to
// entity columns; everything else is looked up in the property bag.
func (e Entity) FieldValue(name string) (any, bool) {
	switch name {
	case SystemFieldCreatedAt:
		return e.CreatedAt, true
	case SystemFieldUpdatedAt:
		return e.UpdatedAt, true
	}
	value, ok := e.Properties[name]
	return value, ok
}

// GetPropertiesAsJSONB returns the properties encoded for a jsonb column
func (e Entity) GetPropertiesAsJSONB() (json.RawMessage, error) {
	if e.Properties == nil {
		return json.RawMessage(`{}`), nil
	}
	return json.Marshal(e.Properties)
}

// FromJSONBProperties creates properties map from JSONB data
func FromJSONBProperties(propertiesJSON json.RawMessage) (map[string]any, error) {
	if len(propertiesJSON) == 0 {
		return map[string]any{}, nil
	}
	var properties map[string]any
	if err := json.Unmarshal(propertiesJSON, &properties); err != nil {
		return nil, err
	}
	if properties == nil {
		properties = map[string]any{}
	}
	return properties, nil
}

// copyProperties creates a shallow copy of the properties map
func copyProperties(properties map[string]any) map[string]any {
	newProperties := make(map[string]any, len(properties))
	for k, v := range properties {
		newProperties[k] = v
	}
	return newProperties
}
