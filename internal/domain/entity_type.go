package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the kind of CRM record.
type EntityType string

const (
	EntityTypeContact EntityType = "contact"
	EntityTypeCompany EntityType = "company"
	EntityTypeDeal    EntityType = "deal"
)

// EntityTypes lists every supported entity type in display order.
func EntityTypes() []EntityType {
	return []EntityType{EntityTypeContact, EntityTypeCompany, EntityTypeDeal}
}

// IsValid reports whether t is a supported entity type.
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeContact, EntityTypeCompany, EntityTypeDeal:
		return true
	}
	return false
}

// ParseEntityType normalizes raw input into an EntityType.
func ParseEntityType(raw string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
	return t, nil
}
