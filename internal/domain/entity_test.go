package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestEntityFieldValue(t *testing.T) {
	entity := NewEntity(uuid.New(), EntityTypeContact, map[string]any{
		"first_name": "Ada",
		"created_at": "shadowed",
	})

	value, ok := entity.FieldValue("first_name")
	if !ok || value != "Ada" {
		t.Fatalf("unexpected property value %v, %v", value, ok)
	}

	value, ok = entity.FieldValue(SystemFieldCreatedAt)
	if !ok {
		t.Fatalf("expected created_at to be present")
	}
	if _, isTime := value.(time.Time); !isTime {
		t.Fatalf("expected created_at to come from the entity column, got %T", value)
	}

	if _, ok := entity.FieldValue("nickname"); ok {
		t.Fatalf("expected missing property to be absent")
	}
}

func TestEntityWithPropertiesCopies(t *testing.T) {
	props := map[string]any{"status": "lead"}
	entity := NewEntity(uuid.New(), EntityTypeContact, props)
	props["status"] = "customer"

	if entity.Properties["status"] != "lead" {
		t.Fatalf("entity shares the caller's property map")
	}

	updated := entity.WithProperties(map[string]any{"status": "customer"})
	if updated.ID != entity.ID || !updated.CreatedAt.Equal(entity.CreatedAt) {
		t.Fatalf("identity not preserved")
	}
	if entity.Properties["status"] != "lead" {
		t.Fatalf("original entity was modified")
	}
}

func TestParseEntityType(t *testing.T) {
	got, err := ParseEntityType("  Deal ")
	if err != nil || got != EntityTypeDeal {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
	if _, err := ParseEntityType("vendor"); err == nil {
		t.Fatalf("expected unknown entity type to fail")
	}
}

func TestNormalizeFilters(t *testing.T) {
	normalized, err := NormalizeFilters([]FilterClause{
		{Field: "lead_score", Operator: OperatorBetween, Value: []int{1, 5}},
		{Field: "closed_at", Operator: OperatorGreaterThan, Value: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{Field: "email", Operator: OperatorIsEmpty},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	bounds, ok := normalized[0].Value.([]any)
	if !ok || len(bounds) != 2 || bounds[0] != 1.0 || bounds[1] != 5.0 {
		t.Fatalf("unexpected bounds %#v", normalized[0].Value)
	}
	if normalized[1].Value != "2024-01-02T00:00:00Z" {
		t.Fatalf("unexpected date %#v", normalized[1].Value)
	}
	if normalized[2].Value != nil {
		t.Fatalf("expected nil value, got %#v", normalized[2].Value)
	}

	empty, err := NormalizeFilters(nil)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v, %v", empty, err)
	}
}
