package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/domain"
	"github.com/rpattn/engcrm/internal/registry"
)

func newTestValidator(t *testing.T) *PropertyValidator {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)
	return NewPropertyValidator(reg)
}

func TestPropertyValidatorAcceptsDeclaredFields(t *testing.T) {
	v := newTestValidator(t)

	result, err := v.ValidateProperties(domain.EntityTypeContact, map[string]any{
		"first_name":        "Ada",
		"status":            "lead",
		"tags":              []any{"vip", "lead"},
		"lead_score":        42.0,
		"do_not_contact":    false,
		"last_contacted_at": "2024-02-01",
		"phone":             nil,
	})
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %+v", result.Errors)
	assert.NoError(t, result.Err())
}

func TestPropertyValidatorRejectsBadValues(t *testing.T) {
	v := newTestValidator(t)

	result, err := v.ValidateProperties(domain.EntityTypeContact, map[string]any{
		"created_at":        "2024-01-01",
		"favourite_colour":  "blue",
		"last_contacted_at": "last week",
		"lead_score":        "99",
		"status":            "vip",
		"tags":              []any{"vip", 3.0},
	})
	require.NoError(t, err)
	assert.False(t, result.IsValid)

	fields := make([]string, len(result.Errors))
	for i, e := range result.Errors {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{"created_at", "favourite_colour", "last_contacted_at", "lead_score", "status", "tags"}, fields)
	assert.ErrorContains(t, result.Err(), "invalid properties")
}

func TestPropertyValidatorUnknownEntityType(t *testing.T) {
	v := newTestValidator(t)
	_, err := v.ValidateProperties(domain.EntityType("vendor"), map[string]any{})
	assert.ErrorIs(t, err, registry.ErrUnknownEntityType)
}
