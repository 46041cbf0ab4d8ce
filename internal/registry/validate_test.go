package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rpattn/engcrm/internal/domain"
)

func TestValidateFields(t *testing.T) {
	cases := []struct {
		name    string
		fields  []domain.FieldDefinition
		wantErr bool
	}{
		{
			name: "valid mix",
			fields: []domain.FieldDefinition{
				{Name: "email", Type: domain.FieldTypeText, CaseInsensitive: true},
				{Name: "status", Type: domain.FieldTypeEnum, Options: []string{"a", "b"}, Indexed: true},
				{Name: "created_at", Type: domain.FieldTypeDate, System: true},
			},
		},
		{
			name:    "duplicate name",
			fields:  []domain.FieldDefinition{{Name: "a", Type: domain.FieldTypeText}, {Name: "a", Type: domain.FieldTypeNumber}},
			wantErr: true,
		},
		{
			name:    "unknown type",
			fields:  []domain.FieldDefinition{{Name: "shape", Type: domain.FieldType("geometry")}},
			wantErr: true,
		},
		{
			name:    "enum without options",
			fields:  []domain.FieldDefinition{{Name: "stage", Type: domain.FieldTypeEnum}},
			wantErr: true,
		},
		{
			name:    "options on text",
			fields:  []domain.FieldDefinition{{Name: "name", Type: domain.FieldTypeText, Options: []string{"x"}}},
			wantErr: true,
		},
		{
			name:    "case insensitive number",
			fields:  []domain.FieldDefinition{{Name: "amount", Type: domain.FieldTypeNumber, CaseInsensitive: true}},
			wantErr: true,
		},
		{
			name:    "indexed boolean",
			fields:  []domain.FieldDefinition{{Name: "active", Type: domain.FieldTypeBoolean, Indexed: true}},
			wantErr: true,
		},
		{
			name:    "unknown system field",
			fields:  []domain.FieldDefinition{{Name: "deleted_at", Type: domain.FieldTypeDate, System: true}},
			wantErr: true,
		},
		{
			name:    "blank name",
			fields:  []domain.FieldDefinition{{Name: "  ", Type: domain.FieldTypeText}},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFields(tc.fields)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
