package repository

import (
	"fmt"
	"strings"

	"github.com/rpattn/engcrm/internal/domain"
)

type sqlBuilder struct {
	args []any
}

func newSQLBuilder() *sqlBuilder {
	return &sqlBuilder{args: make([]any, 0)}
}

func (b *sqlBuilder) addArg(value any) int {
	b.args = append(b.args, value)
	return len(b.args)
}

func (b *sqlBuilder) placeholder(idx int) string {
	return fmt.Sprintf("$%d", idx)
}

// indexFilterClause renders a WHERE fragment that keeps every row the filter
// could match plus every row whose stored value has an unexpected JSON type,
// so predicate evaluation sees the same rows it would reject with an error.
func indexFilterClause(filter domain.IndexFilter, builder *sqlBuilder) (string, error) {
	if strings.TrimSpace(filter.Field) == "" {
		return "", fmt.Errorf("index filter requires a field")
	}
	if len(filter.Values) == 0 {
		return "", fmt.Errorf("index filter on %s requires at least one value", filter.Field)
	}

	key := builder.placeholder(builder.addArg(filter.Field))

	switch filter.Kind {
	case domain.IndexFilterEquals:
		values := builder.placeholder(builder.addArg(filter.Values))
		return fmt.Sprintf("(properties ->> %s::text = ANY(%s::text[]) OR "+
			"jsonb_typeof(properties -> %s::text) NOT IN ('string', 'null'))",
			key, values, key), nil

	case domain.IndexFilterArrayContains:
		value := builder.placeholder(builder.addArg(filter.Values[0]))
		return fmt.Sprintf("(properties @> jsonb_build_object(%s::text, jsonb_build_array(%s::text)) OR "+
			"jsonb_typeof(properties -> %s::text) NOT IN ('array', 'null') OR "+
			"EXISTS (SELECT 1 FROM jsonb_array_elements(CASE WHEN jsonb_typeof(properties -> %s::text) = 'array' "+
			"THEN properties -> %s::text ELSE '[]'::jsonb END) AS elem(value) WHERE jsonb_typeof(elem.value) <> 'string'))",
			key, value, key, key, key), nil
	}

	return "", fmt.Errorf("unsupported index filter kind %q", filter.Kind)
}

func buildOrderClause(sort domain.EntitySort, builder *sqlBuilder) string {
	direction := "DESC"
	if sort.Direction == domain.SortDirectionAsc {
		direction = "ASC"
	}

	switch sort.Field {
	case domain.EntitySortFieldUpdatedAt:
		return fmt.Sprintf("ORDER BY updated_at %s, id", direction)
	case domain.EntitySortFieldProperty:
		if strings.TrimSpace(sort.PropertyKey) == "" {
			break
		}
		key := builder.placeholder(builder.addArg(sort.PropertyKey))
		return fmt.Sprintf("ORDER BY properties ->> %s::text %s NULLS LAST, id", key, direction)
	case domain.EntitySortFieldCreatedAt:
		return fmt.Sprintf("ORDER BY created_at %s, id", direction)
	}

	return "ORDER BY created_at DESC, id"
}
