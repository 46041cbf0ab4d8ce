package smartlist

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/engcrm/internal/domain"
)

func matchIDs(t *testing.T, plan *Plan, entities []domain.Entity) []string {
	t.Helper()
	matched, err := plan.Filter(entities)
	require.NoError(t, err)
	ids := make([]string, len(matched))
	for i, e := range matched {
		ids[i] = e.ID.String()
	}
	return ids
}

func TestCompileTagsContains(t *testing.T) {
	reg := testRegistry(t)
	vip := newContact(map[string]any{"tags": []any{"vip", "lead"}})
	lead := newContact(map[string]any{"tags": []any{"lead"}})

	plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "tags", Operator: domain.OperatorContains, Value: "vip"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{vip.ID.String()}, matchIDs(t, plan, []domain.Entity{vip, lead}))
	require.NotNil(t, plan.IndexFilter)
	assert.Equal(t, domain.IndexFilter{Field: "tags", Kind: domain.IndexFilterArrayContains, Values: []string{"vip"}}, *plan.IndexFilter)
}

func TestCompileTagsMatchWholeElements(t *testing.T) {
	reg := testRegistry(t)
	plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "tags", Operator: domain.OperatorContains, Value: "vi"},
	})
	require.NoError(t, err)

	ok, err := plan.Match(newContact(map[string]any{"tags": []string{"vip"}}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileBetweenIsInclusive(t *testing.T) {
	reg := testRegistry(t)

	t.Run("number", func(t *testing.T) {
		plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
			{Field: "lead_score", Operator: domain.OperatorBetween, Value: []any{10.0, 20.0}},
		})
		require.NoError(t, err)

		cases := map[float64]bool{9.5: false, 10: true, 15: true, 20: true, 20.01: false}
		for score, want := range cases {
			ok, err := plan.Match(newContact(map[string]any{"lead_score": score}))
			require.NoError(t, err)
			assert.Equal(t, want, ok, "lead_score %v", score)
		}
	})

	t.Run("date", func(t *testing.T) {
		plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
			{Field: "last_contacted_at", Operator: domain.OperatorBetween, Value: []any{"2024-01-01", "2024-01-31"}},
		})
		require.NoError(t, err)

		cases := map[string]bool{
			"2023-12-31T23:59:59Z": false,
			"2024-01-01":           true,
			"2024-01-15T08:30:00Z": true,
			"2024-01-31T00:00:00Z": true,
			"2024-01-31T00:00:01Z": false,
		}
		for at, want := range cases {
			ok, err := plan.Match(newContact(map[string]any{"last_contacted_at": at}))
			require.NoError(t, err)
			assert.Equal(t, want, ok, "last_contacted_at %s", at)
		}
	})
}

func TestCompileIsEmptyIsUniformAcrossTypes(t *testing.T) {
	reg := testRegistry(t)
	fields := []string{"first_name", "lead_score", "last_contacted_at", "status", "do_not_contact", "tags"}
	empties := map[string]func(field string) map[string]any{
		"missing": func(string) map[string]any { return map[string]any{} },
		"null":    func(f string) map[string]any { return map[string]any{f: nil} },
		"blank":   func(f string) map[string]any { return map[string]any{f: ""} },
		"no tags": func(f string) map[string]any { return map[string]any{f: []any{}} },
	}

	for _, field := range fields {
		isEmptyPlan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{{Field: field, Operator: domain.OperatorIsEmpty}})
		require.NoError(t, err)
		notEmptyPlan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{{Field: field, Operator: domain.OperatorIsNotEmpty}})
		require.NoError(t, err)

		for name, props := range empties {
			entity := newContact(props(field))

			ok, err := isEmptyPlan.Match(entity)
			require.NoError(t, err)
			assert.True(t, ok, "%s is_empty on %s", field, name)

			ok, err = notEmptyPlan.Match(entity)
			require.NoError(t, err)
			assert.False(t, ok, "%s is_not_empty on %s", field, name)
		}
	}
}

func TestCompileNegatedOperatorsMatchEmptyValues(t *testing.T) {
	reg := testRegistry(t)
	blank := newContact(map[string]any{})

	clauses := []domain.FilterClause{
		{Field: "status", Operator: domain.OperatorNotEquals, Value: "lead"},
		{Field: "status", Operator: domain.OperatorNotIn, Value: []any{"lead", "customer"}},
		{Field: "first_name", Operator: domain.OperatorNotContains, Value: "al"},
		{Field: "tags", Operator: domain.OperatorNotContains, Value: "vip"},
	}
	for _, clause := range clauses {
		plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{clause})
		require.NoError(t, err)
		assert.Nil(t, plan.IndexFilter)

		ok, err := plan.Match(blank)
		require.NoError(t, err)
		assert.True(t, ok, "%s %s", clause.Field, clause.Operator)
	}

	positive, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "first_name", Operator: domain.OperatorContains, Value: ""},
	})
	require.NoError(t, err)
	ok, err := positive.Match(blank)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileCaseSensitivity(t *testing.T) {
	reg := testRegistry(t)
	alice := newContact(map[string]any{"first_name": "Alice", "email": "alice@example.com"})

	tests := []struct {
		name   string
		clause domain.FilterClause
		want   bool
	}{
		{"case-insensitive equals", domain.FilterClause{Field: "email", Operator: domain.OperatorEquals, Value: "ALICE@Example.com"}, true},
		{"case-insensitive contains", domain.FilterClause{Field: "email", Operator: domain.OperatorContains, Value: "EXAMPLE"}, true},
		{"case-insensitive in", domain.FilterClause{Field: "email", Operator: domain.OperatorIn, Value: []any{"bob@example.com", "Alice@example.com"}}, true},
		{"case-sensitive equals", domain.FilterClause{Field: "first_name", Operator: domain.OperatorEquals, Value: "alice"}, false},
		{"case-sensitive exact", domain.FilterClause{Field: "first_name", Operator: domain.OperatorEquals, Value: "Alice"}, true},
		{"case-sensitive contains", domain.FilterClause{Field: "first_name", Operator: domain.OperatorContains, Value: "lic"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{tt.clause})
			require.NoError(t, err)
			ok, err := plan.Match(alice)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCompileSystemDateFields(t *testing.T) {
	reg := testRegistry(t)
	entity := newContact(nil)

	plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "created_at", Operator: domain.OperatorGreaterThan, Value: "2000-01-01"},
	})
	require.NoError(t, err)
	ok, err := plan.Match(entity)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileIsOrderIndependent(t *testing.T) {
	reg := testRegistry(t)
	clauses := []domain.FilterClause{
		{Field: "status", Operator: domain.OperatorIn, Value: []any{"lead", "customer"}},
		{Field: "lead_score", Operator: domain.OperatorGreaterThan, Value: 50.0},
		{Field: "email", Operator: domain.OperatorContains, Value: "example.com"},
		{Field: "tags", Operator: domain.OperatorNotContains, Value: "churn-risk"},
	}
	entities := []domain.Entity{
		newContact(map[string]any{"status": "lead", "lead_score": 80.0, "email": "a@example.com"}),
		newContact(map[string]any{"status": "customer", "lead_score": 51.0, "email": "b@example.com", "tags": []any{"churn-risk"}}),
		newContact(map[string]any{"status": "prospect", "lead_score": 99.0, "email": "c@example.com"}),
		newContact(map[string]any{"status": "customer", "lead_score": 50.0, "email": "d@example.com"}),
		newContact(map[string]any{"status": "customer", "lead_score": 75.0, "email": "e@other.org"}),
		newContact(map[string]any{"status": "customer", "lead_score": 90.0, "email": "f@EXAMPLE.com", "tags": []any{"vip"}}),
	}

	base, err := Compile(reg, domain.EntityTypeContact, clauses)
	require.NoError(t, err)
	want := matchIDs(t, base, entities)
	assert.Equal(t, []string{entities[0].ID.String(), entities[5].ID.String()}, want)

	for _, order := range permutations(len(clauses)) {
		reordered := make([]domain.FilterClause, len(clauses))
		for i, idx := range order {
			reordered[i] = clauses[idx]
		}
		plan, err := Compile(reg, domain.EntityTypeContact, reordered)
		require.NoError(t, err)
		if diff := cmp.Diff(want, matchIDs(t, plan, entities)); diff != "" {
			t.Fatalf("order %v changed matches (-want +got):\n%s", order, diff)
		}
		assert.Equal(t, base.IndexFilter, plan.IndexFilter)
	}
}

func TestCompileOrderDoesNotChangeErrors(t *testing.T) {
	reg := testRegistry(t)
	// lead_score rejects the entity; status holds a mistyped value.
	entity := newContact(map[string]any{"status": 5.0, "lead_score": 10.0})
	clauses := []domain.FilterClause{
		{Field: "lead_score", Operator: domain.OperatorGreaterThan, Value: 50.0},
		{Field: "status", Operator: domain.OperatorEquals, Value: "lead"},
	}

	forward, err := Compile(reg, domain.EntityTypeContact, clauses)
	require.NoError(t, err)
	backward, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{clauses[1], clauses[0]})
	require.NoError(t, err)

	_, errForward := forward.Match(entity)
	_, errBackward := backward.Match(entity)
	assert.ErrorIs(t, errForward, ErrValueTypeMismatch)
	assert.ErrorIs(t, errBackward, ErrValueTypeMismatch)
}

func TestCompileStoredTypeMismatchFails(t *testing.T) {
	reg := testRegistry(t)
	plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "lead_score", Operator: domain.OperatorGreaterThan, Value: 10.0},
	})
	require.NoError(t, err)

	_, err = plan.Match(newContact(map[string]any{"lead_score": "high"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueTypeMismatch))
	assert.Contains(t, err.Error(), "lead_score")

	_, err = plan.Count([]domain.Entity{newContact(map[string]any{"lead_score": true})})
	assert.ErrorIs(t, err, ErrValueTypeMismatch)
}

func TestCompileSchemaDrift(t *testing.T) {
	reg := testRegistry(t)
	_, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "status", Operator: domain.OperatorEquals, Value: "lead"},
		{Field: "nickname", Operator: domain.OperatorEquals, Value: "Al"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaDrift)

	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, KindSchemaDrift, compileErr.Kind)
	assert.Equal(t, 1, compileErr.Index)
	assert.Equal(t, "nickname", compileErr.Field)
	assert.Contains(t, err.Error(), "no longer exists")
}

func TestCompileRejectsInvalidClauses(t *testing.T) {
	reg := testRegistry(t)
	_, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "lead_score", Operator: domain.OperatorContains, Value: "1"},
	})
	assert.ErrorIs(t, err, ErrInvalidClause)
	assert.NotErrorIs(t, err, ErrSchemaDrift)

	_, err = Compile(reg, domain.EntityType("vendor"), nil)
	var compileErr *CompileError
	require.True(t, errors.As(err, &compileErr))
	assert.Equal(t, KindUnknownEntityType, compileErr.Kind)
}

func TestCompileIgnoresOtherEntityTypes(t *testing.T) {
	reg := testRegistry(t)
	plan, err := Compile(reg, domain.EntityTypeContact, nil)
	require.NoError(t, err)

	ok, err := plan.Match(newContact(nil))
	require.NoError(t, err)
	assert.True(t, ok)

	company := domain.NewEntity(testOrg, domain.EntityTypeCompany, map[string]any{"name": "Acme"})
	ok, err = plan.Match(company)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileIndexFilterSelection(t *testing.T) {
	reg := testRegistry(t)

	tests := []struct {
		name    string
		clauses []domain.FilterClause
		want    *domain.IndexFilter
	}{
		{
			name:    "indexed enum equals",
			clauses: []domain.FilterClause{{Field: "status", Operator: domain.OperatorEquals, Value: "lead"}},
			want:    &domain.IndexFilter{Field: "status", Kind: domain.IndexFilterEquals, Values: []string{"lead"}},
		},
		{
			name: "indexed clause wins over earlier unindexed clause",
			clauses: []domain.FilterClause{
				{Field: "first_name", Operator: domain.OperatorEquals, Value: "Ada"},
				{Field: "source", Operator: domain.OperatorIn, Value: []any{"website", "event"}},
			},
			want: &domain.IndexFilter{Field: "source", Kind: domain.IndexFilterEquals, Values: []string{"website", "event"}},
		},
		{
			name:    "case-insensitive field is not pushed down",
			clauses: []domain.FilterClause{{Field: "email", Operator: domain.OperatorEquals, Value: "a@b.c"}},
		},
		{
			name:    "unindexed field",
			clauses: []domain.FilterClause{{Field: "first_name", Operator: domain.OperatorEquals, Value: "Ada"}},
		},
		{
			name:    "tags in is not pushed down",
			clauses: []domain.FilterClause{{Field: "tags", Operator: domain.OperatorIn, Value: []any{"vip"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := Compile(reg, domain.EntityTypeContact, tt.clauses)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.IndexFilter)
		})
	}
}

func TestCompileTagsInMatchesAnyElement(t *testing.T) {
	reg := testRegistry(t)
	plan, err := Compile(reg, domain.EntityTypeContact, []domain.FilterClause{
		{Field: "tags", Operator: domain.OperatorIn, Value: []any{"partner", "vip"}},
	})
	require.NoError(t, err)

	ok, err := plan.Match(newContact(map[string]any{"tags": []any{"lead", "vip"}}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = plan.Match(newContact(map[string]any{"tags": []any{"lead"}}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, rest := range permutations(n - 1) {
		for pos := 0; pos <= len(rest); pos++ {
			p := make([]int, 0, n)
			p = append(p, rest[:pos]...)
			p = append(p, n-1)
			p = append(p, rest[pos:]...)
			out = append(out, p)
		}
	}
	return out
}
