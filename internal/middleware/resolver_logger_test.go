package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolverLoggerRecordsFieldAndError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ext := NewResolverLogger(zap.New(core))
	assert.Equal(t, "ResolverLogger", ext.ExtensionName())
	assert.NoError(t, ext.Validate(nil))

	ctx := graphql.WithFieldContext(context.Background(), &graphql.FieldContext{
		Object: "Mutation",
		Field:  graphql.CollectedField{Field: &ast.Field{Name: "refreshSmartList"}},
	})

	res, err := ext.InterceptField(ctx, func(context.Context) (any, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, res)

	boom := errors.New("boom")
	_, err = ext.InterceptField(ctx, func(context.Context) (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	entries := logs.FilterMessage("graphql resolver").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "Mutation.refreshSmartList", entries[1].ContextMap()["field"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
