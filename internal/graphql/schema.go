package graphql

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

//go:embed schema.graphqls
var schemaSDL string

var parsedSchema = gqlparser.MustLoadSchema(&ast.Source{Name: "schema.graphqls", Input: schemaSDL})

// rootResolver resolves one Query or Mutation field from its coerced arguments.
type rootResolver func(ctx context.Context, args map[string]any) (any, error)

// executableSchema runs validated operations against the Resolver. Root
// fields go through the operation's resolver middleware, so field
// interceptors registered on the server see every resolver call. Nested
// fields are projected from the resolver's result by their JSON names.
type executableSchema struct {
	// Complexity is never consulted: no complexity limit extension is installed.
	gql.ExecutableSchema

	logger    *zap.Logger
	queries   map[string]rootResolver
	mutations map[string]rootResolver
}

// NewExecutableSchema binds the schema to a resolver.
func NewExecutableSchema(r *Resolver, logger *zap.Logger) gql.ExecutableSchema {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &executableSchema{
		logger:    logger,
		queries:   r.queryResolvers(),
		mutations: r.mutationResolvers(),
	}
}

func (e *executableSchema) Schema() *ast.Schema {
	return parsedSchema
}

func (e *executableSchema) Exec(ctx context.Context) gql.ResponseHandler {
	opCtx := gql.GetOperationContext(ctx)

	var (
		object    string
		resolvers map[string]rootResolver
	)
	switch opCtx.Operation.Operation {
	case ast.Query:
		object, resolvers = "Query", e.queries
	case ast.Mutation:
		object, resolvers = "Mutation", e.mutations
	default:
		return gql.OneShot(gql.ErrorResponse(ctx, "unsupported GraphQL operation"))
	}

	first := true
	return func(ctx context.Context) *gql.Response {
		if !first {
			return nil
		}
		first = false
		data, errs := e.execRoot(ctx, opCtx, object, resolvers)
		return &gql.Response{Data: data, Errors: errs}
	}
}

// execRoot resolves root fields in document order. Mutations therefore run
// one after another.
func (e *executableSchema) execRoot(ctx context.Context, opCtx *gql.OperationContext, object string, resolvers map[string]rootResolver) (json.RawMessage, gqlerror.List) {
	var (
		buf     bytes.Buffer
		errs    gqlerror.List
		nullify bool
	)

	buf.WriteByte('{')
	for i, field := range gql.CollectFields(opCtx, opCtx.Operation.SelectionSet, []string{object}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, field.Alias)

		if field.Name == "__typename" {
			writeValue(&buf, object)
			continue
		}

		path := ast.Path{ast.PathName(field.Alias)}
		value, err := e.resolveRoot(ctx, opCtx, object, field, resolvers)
		if err == nil {
			var fieldBuf bytes.Buffer
			if err = e.project(&fieldBuf, opCtx, value, field.Definition.Type, field.Selections); err == nil {
				buf.Write(fieldBuf.Bytes())
				continue
			}
		}

		errs = append(errs, presentError(e.logger, path, field.Position, err))
		if field.Definition.Type.NonNull {
			nullify = true
		}
		buf.WriteString("null")
	}
	buf.WriteByte('}')

	if nullify {
		return json.RawMessage("null"), errs
	}
	return buf.Bytes(), errs
}

func (e *executableSchema) resolveRoot(
	ctx context.Context,
	opCtx *gql.OperationContext,
	object string,
	field gql.CollectedField,
	resolvers map[string]rootResolver,
) (any, error) {
	resolve, ok := resolvers[field.Name]
	if !ok {
		return nil, fmt.Errorf("%w: field %s.%s cannot be resolved", errBadInput, object, field.Name)
	}

	args := field.ArgumentMap(opCtx.Variables)
	fc := &gql.FieldContext{
		Object:     object,
		Field:      field,
		Args:       args,
		IsMethod:   true,
		IsResolver: true,
	}
	ctx = gql.WithFieldContext(ctx, fc)

	next := func(ctx context.Context) (any, error) {
		return resolve(ctx, args)
	}
	if opCtx.ResolverMiddleware == nil {
		return next(ctx)
	}
	return opCtx.ResolverMiddleware(ctx, next)
}

// project writes value shaped by the selection set. The value is first
// reduced to its JSON form so model structs and maps are walked alike.
func (e *executableSchema) project(buf *bytes.Buffer, opCtx *gql.OperationContext, value any, typ *ast.Type, sel ast.SelectionSet) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode resolver result: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return fmt.Errorf("failed to decode resolver result: %w", err)
	}
	return e.write(buf, opCtx, generic, typ, sel)
}

func (e *executableSchema) write(buf *bytes.Buffer, opCtx *gql.OperationContext, value any, typ *ast.Type, sel ast.SelectionSet) error {
	if value == nil {
		if typ.NonNull {
			return fmt.Errorf("non-null %s resolved to null", typ.String())
		}
		buf.WriteString("null")
		return nil
	}

	if typ.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			return fmt.Errorf("expected a list for %s, got %T", typ.String(), value)
		}
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := e.write(buf, opCtx, item, typ.Elem, sel); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}

	def := parsedSchema.Types[typ.Name()]
	if def == nil || def.Kind != ast.Object {
		writeValue(buf, value)
		return nil
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("expected an object for %s, got %T", def.Name, value)
	}
	buf.WriteByte('{')
	for i, field := range gql.CollectFields(opCtx, sel, []string{def.Name}) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, field.Alias)
		if field.Name == "__typename" {
			writeValue(buf, def.Name)
			continue
		}
		if err := e.write(buf, opCtx, obj[field.Name], field.Definition.Type, field.Selections); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeKey(buf *bytes.Buffer, key string) {
	writeValue(buf, key)
	buf.WriteByte(':')
}

func writeValue(buf *bytes.Buffer, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		buf.WriteString("null")
		return
	}
	buf.Write(raw)
}
