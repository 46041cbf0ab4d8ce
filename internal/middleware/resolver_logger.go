package middleware

import (
	"context"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"go.uber.org/zap"
)

// ResolverLoggerExtension logs resolver execution times
type ResolverLoggerExtension struct {
	logger *zap.Logger
}

var (
	_ graphql.HandlerExtension = (*ResolverLoggerExtension)(nil)
	_ graphql.FieldInterceptor = (*ResolverLoggerExtension)(nil)
)

// NewResolverLogger creates the extension.
func NewResolverLogger(logger *zap.Logger) *ResolverLoggerExtension {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolverLoggerExtension{logger: logger}
}

// ExtensionName implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) ExtensionName() string {
	return "ResolverLogger"
}

// Validate implements graphql.HandlerExtension
func (r *ResolverLoggerExtension) Validate(schema graphql.ExecutableSchema) error {
	return nil
}

// InterceptField logs each resolver duration and errors
func (r *ResolverLoggerExtension) InterceptField(ctx context.Context, next graphql.Resolver) (any, error) {
	start := time.Now()
	res, err := next(ctx)

	fields := []zap.Field{zap.Duration("duration", time.Since(start))}
	if fc := graphql.GetFieldContext(ctx); fc != nil {
		fields = append(fields, zap.String("field", fc.Object+"."+fc.Field.Name))
	}
	if err != nil {
		r.logger.Warn("graphql resolver", append(fields, zap.Error(err))...)
		return res, err
	}
	r.logger.Debug("graphql resolver", fields...)
	return res, err
}
