package graphql

import (
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"go.uber.org/zap"

	"github.com/rpattn/engcrm/internal/middleware"
)

// NewServer serves the schema over GET and POST with resolver logging.
func NewServer(r *Resolver, logger *zap.Logger) *handler.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("graphql")

	srv := handler.New(NewExecutableSchema(r, logger))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.Use(middleware.NewResolverLogger(logger))
	return srv
}
