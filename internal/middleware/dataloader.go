package middleware

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/engcrm/internal/auth"
	"github.com/rpattn/engcrm/internal/entityloader"
	"github.com/rpattn/engcrm/internal/repository"
)

type ctxKey string

const entityLoaderKey ctxKey = "entityLoader"

// DataLoaderMiddleware attaches an organization scoped entity loader to the
// request context. Requests without a scope get no loader.
func DataLoaderMiddleware(repo repository.EntityRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			organizationID, ok := auth.OrganizationIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			loader := entityloader.NewEntityLoader(repo, organizationID)
			ctx := context.WithValue(r.Context(), entityLoaderKey, loader.Loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EntityLoaderFromContext retrieves the dataloader from context
func EntityLoaderFromContext(ctx context.Context) *dataloader.Loader {
	if l, ok := ctx.Value(entityLoaderKey).(*dataloader.Loader); ok {
		return l
	}
	return nil
}
