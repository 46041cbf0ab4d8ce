package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/engcrm/internal/auth"
)

// Request headers that carry tenant and user scope from the fronting gateway.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderUserID         = "X-User-ID"
)

// ScopeMiddleware copies the scope headers into the request context. A
// malformed organization ID is rejected; a missing one is left for handlers
// to refuse.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if raw := strings.TrimSpace(r.Header.Get(HeaderOrganizationID)); raw != "" {
			organizationID, err := uuid.Parse(raw)
			if err != nil || organizationID == uuid.Nil {
				http.Error(w, "invalid "+HeaderOrganizationID+" header", http.StatusBadRequest)
				return
			}
			ctx = auth.ContextWithOrganizationID(ctx, organizationID)
		}
		if userID := r.Header.Get(HeaderUserID); userID != "" {
			ctx = auth.ContextWithUserID(ctx, userID)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
