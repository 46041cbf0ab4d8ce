package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	organizationIDKey contextKey = "organizationID"
	userIDKey         contextKey = "userID"
)

// ErrMissingScope is returned when a request carries no organization scope.
var ErrMissingScope = errors.New("organization scope is required")

// ContextWithOrganizationID returns a new context that carries the authenticated organization scope.
func ContextWithOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, organizationIDKey, id)
}

// OrganizationIDFromContext retrieves the authenticated organization scope from the context, if any.
func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(organizationIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ContextWithUserID returns a new context that carries the acting user.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, strings.TrimSpace(userID))
}

// UserIDFromContext returns the acting user, or an empty string.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// RequireOrganization returns the organization scope or ErrMissingScope.
func RequireOrganization(ctx context.Context) (uuid.UUID, error) {
	id, ok := OrganizationIDFromContext(ctx)
	if !ok {
		return uuid.Nil, ErrMissingScope
	}
	return id, nil
}
