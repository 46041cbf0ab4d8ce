package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrganizationScope(t *testing.T) {
	_, err := RequireOrganization(context.Background())
	assert.ErrorIs(t, err, ErrMissingScope)

	_, err = RequireOrganization(ContextWithOrganizationID(context.Background(), uuid.Nil))
	assert.ErrorIs(t, err, ErrMissingScope)

	org := uuid.New()
	got, err := RequireOrganization(ContextWithOrganizationID(context.Background(), org))
	require.NoError(t, err)
	assert.Equal(t, org, got)
}

func TestUserID(t *testing.T) {
	assert.Empty(t, UserIDFromContext(context.Background()))
	assert.Equal(t, "user-7", UserIDFromContext(ContextWithUserID(context.Background(), " user-7 ")))
}
