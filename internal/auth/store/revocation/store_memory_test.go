package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chariblock/pkg/platform/sentinel"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(WithClock(func() time.Time { return now }))

	revoked, err := trl.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = trl.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(time.Minute)
	revoked, err = trl.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entries lapse with the token")
}

func TestInMemoryTRL_RejectsNonPositiveTTL(t *testing.T) {
	err := NewInMemoryTRL().RevokeToken(context.Background(), "jti", 0)
	assert.True(t, errors.Is(err, sentinel.ErrInvalidState))
}

func TestInMemoryTRL_EmptyJTIIsIgnored(t *testing.T) {
	trl := NewInMemoryTRL()
	require.NoError(t, trl.RevokeToken(context.Background(), "", time.Minute))
	revoked, err := trl.IsTokenRevoked(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
