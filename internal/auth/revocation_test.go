package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationList(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	l := NewMemoryRevocationList()
	l.now = func() time.Time { return now }

	require.NoError(t, l.Revoke(ctx, "live", now.Add(time.Hour)))
	require.NoError(t, l.Revoke(ctx, "stale", now.Add(-time.Minute)))

	revoked, err := l.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = l.IsRevoked(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, revoked, "already expired tokens need no entry")

	revoked, err = l.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = l.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.False(t, revoked, "entry should lapse with the token")
	assert.Empty(t, l.revoked)
}

func TestConnectRedisBadURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not a url")
	assert.Error(t, err)
}
