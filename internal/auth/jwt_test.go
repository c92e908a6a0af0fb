package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
)

func testUser() *models.User {
	return models.NewUser("alice@example.com", "Alice", "hash")
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := testUser()

	token, err := m.Generate(user)
	require.NoError(t, err)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTUniqueTokenIDs(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := testUser()

	first, err := m.Generate(user)
	require.NoError(t, err)
	second, err := m.Generate(user)
	require.NoError(t, err)

	c1, err := m.Validate(first)
	require.NoError(t, err)
	c2, err := m.Validate(second)
	require.NoError(t, err)
	assert.NotEqual(t, c1.ID, c2.ID)
}

func TestJWTRejects(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := testUser()

	good, err := m.Generate(user)
	require.NoError(t, err)

	expired := NewJWTManager("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Generate(user)
	require.NoError(t, err)

	other := NewJWTManager("other-secret", time.Hour)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: user.ID})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager *JWTManager
		token   string
	}{
		{"garbage", m, "not-a-token"},
		{"expired", m, old},
		{"wrong secret", other, good},
		{"alg none", m, unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.manager.Validate(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestSessionsRevoke(t *testing.T) {
	ctx := context.Background()
	m := NewJWTManager("test-secret", time.Hour)
	sessions := NewSessions(m, NewMemoryRevocationList())

	token, err := sessions.Issue(testUser())
	require.NoError(t, err)

	claims, err := sessions.Verify(ctx, token)
	require.NoError(t, err)

	require.NoError(t, sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time))

	_, err = sessions.Verify(ctx, token)
	assert.ErrorIs(t, err, ErrRevokedToken)

	// a fresh login is unaffected
	again, err := sessions.Issue(testUser())
	require.NoError(t, err)
	_, err = sessions.Verify(ctx, again)
	assert.NoError(t, err)
}
