// Package auth handles user credentials and session tokens: bcrypt password
// hashes, signed JWTs with a unique token ID, and a revocation list so a
// logged-out token stops working before it expires.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account for profile with the given credential.
	Register(ctx context.Context, profile Profile, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

// Profile is the account information supplied at registration.
// An empty DefaultCurrency means models.DefaultCurrencyCode.
type Profile struct {
	Email           string
	DisplayName     string
	DefaultCurrency string
}

// Sessions issues, checks and revokes bearer tokens.
type Sessions struct {
	tokens      *JWTManager
	revocations RevocationList
}

// NewSessions combines a token manager with a revocation list.
func NewSessions(tokens *JWTManager, revocations RevocationList) *Sessions {
	return &Sessions{tokens: tokens, revocations: revocations}
}

// Issue signs a new token for user.
func (s *Sessions) Issue(user *models.User) (string, error) {
	return s.tokens.Generate(user)
}

// Verify validates tokenString and rejects tokens on the revocation list.
func (s *Sessions) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}

	return claims, nil
}

// Revoke blocks the token identified by tokenID until it would have expired anyway.
func (s *Sessions) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	return s.revocations.Revoke(ctx, tokenID, expiresAt)
}
