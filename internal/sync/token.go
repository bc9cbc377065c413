// Package sync implements the activity synchronization engine: token
// refresh, feed normalization, and idempotent reconciliation against
// Postgres.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/strava"
)

// refreshThreshold is how close to expiry a token may get before a sync
// pass refreshes it. The margin avoids tokens expiring mid-request.
const refreshThreshold = 60 * time.Second

type tokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*strava.TokenResponse, error)
}

// TokenManager keeps a linked account's access token usable, refreshing
// and persisting it when it nears expiry.
type TokenManager struct {
	accounts domain.AccountRepository
	client   tokenRefresher
	now      func() time.Time
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(accounts domain.AccountRepository, client tokenRefresher) *TokenManager {
	return &TokenManager{accounts: accounts, client: client, now: time.Now}
}

// EnsureValidCredential returns a usable access token for the account.
// Tokens expiring more than refreshThreshold from now are returned as-is
// without a network call. Otherwise the refresh token is exchanged and
// the whole credential record is persisted before returning; the provider
// may rotate the refresh token, and the old one is kept when it does not.
func (m *TokenManager) EnsureValidCredential(ctx context.Context, account *domain.LinkedAccount) (string, error) {
	if account.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token stored", ErrCredentialInvalid)
	}

	if !account.ExpiresWithin(m.now(), refreshThreshold) {
		return account.AccessToken, nil
	}

	if account.RefreshToken == "" {
		return "", fmt.Errorf("%w: token expired and no refresh token stored", ErrCredentialInvalid)
	}

	token, err := m.client.RefreshToken(ctx, account.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialInvalid, err)
	}

	account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		account.RefreshToken = token.RefreshToken
	}
	account.ExpiresAt = token.ExpiresAt

	if err := m.accounts.SaveCredentials(ctx, *account); err != nil {
		return "", fmt.Errorf("persist refreshed credentials: %w", err)
	}
	return account.AccessToken, nil
}
