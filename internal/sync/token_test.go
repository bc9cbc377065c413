package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/strava"
)

type memoryAccountRepo struct {
	accounts map[string]domain.LinkedAccount
	saveErr  error
	saves    int
}

func newMemoryAccountRepo(accounts ...domain.LinkedAccount) *memoryAccountRepo {
	repo := &memoryAccountRepo{accounts: make(map[string]domain.LinkedAccount)}
	for _, account := range accounts {
		repo.accounts[account.UserID+"/"+account.Provider] = account
	}
	return repo
}

func (m *memoryAccountRepo) ListLinked(_ context.Context, provider string) ([]domain.LinkedAccount, error) {
	var out []domain.LinkedAccount
	for _, account := range m.accounts {
		if account.Provider == provider && account.Linked {
			out = append(out, account)
		}
	}
	return out, nil
}

func (m *memoryAccountRepo) FindByUser(_ context.Context, userID, provider string) (*domain.LinkedAccount, error) {
	if account, ok := m.accounts[userID+"/"+provider]; ok {
		copied := account
		return &copied, nil
	}
	return nil, domain.ErrAccountNotLinked
}

func (m *memoryAccountRepo) SaveCredentials(_ context.Context, account domain.LinkedAccount) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.accounts[account.UserID+"/"+account.Provider] = account
	return nil
}

func (m *memoryAccountRepo) Link(_ context.Context, account domain.LinkedAccount) (*domain.LinkedAccount, error) {
	account.Linked = true
	m.accounts[account.UserID+"/"+account.Provider] = account
	return &account, nil
}

type stubRefresher struct {
	token *strava.TokenResponse
	err   error
	calls int
}

func (s *stubRefresher) RefreshToken(_ context.Context, _ string) (*strava.TokenResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func linkedAccount(expiresAt int64) domain.LinkedAccount {
	return domain.LinkedAccount{
		ID:           "acct-1",
		UserID:       "user-1",
		Provider:     "strava",
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
		ExpiresAt:    expiresAt,
		Linked:       true,
	}
}

func TestEnsureValidCredentialReturnsFreshTokenWithoutRefresh(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	account := linkedAccount(now.Add(time.Hour).Unix())
	refresher := &stubRefresher{}

	m := NewTokenManager(newMemoryAccountRepo(account), refresher)
	m.now = fixedClock(now)

	token, err := m.EnsureValidCredential(context.Background(), &account)
	require.NoError(t, err)
	require.Equal(t, "old-access", token)
	require.Zero(t, refresher.calls)
}

func TestEnsureValidCredentialRefreshesNearExpiry(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	account := linkedAccount(now.Add(30 * time.Second).Unix())
	repo := newMemoryAccountRepo(account)
	refresher := &stubRefresher{token: &strava.TokenResponse{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		ExpiresAt:    now.Add(6 * time.Hour).Unix(),
	}}

	m := NewTokenManager(repo, refresher)
	m.now = fixedClock(now)

	token, err := m.EnsureValidCredential(context.Background(), &account)
	require.NoError(t, err)
	require.Equal(t, "new-access", token)
	require.Equal(t, 1, refresher.calls)

	// The rotated credential is persisted as a whole record.
	require.Equal(t, 1, repo.saves)
	persisted := repo.accounts["user-1/strava"]
	require.Equal(t, "new-access", persisted.AccessToken)
	require.Equal(t, "new-refresh", persisted.RefreshToken)
	require.Equal(t, now.Add(6*time.Hour).Unix(), persisted.ExpiresAt)
}

func TestEnsureValidCredentialKeepsOldRefreshToken(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	account := linkedAccount(now.Unix())
	repo := newMemoryAccountRepo(account)
	refresher := &stubRefresher{token: &strava.TokenResponse{
		AccessToken: "new-access",
		ExpiresAt:   now.Add(6 * time.Hour).Unix(),
	}}

	m := NewTokenManager(repo, refresher)
	m.now = fixedClock(now)

	_, err := m.EnsureValidCredential(context.Background(), &account)
	require.NoError(t, err)
	require.Equal(t, "old-refresh", repo.accounts["user-1/strava"].RefreshToken)
}

func TestEnsureValidCredentialFailsWithoutStoredTokens(t *testing.T) {
	m := NewTokenManager(newMemoryAccountRepo(), &stubRefresher{})

	noAccess := linkedAccount(0)
	noAccess.AccessToken = ""
	_, err := m.EnsureValidCredential(context.Background(), &noAccess)
	require.ErrorIs(t, err, ErrCredentialInvalid)

	noRefresh := linkedAccount(time.Now().Unix())
	noRefresh.RefreshToken = ""
	_, err = m.EnsureValidCredential(context.Background(), &noRefresh)
	require.ErrorIs(t, err, ErrCredentialInvalid)
}

func TestEnsureValidCredentialWrapsRefreshFailure(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	account := linkedAccount(now.Unix())
	refresher := &stubRefresher{err: errors.New("invalid_grant")}

	m := NewTokenManager(newMemoryAccountRepo(account), refresher)
	m.now = fixedClock(now)

	_, err := m.EnsureValidCredential(context.Background(), &account)
	require.ErrorIs(t, err, ErrCredentialInvalid)
	require.Contains(t, err.Error(), "invalid_grant")
}

func TestEnsureValidCredentialSurfacesPersistFailure(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	account := linkedAccount(now.Unix())
	repo := newMemoryAccountRepo(account)
	repo.saveErr = errors.New("connection reset")
	refresher := &stubRefresher{token: &strava.TokenResponse{AccessToken: "new-access", ExpiresAt: now.Add(time.Hour).Unix()}}

	m := NewTokenManager(repo, refresher)
	m.now = fixedClock(now)

	_, err := m.EnsureValidCredential(context.Background(), &account)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCredentialInvalid)
}
