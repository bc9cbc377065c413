package domain

import (
	"context"
	"errors"
	"time"
)

// ErrAccountNotLinked is returned when a user has no linked account for the provider.
var ErrAccountNotLinked = errors.New("account not linked")

// LinkedAccount holds a user's OAuth grant for one provider. At most one
// row exists per (user, provider). Credential fields are mutated only by
// the token manager and always written as a whole record.
type LinkedAccount struct {
	ID           string
	UserID       string
	Provider     string
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch seconds
	AthleteID    string
	Scope        string
	Linked       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExpiresWithin reports whether the access token expires within d of now.
func (a LinkedAccount) ExpiresWithin(now time.Time, d time.Duration) bool {
	return a.ExpiresAt <= now.Add(d).Unix()
}

// AccountRepository captures persistence operations for linked accounts.
type AccountRepository interface {
	ListLinked(ctx context.Context, provider string) ([]LinkedAccount, error)
	FindByUser(ctx context.Context, userID, provider string) (*LinkedAccount, error)
	// SaveCredentials persists the access token, refresh token and expiry
	// of the supplied account as a single write.
	SaveCredentials(ctx context.Context, account LinkedAccount) error
	// Link inserts the account or, if the (user, provider) pair already
	// exists, replaces its credential fields.
	Link(ctx context.Context, account LinkedAccount) (*LinkedAccount, error)
}
