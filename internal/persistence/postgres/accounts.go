package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcnester/glycofy-api/internal/domain"
)

const accountColumns = `id, user_id, provider, access_token, refresh_token, expires_at, athlete_id, scope, linked, created_at, updated_at`

// AccountRepository persists OAuth linked accounts.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository constructs an AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// ListLinked returns all linked accounts for the provider in a stable
// order, so a sync pass always visits users in the same sequence.
func (r *AccountRepository) ListLinked(ctx context.Context, provider string) ([]domain.LinkedAccount, error) {
	const query = `SELECT ` + accountColumns + `
        FROM oauth_accounts WHERE provider=$1 AND linked ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.LinkedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// FindByUser looks up the account for (user, provider). A missing row
// returns (nil, nil).
func (r *AccountRepository) FindByUser(ctx context.Context, userID, provider string) (*domain.LinkedAccount, error) {
	const query = `SELECT ` + accountColumns + `
        FROM oauth_accounts WHERE user_id=$1 AND provider=$2`

	row := r.pool.QueryRow(ctx, query, userID, provider)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// SaveCredentials writes the credential fields of the account as one
// statement, so a refresh never leaves a row with mixed old and new values.
func (r *AccountRepository) SaveCredentials(ctx context.Context, account domain.LinkedAccount) error {
	const stmt = `UPDATE oauth_accounts
        SET access_token=$3, refresh_token=$4, expires_at=$5, updated_at=$6
        WHERE user_id=$1 AND provider=$2`

	tag, err := r.pool.Exec(ctx, stmt,
		account.UserID,
		account.Provider,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotLinked
	}
	return nil
}

// Link inserts the account or replaces the credential fields of the
// existing (user, provider) row, enforcing the one-account-per-pair
// invariant through the unique constraint.
func (r *AccountRepository) Link(ctx context.Context, account domain.LinkedAccount) (*domain.LinkedAccount, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	const stmt = `INSERT INTO oauth_accounts (` + accountColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true,$9,$9)
        ON CONFLICT (user_id, provider) DO UPDATE
        SET access_token=EXCLUDED.access_token,
            refresh_token=EXCLUDED.refresh_token,
            expires_at=EXCLUDED.expires_at,
            athlete_id=EXCLUDED.athlete_id,
            scope=EXCLUDED.scope,
            linked=true,
            updated_at=EXCLUDED.updated_at
        RETURNING ` + accountColumns

	row := r.pool.QueryRow(ctx, stmt,
		account.ID,
		account.UserID,
		account.Provider,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
		account.AthleteID,
		account.Scope,
		now,
	)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*domain.LinkedAccount, error) {
	var a domain.LinkedAccount
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.AccessToken,
		&a.RefreshToken,
		&a.ExpiresAt,
		&a.AthleteID,
		&a.Scope,
		&a.Linked,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
