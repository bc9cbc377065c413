// Package domain defines the core types shared across the sync engine.
package domain

import (
	"context"
	"errors"
	"time"
)

// ErrActivityNotFound is returned when an activity cannot be located.
var ErrActivityNotFound = errors.New("activity not found")

// Activity is the canonical workout record stored in Postgres. One row
// exists per (user, provider, external id); the sync engine upserts
// against that natural key.
type Activity struct {
	ID          string
	UserID      string
	Provider    string
	ExternalID  string
	Sport       string
	Title       string
	StartedAt   time.Time
	DurationSec int
	DistanceM   int // metres, 0 when the provider reported none
	Kcal        int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Cursor models the pagination token for activity listings.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// ActivityRepository captures persistence operations for canonical activities.
type ActivityRepository interface {
	FindBySource(ctx context.Context, userID, provider, externalID string) (*Activity, error)
	Insert(ctx context.Context, activity Activity) error
	Update(ctx context.Context, activity Activity) error
	ListByUser(ctx context.Context, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
}
