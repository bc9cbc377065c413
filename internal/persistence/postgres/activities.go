// Package postgres provides pgx-backed persistence for linked accounts,
// canonical activities, and the sync event outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/observability"
	"github.com/marcnester/glycofy-api/internal/outbox"
)

const activityColumns = `id, user_id, provider, external_id, sport, title, started_at, duration_sec, distance_m, kcal, created_at, updated_at`

// ActivityRepository persists canonical activities. Writes record the
// matching sync event in the outbox table inside the same transaction.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository constructs an ActivityRepository.
func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

// FindBySource looks an activity up by its natural key. A missing row
// returns (nil, nil).
func (r *ActivityRepository) FindBySource(ctx context.Context, userID, provider, externalID string) (*domain.Activity, error) {
	const query = `SELECT ` + activityColumns + `
        FROM activities WHERE user_id=$1 AND provider=$2 AND external_id=$3`

	row := r.pool.QueryRow(ctx, query, userID, provider, externalID)
	activity, err := scanActivity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return activity, nil
}

// Insert persists a new activity and its created event atomically.
func (r *ActivityRepository) Insert(ctx context.Context, activity domain.Activity) error {
	const stmt = `INSERT INTO activities (` + activityColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		activity.UserID,
		activity.Provider,
		activity.ExternalID,
		activity.Sport,
		activity.Title,
		activity.StartedAt,
		activity.DurationSec,
		activity.DistanceM,
		activity.Kcal,
		activity.CreatedAt,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if err := insertOutbox(ctx, tx, activity, outbox.EventActivityCreated); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// Update rewrites an existing activity and records its updated event.
func (r *ActivityRepository) Update(ctx context.Context, activity domain.Activity) error {
	const stmt = `UPDATE activities
        SET sport=$2, title=$3, started_at=$4, duration_sec=$5, distance_m=$6, kcal=$7, updated_at=$8
        WHERE id=$1`

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, stmt,
		activity.ID,
		activity.Sport,
		activity.Title,
		activity.StartedAt,
		activity.DurationSec,
		activity.DistanceM,
		activity.Kcal,
		activity.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}

	if err := insertOutbox(ctx, tx, activity, outbox.EventActivityUpdated); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordActivityPersisted(activity.UpdatedAt)
	return nil
}

// ListByUser returns activities for a user ordered by start time, newest
// first, with keyset pagination.
func (r *ActivityRepository) ListByUser(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Activity, *domain.Cursor, error) {
	args := []interface{}{userID, limit}
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id=$1`

	if cursor != nil {
		query += ` AND (started_at, id) < ($3, $4)`
		args = append(args, cursor.StartedAt, cursor.ID)
	}
	query += ` ORDER BY started_at DESC, id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0, limit)
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *activity)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		last := results[len(results)-1]
		next = &domain.Cursor{StartedAt: last.StartedAt, ID: last.ID}
	}
	return results, next, nil
}

func scanActivity(row pgx.Row) (*domain.Activity, error) {
	var a domain.Activity
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Provider,
		&a.ExternalID,
		&a.Sport,
		&a.Title,
		&a.StartedAt,
		&a.DurationSec,
		&a.DistanceM,
		&a.Kcal,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, activity domain.Activity, eventType string) error {
	payload, err := json.Marshal(outbox.ActivitySynced{
		ActivityID:  activity.ID,
		UserID:      activity.UserID,
		Provider:    activity.Provider,
		ExternalID:  activity.ExternalID,
		Sport:       activity.Sport,
		Title:       activity.Title,
		StartedAt:   activity.StartedAt,
		DurationSec: activity.DurationSec,
		DistanceM:   activity.DistanceM,
		Kcal:        activity.Kcal,
		OccurredAt:  activity.UpdatedAt,
	})
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5)`

	_, err = tx.Exec(ctx, stmt,
		activity.ID,
		eventType,
		outbox.SyncTopic,
		activity.UserID,
		payload,
	)
	return err
}
