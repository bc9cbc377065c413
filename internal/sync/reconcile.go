package sync

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marcnester/glycofy-api/internal/domain"
)

// Reconciler upserts canonical activities against storage, keyed by the
// (user, provider, external id) natural key.
type Reconciler struct {
	activities domain.ActivityRepository
	logger     *log.Logger
	now        func() time.Time
}

// ReconcilerOption configures optional behaviour for the Reconciler.
type ReconcilerOption func(*Reconciler)

// WithReconcilerLogger overrides the logger used to report write failures.
func WithReconcilerLogger(logger *log.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler constructs a Reconciler.
func NewReconciler(activities domain.ActivityRepository, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		activities: activities,
		logger:     log.New(log.Writer(), "[reconciler] ", log.LstdFlags),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Upsert writes one canonical record. The record is inserted when its
// natural key is unseen, rewritten when any mutable field changed, and
// left alone otherwise. Write errors are logged and returned; the next
// scheduled pass retries naturally since the upstream record persists.
func (r *Reconciler) Upsert(ctx context.Context, userID, provider string, incoming domain.Activity) (domain.UpsertOutcome, error) {
	if incoming.ExternalID == "" {
		return domain.UpsertUnchanged, ErrRecordMalformed
	}

	existing, err := r.activities.FindBySource(ctx, userID, provider, incoming.ExternalID)
	if err != nil {
		return domain.UpsertUnchanged, fmt.Errorf("lookup %s/%s: %w", provider, incoming.ExternalID, err)
	}

	now := r.now().UTC()

	if existing == nil {
		incoming.ID = uuid.NewString()
		incoming.UserID = userID
		incoming.Provider = provider
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		if err := r.activities.Insert(ctx, incoming); err != nil {
			r.logger.Printf("insert failed (provider=%s, external_id=%s): %v", provider, incoming.ExternalID, err)
			return domain.UpsertUnchanged, err
		}
		return domain.UpsertCreated, nil
	}

	changed := mergeActivity(existing, incoming)
	if len(changed) == 0 {
		return domain.UpsertUnchanged, nil
	}

	existing.UpdatedAt = now
	if err := r.activities.Update(ctx, *existing); err != nil {
		r.logger.Printf("update failed (provider=%s, external_id=%s, fields=%v): %v", provider, incoming.ExternalID, changed, err)
		return domain.UpsertUnchanged, err
	}
	return domain.UpsertUpdated, nil
}

// mergeActivity applies incoming field values onto existing and returns
// the names of the fields that changed. Sport and title carry a
// regression guard: a specific stored label is never replaced by a
// generic one, while a generic label may always be upgraded.
func mergeActivity(existing *domain.Activity, incoming domain.Activity) []string {
	var changed []string

	if incoming.Sport != existing.Sport && !(isGenericSport(incoming.Sport) && !isGenericSport(existing.Sport)) {
		existing.Sport = incoming.Sport
		changed = append(changed, "sport")
	}

	if incoming.Title != existing.Title && !(isGenericTitle(incoming.Title, incoming.Sport) && !isGenericTitle(existing.Title, existing.Sport)) {
		existing.Title = incoming.Title
		changed = append(changed, "title")
	}

	if !incoming.StartedAt.IsZero() && !incoming.StartedAt.Equal(existing.StartedAt) {
		existing.StartedAt = incoming.StartedAt
		changed = append(changed, "started_at")
	}
	if incoming.DurationSec != existing.DurationSec {
		existing.DurationSec = incoming.DurationSec
		changed = append(changed, "duration_sec")
	}
	if incoming.DistanceM != existing.DistanceM {
		existing.DistanceM = incoming.DistanceM
		changed = append(changed, "distance_m")
	}
	if incoming.Kcal != existing.Kcal {
		existing.Kcal = incoming.Kcal
		changed = append(changed, "kcal")
	}

	return changed
}

func isGenericSport(sport string) bool {
	lower := strings.ToLower(strings.TrimSpace(sport))
	return lower == "" || lower == "workout"
}

func isGenericTitle(title, sport string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	return lower == "" || lower == "workout" || lower == strings.ToLower(strings.TrimSpace(sport))
}
