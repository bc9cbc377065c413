package outbox

import "time"

// Event type identifiers recorded by the activity repository.
const (
	EventActivityCreated = "activity.sync.created"
	EventActivityUpdated = "activity.sync.updated"
)

// SyncTopic carries all activity sync events.
const SyncTopic = "activity_sync_events"

// ActivitySynced is the payload published when the reconciler creates or
// rewrites a canonical activity.
type ActivitySynced struct {
	ActivityID  string    `json:"activity_id"`
	UserID      string    `json:"user_id"`
	Provider    string    `json:"provider"`
	ExternalID  string    `json:"external_id"`
	Sport       string    `json:"sport"`
	Title       string    `json:"title"`
	StartedAt   time.Time `json:"started_at"`
	DurationSec int       `json:"duration_sec"`
	DistanceM   int       `json:"distance_m"`
	Kcal        int       `json:"kcal"`
	OccurredAt  time.Time `json:"occurred_at"`
}
