package domain

// UpsertOutcome classifies the effect of reconciling one record.
type UpsertOutcome int

const (
	UpsertCreated UpsertOutcome = iota
	UpsertUpdated
	UpsertUnchanged
)

// SyncResult summarises one sync pass for one account. It is not
// persisted; the scheduler consumes it for logging and telemetry.
type SyncResult struct {
	Provider string
	Created  int
	Updated  int
	Skipped  int
	Pages    int
	Err      error
}

// Total returns the number of records seen during the run.
func (r SyncResult) Total() int {
	return r.Created + r.Updated + r.Skipped
}
