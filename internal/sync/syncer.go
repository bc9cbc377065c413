package sync

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/strava"
)

type credentialEnsurer interface {
	EnsureValidCredential(ctx context.Context, account *domain.LinkedAccount) (string, error)
}

type feedFetcher interface {
	ForEachPage(ctx context.Context, accessToken string, opts strava.PageOptions, fn func([]strava.RawActivity) error) (int, error)
}

// Syncer runs one full synchronization pass for one linked account:
// credential check, paged feed pull, per-record normalize and upsert.
type Syncer struct {
	tokens     credentialEnsurer
	feed       feedFetcher
	normalizer Normalizer
	reconciler *Reconciler
	pageSize   int
	maxPages   int
	logger     *log.Logger
}

// SyncerOption configures optional behaviour for the Syncer.
type SyncerOption func(*Syncer)

// WithSyncerLogger overrides the logger used to report per-record errors.
func WithSyncerLogger(logger *log.Logger) SyncerOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer constructs a Syncer. pageSize and maxPages values <= 0 fall
// back to the fetcher defaults.
func NewSyncer(tokens credentialEnsurer, feed feedFetcher, normalizer Normalizer, reconciler *Reconciler, pageSize, maxPages int, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		tokens:     tokens,
		feed:       feed,
		normalizer: normalizer,
		reconciler: reconciler,
		pageSize:   pageSize,
		maxPages:   maxPages,
		logger:     log.New(log.Writer(), "[sync] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs one sync pass for the account. since, when set, bounds
// the pull to activities starting at or after it. Record-level errors are
// counted as skipped and never abort the pass; a credential failure or a
// feed failure ends the pass with the partial counts preserved.
func (s *Syncer) RunOnce(ctx context.Context, account *domain.LinkedAccount, since *time.Time) domain.SyncResult {
	result := domain.SyncResult{Provider: account.Provider}

	token, err := s.tokens.EnsureValidCredential(ctx, account)
	if err != nil {
		result.Err = err
		recordRun(result)
		return result
	}

	opts := strava.PageOptions{PerPage: s.pageSize, MaxPages: s.maxPages}
	if since != nil {
		opts.After = since.Unix()
	}

	pages, err := s.feed.ForEachPage(ctx, token, opts, func(batch []strava.RawActivity) error {
		for _, raw := range batch {
			activity := s.normalizer.Normalize(raw)
			outcome, upsertErr := s.reconciler.Upsert(ctx, account.UserID, account.Provider, activity)
			if upsertErr != nil {
				if !errors.Is(upsertErr, ErrRecordMalformed) {
					s.logger.Printf("upsert error (user=%s, external_id=%s): %v", account.UserID, activity.ExternalID, upsertErr)
				}
				result.Skipped++
				continue
			}
			switch outcome {
			case domain.UpsertCreated:
				result.Created++
			case domain.UpsertUpdated:
				result.Updated++
			default:
				result.Skipped++
			}
		}
		return nil
	})

	result.Pages = pages
	if err != nil {
		result.Err = err
	}
	recordRun(result)
	return result
}
