// Package scheduler drives the recurring background sync over all linked
// accounts.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/marcnester/glycofy-api/internal/domain"
	"github.com/marcnester/glycofy-api/internal/observability"
)

// sleepStep bounds each sleep increment so a stop request is honored
// within this granularity rather than only at the end of a full interval.
const sleepStep = 30 * time.Second

type accountLister interface {
	ListLinked(ctx context.Context, provider string) ([]domain.LinkedAccount, error)
}

type accountSyncer interface {
	RunOnce(ctx context.Context, account *domain.LinkedAccount, since *time.Time) domain.SyncResult
}

// Config holds scheduler tunables.
type Config struct {
	Provider string
	Interval time.Duration // between passes, minimum one hour
	Jitter   time.Duration // random delay before the first pass
}

// Scheduler owns the background loop: Idle until Start, Running while the
// loop task is alive, winding down after Stop. Passes never overlap.
type Scheduler struct {
	accounts accountLister
	syncer   accountSyncer
	cfg      Config
	logger   *log.Logger

	mu         sync.Mutex
	running    bool
	passActive bool
	stopCh     chan struct{}
	done       chan struct{}
}

// Option configures optional behaviour for the Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the logger used for pass summaries and errors.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New constructs a Scheduler.
func New(accounts accountLister, syncer accountSyncer, cfg Config, opts ...Option) *Scheduler {
	if cfg.Interval < time.Hour {
		cfg.Interval = time.Hour
	}
	s := &Scheduler{
		accounts: accounts,
		syncer:   syncer,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[scheduler] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the loop goroutine. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	go func() {
		s.loop(stopCh, done)
		s.loopExited(stopCh)
	}()
	s.logger.Printf("loop started (provider=%s, interval=%s)", s.cfg.Provider, s.cfg.Interval)
}

// loopExited returns the scheduler to idle once its loop has drained.
// This also covers a Stop whose await timed out: the loop was abandoned,
// but when it eventually exits the scheduler becomes startable again.
// The generation check keeps a stale loop from clobbering a newer run.
func (s *Scheduler) loopExited(stopCh chan struct{}) {
	s.mu.Lock()
	if s.stopCh == stopCh {
		s.running = false
	}
	s.mu.Unlock()
}

// Stop signals the loop to exit after its current wait increment or pass
// and waits for it to finish, bounded by ctx. Cancellation is cooperative:
// an in-flight account sync is allowed to complete.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	select {
	case <-stopCh:
	default:
		close(stopCh)
	}

	select {
	case <-done:
		s.loopExited(stopCh)
		return nil
	case <-ctx.Done():
		// The loop is abandoned, not interrupted; loopExited returns
		// the scheduler to idle whenever it finally drains.
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) loop(stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if s.cfg.Jitter > 0 {
		delay := time.Duration(rand.Int63n(int64(s.cfg.Jitter)))
		if !s.sleep(delay, stopCh) {
			return
		}
	}
	s.RunPass(context.Background())

	for {
		if !s.sleep(s.cfg.Interval, stopCh) {
			s.logger.Printf("loop stopped")
			return
		}
		s.RunPass(context.Background())
	}
}

// sleep waits for d in bounded increments, returning false when a stop
// was requested.
func (s *Scheduler) sleep(d time.Duration, stopCh <-chan struct{}) bool {
	for slept := time.Duration(0); slept < d; {
		step := sleepStep
		if remaining := d - slept; remaining < step {
			step = remaining
		}
		select {
		case <-stopCh:
			return false
		case <-time.After(step):
			slept += step
		}
	}
	return true
}

// RunPass performs one pass over all linked accounts. At most one pass
// runs at a time; a trigger while one is in flight is dropped. Errors are
// contained per account so one failure never aborts the batch.
func (s *Scheduler) RunPass(ctx context.Context) {
	s.mu.Lock()
	if s.passActive {
		s.mu.Unlock()
		s.logger.Printf("pass already in progress, skipping")
		return
	}
	s.passActive = true
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("sync pass panic: %v", r)
			s.logger.Printf("%v", err)
			observability.CaptureException(err, map[string]string{"provider": s.cfg.Provider})
		}
		passDuration.Observe(time.Since(start).Seconds())
		s.mu.Lock()
		s.passActive = false
		s.mu.Unlock()
	}()

	since := monthStartUTC(time.Now())

	accounts, err := s.accounts.ListLinked(ctx, s.cfg.Provider)
	if err != nil {
		s.logger.Printf("list linked accounts failed: %v", err)
		observability.CaptureException(err, map[string]string{"provider": s.cfg.Provider})
		passesCounter.WithLabelValues("error").Inc()
		return
	}

	s.logger.Printf("pass started (linked=%d, since=%s)", len(accounts), since.Format("2006-01-02"))

	for i := range accounts {
		account := accounts[i]
		result := s.syncer.RunOnce(ctx, &account, &since)
		if result.Err != nil {
			s.logger.Printf("user=%s sync failed: %v", account.UserID, result.Err)
			observability.CaptureException(result.Err, map[string]string{
				"provider": s.cfg.Provider,
				"user_id":  account.UserID,
			})
			continue
		}
		accountsSynced.Inc()
		s.logger.Printf("user=%s created=%d updated=%d skipped=%d pages=%d",
			account.UserID, result.Created, result.Updated, result.Skipped, result.Pages)
	}

	passesCounter.WithLabelValues("ok").Inc()
	observability.RecordPassCompleted(time.Now())
}

// monthStartUTC returns the first of the current month in UTC. A stable,
// idempotent cursor: re-running mid-month merely re-confirms records
// already upserted.
func monthStartUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
