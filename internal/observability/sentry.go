package observability

import (
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry configures error reporting. An empty DSN disables it; every
// capture helper is then a no-op, so callers never need to check.
func InitSentry(dsn, environment string, logger *log.Logger) error {
	if dsn == "" {
		if logger != nil {
			logger.Printf("sentry DSN not configured, error tracking disabled")
		}
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
	})
}

// CaptureException reports err with optional tag context.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry drains buffered events, bounded by timeout. Call before exit.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}
