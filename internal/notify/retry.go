package notify

import (
	"context"
	"time"

	"codeberg.org/mutker/tlmon/internal/logger"
)

type retrying struct {
	next     Gateway
	attempts int
	backoff  time.Duration
	logger   logger.Logger
}

// WithRetry calls gw up to attempts times, sleeping attempt*backoff between
// tries. A cancelled context stops retrying.
func WithRetry(gw Gateway, attempts int, backoff time.Duration, log logger.Logger) Gateway {
	if attempts < 1 {
		attempts = 1
	}

	return &retrying{next: gw, attempts: attempts, backoff: backoff, logger: log}
}

func (r *retrying) SendText(ctx context.Context, msg string) bool {
	return r.do(ctx, func() bool { return r.next.SendText(ctx, msg) })
}

// SendFile goes straight through when the wrapped gateway cannot carry files.
func (r *retrying) SendFile(ctx context.Context, path, title, caption string) bool {
	if !SupportsFiles(r.next) {
		return r.next.SendFile(ctx, path, title, caption)
	}

	return r.do(ctx, func() bool { return r.next.SendFile(ctx, path, title, caption) })
}

func (r *retrying) SupportsFiles() bool {
	return SupportsFiles(r.next)
}

func (r *retrying) do(ctx context.Context, send func() bool) bool {
	for attempt := 1; ; attempt++ {
		if send() {
			return true
		}
		if attempt >= r.attempts {
			r.logger.Error().Int("attempts", attempt).Msg("Notification failed after retries")
			return false
		}

		r.logger.Warn().Int("attempt", attempt).Int("max_attempts", r.attempts).Msg("Notification failed, retrying")

		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
}
