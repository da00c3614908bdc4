package node

import (
	"context"
	"fmt"
	"time"
)

const broadcastAttempts = 3

// broadcastBackoff is the pause between retry attempts. It is a var, not a
// const, so tests can shrink it.
var broadcastBackoff = time.Second

// broadcastWithRetry publishes data on the configured topic, making up to
// broadcastAttempts attempts with a fixed backoff between them. If every
// attempt fails it returns an error wrapping the last failure; the consensus
// state is not told.
func (l *Loop) broadcastWithRetry(ctx context.Context, data []byte) error {
	var lastErr error

	for attempt := 1; attempt <= broadcastAttempts; attempt++ {
		if err := l.transport.Publish(ctx, l.cfg.Topic, data); err == nil {
			return nil
		} else {
			lastErr = err
			l.log.Error("broadcast attempt failed", "attempt", attempt, "err", err)
		}

		if attempt == broadcastAttempts {
			break
		}

		select {
		case <-time.After(broadcastBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("broadcast failed after %d attempts: %w", broadcastAttempts, lastErr)
}
