// Package telemetry reports consensus edges (who sent what, to whom, at
// which round and phase) to an external visualization store.
package telemetry

import "context"

// Sink records one consensus edge. Implementations must be safe to call from
// the single event-loop goroutine; no concurrency guarantee is required or
// provided.
type Sink interface {
	Record(ctx context.Context, action string, origin, target, round uint64, state string) error
}

// Noop discards every edge. It is the default Sink when no telemetry DSN is
// configured.
type Noop struct{}

// Record implements Sink.
func (Noop) Record(context.Context, string, uint64, uint64, uint64, string) error {
	return nil
}
