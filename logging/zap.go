// Package logging adapts go.uber.org/zap to the small Logger interface the
// consensus and node packages depend on.
package logging

import "go.uber.org/zap"

// Zap wraps a *zap.SugaredLogger to satisfy consensus.Logger and node.Logger
// (both are the same three-method shape, so one adapter serves both).
type Zap struct {
	s *zap.SugaredLogger
}

// NewZap builds a production zap logger (JSON encoding, info level) wrapped
// as a Zap adapter.
func NewZap() (*Zap, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	return &Zap{s: l.Sugar()}, nil
}

// NewZapDevelopment builds a development zap logger (console encoding,
// debug level), useful for `meshbft run --dev`.
func NewZapDevelopment() (*Zap, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	return &Zap{s: l.Sugar()}, nil
}

// Info logs at info level.
func (z *Zap) Info(msg string, args ...interface{}) {
	z.s.Infow(msg, args...)
}

// Debug logs at debug level.
func (z *Zap) Debug(msg string, args ...interface{}) {
	z.s.Debugw(msg, args...)
}

// Error logs at error level.
func (z *Zap) Error(msg string, args ...interface{}) {
	z.s.Errorw(msg, args...)
}

// Sync flushes any buffered log entries. Callers should defer it after
// construction.
func (z *Zap) Sync() error {
	return z.s.Desugar().Sync()
}
