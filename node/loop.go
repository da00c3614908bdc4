// Package node wires the consensus state machine to a concrete transport,
// timer, and telemetry sink, running the single-goroutine event loop that
// dispatches transport events and ticks into the state machine.
package node

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/gossipbft/node/consensus"
	"github.com/gossipbft/node/telemetry"
	"github.com/gossipbft/node/timer"
	"github.com/gossipbft/node/transport"
	"github.com/gossipbft/node/wire"
)

// Logger is the structurally-identical twin of consensus.Logger; kept
// separate so this package does not force every caller to import consensus
// just to supply a logger.
type Logger interface {
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Error(string, ...interface{}) {}

// Config carries everything Loop needs beyond its collaborators.
type Config struct {
	Replica      consensus.Config
	Topic        string
	TickInterval time.Duration
}

// Loop owns a consensus.State and drives it from transport events and timer
// ticks. Nothing inside it is safe for concurrent use; Run must be the only
// goroutine touching the embedded State.
type Loop struct {
	cfg   Config
	state *consensus.State

	transport transport.Transport
	sink      telemetry.Sink
	log       Logger
}

// New builds a Loop. sink may be nil, in which case telemetry is discarded.
func New(cfg Config, tr transport.Transport, sink telemetry.Sink, log Logger) *Loop {
	if log == nil {
		log = noopLogger{}
	}
	if sink == nil {
		sink = telemetry.Noop{}
	}
	if cfg.Topic == "" {
		cfg.Topic = "gossipbft"
	}

	return &Loop{
		cfg:       cfg,
		state:     consensus.NewState(cfg.Replica, log),
		transport: tr,
		sink:      sink,
		log:       log,
	}
}

// State exposes the underlying consensus state, mainly for tests and
// metrics readouts.
func (l *Loop) State() *consensus.State { return l.state }

// Run subscribes to the topic, starts the tick timer, and processes events
// until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	events, err := l.transport.Subscribe(ctx, l.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to topic %q: %w", l.cfg.Topic, err)
	}

	tk := timer.Start(ctx, l.cfg.TickInterval)
	defer tk.Stop()

	l.log.Info("event loop started", "topic", l.cfg.Topic, "replica_id", l.cfg.Replica.ID, "f", l.cfg.Replica.F)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-events:
			if !ok {
				return fmt.Errorf("transport event channel closed")
			}
			l.handleTransportEvent(ctx, evt)

		case <-tk.C:
			l.handleResponse(ctx, l.state.CheckTimeout(), 0, "timeout")
		}
	}
}

func (l *Loop) handleTransportEvent(ctx context.Context, evt transport.Event) {
	switch evt.Kind {
	case transport.EventMessage:
		l.handleWireMessage(ctx, evt)

	case transport.EventPeerSubscribed:
		logicalID := deriveLogicalID(evt.Peer, l.cfg.Replica.F)
		l.handleResponse(ctx, l.state.OnPeerJoined(consensus.PeerHandle(evt.Peer), logicalID), logicalID, "peer-subscribed")

	case transport.EventPeerUnsubscribed:
		l.state.OnPeerLeft(consensus.PeerHandle(evt.Peer))

	case transport.EventPeerDiscovered:
		for _, p := range evt.Peers {
			logicalID := deriveLogicalID(p, l.cfg.Replica.F)
			l.handleResponse(ctx, l.state.OnPeerJoined(consensus.PeerHandle(p), logicalID), logicalID, "peer-discovered")
		}

	case transport.EventPeerExpired:
		for _, p := range evt.Peers {
			l.state.OnPeerLeft(consensus.PeerHandle(p))
		}
	}
}

func (l *Loop) handleWireMessage(ctx context.Context, evt transport.Event) {
	msg, err := wire.Decode(evt.Data)
	if err != nil {
		l.log.Error("dropping undecodable message", "peer", evt.Peer, "err", err)

		return
	}

	resp := l.state.OnMessage(msg, consensus.PeerHandle(evt.Peer))
	l.handleResponse(ctx, resp, msg.ID, msg.Type.String())
}

// handleResponse broadcasts resp if it carries a message and records a
// telemetry edge for the event that produced it, regardless of whether it
// produced outbound traffic.
func (l *Loop) handleResponse(ctx context.Context, resp wire.Response, origin uint64, action string) {
	if sinkErr := l.sink.Record(ctx, action, origin, l.cfg.Replica.ID, l.state.Round(), l.state.Phase().String()); sinkErr != nil {
		l.log.Error("telemetry record failed", "action", action, "err", sinkErr)
	}

	if !resp.IsBroadcast() {
		return
	}

	data, err := wire.Encode(resp.Message)
	if err != nil {
		l.log.Error("failed to encode outbound message", "err", err)

		return
	}

	if err := l.broadcastWithRetry(ctx, data); err != nil {
		l.log.Error("broadcast exhausted retries", "err", err)
	}
}

// deriveLogicalID maps a transport peer handle to a stable logical replica
// id in [0, 3f+1) via xxhash.
func deriveLogicalID(peer transport.PeerHandle, f uint64) uint64 {
	bound := 3*f + 1
	if bound == 0 {
		bound = 1
	}

	return xxhash.Sum64String(string(peer)) % bound
}
