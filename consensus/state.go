// Package consensus implements the per-replica IBFT/PBFT state machine: phase
// transitions, quorum counting, pool management, and proposer selection. It
// does not know how messages are delivered, only how to react to them.
package consensus

import (
	"time"

	"github.com/gossipbft/node/wire"
)

// Logger represents the logging behaviour the consensus package needs.
// Implementations are expected to be safe for the single event-loop
// goroutine that owns a State; no concurrent-call guarantee is required.
type Logger interface {
	Info(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Error(string, ...interface{}) {}

// Phase is one of the six positions a replica can occupy within a round.
type Phase uint8

const (
	// PhaseNewRound is the initial phase of every round: waiting for a
	// PrePrepare (or issuing one, if this replica is the proposer).
	PhaseNewRound Phase = iota
	// PhasePrePrepared is reserved for symmetry with the protocol's phase
	// table; the handlers never set it directly (a PrePrepare is accepted
	// and immediately folds into PhasePrepared).
	PhasePrePrepared
	// PhasePrepared means a proposal was accepted and this replica is
	// collecting Prepare votes.
	PhasePrepared
	// PhaseCommitted means quorum Prepares were observed and this replica
	// is collecting Commit votes.
	PhaseCommitted
	// PhaseFinalCommitted means quorum Commits were observed for the round.
	PhaseFinalCommitted
	// PhaseRoundChange means this replica gave up on the round and is
	// voting to move to a higher one.
	PhaseRoundChange
)

func (p Phase) String() string {
	switch p {
	case PhaseNewRound:
		return "NewRound"
	case PhasePrePrepared:
		return "PrePrepared"
	case PhasePrepared:
		return "Prepared"
	case PhaseCommitted:
		return "Committed"
	case PhaseFinalCommitted:
		return "FinalCommitted"
	case PhaseRoundChange:
		return "RoundChange"
	default:
		return "Unknown"
	}
}

// PeerHandle is the transport-level identifier for a gossip peer. The
// consensus package treats it as an opaque comparable key; transport/node own
// deriving it from whatever the underlying transport uses (e.g. a libp2p
// peer.ID string).
type PeerHandle string

// Config carries a replica's immutable identity and fault tolerance budget.
type Config struct {
	// ID is this replica's logical identity, used in proposer election and
	// as the sender id stamped on outbound messages.
	ID uint64
	// F is the maximum Byzantine fault count this deployment tolerates.
	F uint64
	// Timeout is the duration after which a round with no progress is
	// deemed stalled. Defaults to 5s when zero.
	Timeout time.Duration
}

// Quorum returns 2f+1, the vote threshold that tolerates f Byzantine faults
// among 3f+1 replicas.
func (c Config) Quorum() uint64 {
	return 2*c.F + 1
}

// coldStartThreshold returns 3f, the peer count that flips `started` to true.
func (c Config) coldStartThreshold() uint64 {
	return 3 * c.F
}

// State is the mutable runtime state of a single replica. It is owned
// exclusively by the event loop that calls its methods; nothing here is
// safe for concurrent use. The state machine is not reentrant and does not
// require locking.
type State struct {
	cfg Config
	log Logger

	round uint64
	phase Phase

	preparePool map[uint64]struct{}
	commitPool  map[uint64]struct{}

	// roundChangePool maps target round -> set of replica ids voting for it.
	roundChangePool map[uint64]map[uint64]struct{}

	peers map[PeerHandle]uint64

	lastUpdate time.Time
	started    bool

	// pacingDelay is the blocking pause a newly elected proposer takes
	// before broadcasting its PrePrepare, giving peers time to catch up.
	// Defaults to 1s; tests shrink it to 0 via SetPacingDelay.
	pacingDelay time.Duration
	sleep       func(time.Duration)
}

// NewState creates a State for the given identity/fault-tolerance
// configuration. The replica starts at round 0, phase NewRound, with no
// peers and started=false.
func NewState(cfg Config, log Logger) *State {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if log == nil {
		log = noopLogger{}
	}

	return &State{
		cfg:             cfg,
		log:             log,
		phase:           PhaseNewRound,
		preparePool:     make(map[uint64]struct{}),
		commitPool:      make(map[uint64]struct{}),
		roundChangePool: make(map[uint64]map[uint64]struct{}),
		peers:           make(map[PeerHandle]uint64),
		lastUpdate:      time.Now(),
		pacingDelay:     time.Second,
		sleep:           time.Sleep,
	}
}

// SetPacingDelay overrides the proposer pacing delay (default 1s). Tests use
// this to shrink it to 0 so round-advance assertions run instantly.
func (s *State) SetPacingDelay(d time.Duration) {
	s.pacingDelay = d
}

// Round returns the current round/view counter.
func (s *State) Round() uint64 { return s.round }

// Phase returns the current phase.
func (s *State) Phase() Phase { return s.phase }

// Started reports whether this replica has ever entered its first round.
func (s *State) Started() bool { return s.started }

// PeerCount returns the number of peers currently tracked.
func (s *State) PeerCount() int { return len(s.peers) }

// Proposer returns the logical id of the current round's proposer:
// round mod (2f+1).
func (s *State) Proposer() uint64 {
	return s.round % s.cfg.Quorum()
}

// IsProposer reports whether this replica is the current round's proposer.
func (s *State) IsProposer() bool {
	return s.cfg.ID == s.Proposer()
}

func (s *State) resetPools() {
	s.preparePool = make(map[uint64]struct{})
	s.commitPool = make(map[uint64]struct{})
}

func (s *State) touch() {
	s.lastUpdate = time.Now()
}

func messageFrom(cfg Config, round uint64, t wire.MessageType) wire.Message {
	return wire.Message{ID: cfg.ID, Round: round, Type: t}
}
