package consensus

import (
	"time"

	"github.com/gossipbft/node/wire"
)

// CheckTimeout is invoked on each timer tick. It is a no-op unless the
// replica has started and last_update_time has elapsed more than the
// configured timeout, in which case it moves to PhaseRoundChange and
// broadcasts a RoundChange vote for the current round.
func (s *State) CheckTimeout() wire.Response {
	if !s.started {
		return wire.DoNothing
	}

	if time.Since(s.lastUpdate) <= s.cfg.Timeout {
		return wire.DoNothing
	}

	s.touch()
	s.phase = PhaseRoundChange

	msg := messageFrom(s.cfg, s.round, wire.MessageTypeRoundChange)

	s.log.Info("round timed out", "round", s.round)

	// Feed the vote into the local round-change handler so this replica's
	// own vote counts toward the quorum it is about to broadcast for.
	s.onRoundChange(msg)

	return wire.Broadcast(msg)
}
