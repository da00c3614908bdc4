package consensus

import "github.com/gossipbft/node/wire"

// onRoundChange records a round-change vote and, once 2f+1 replicas have
// voted for the same target round, triggers the view-change procedure.
// Round-filter-exempt: evaluated regardless of the current round.
func (s *State) onRoundChange(m wire.Message) wire.Response {
	targetRound := m.Round

	pool, ok := s.roundChangePool[targetRound]
	if !ok {
		pool = make(map[uint64]struct{})
		s.roundChangePool[targetRound] = pool
	}

	if _, duplicate := pool[m.ID]; duplicate {
		return wire.DoNothing
	}

	pool[m.ID] = struct{}{}
	s.log.Debug("round change vote recorded", "target_round", targetRound, "votes", len(pool))

	if uint64(len(pool)) < s.cfg.Quorum() {
		return wire.DoNothing
	}

	return s.viewChange(targetRound)
}

// viewChange abandons the current round for round+1 once 2f+1 round-change
// votes have been observed. Requires a live peer set of at least 2f+1;
// otherwise quorum is unreachable and the timeout mechanism is left to drive
// the next retry.
func (s *State) viewChange(targetRound uint64) wire.Response {
	if uint64(len(s.peers)) < s.cfg.Quorum() {
		return wire.DoNothing
	}

	s.phase = PhaseNewRound
	s.round++
	s.resetPools()
	s.roundChangePool = make(map[uint64]map[uint64]struct{})

	s.log.Info("view change", "round", s.round, "reached_via_target", targetRound)

	if !s.IsProposer() {
		return wire.DoNothing
	}

	s.phase = PhasePrepared
	s.preparePool[s.cfg.ID] = struct{}{}

	return wire.Broadcast(messageFrom(s.cfg, s.round, wire.MessageTypeNewRound))
}

// advanceRound is the new-round procedure: invoked after a round finalizes
// (FinalCommitted) or at cold start. A view change does not go through here;
// viewChange runs its own election. It elects the round's proposer and, if
// this replica is it, broadcasts a PrePrepare.
func (s *State) advanceRound() wire.Response {
	switch s.phase {
	case PhaseNewRound, PhaseFinalCommitted, PhaseRoundChange:
	default:
		return wire.DoNothing
	}

	if uint64(len(s.peers)) < s.cfg.Quorum() {
		return wire.DoNothing
	}

	if s.phase != PhaseNewRound {
		s.round++
	}

	s.resetPools()
	s.roundChangePool = make(map[uint64]map[uint64]struct{})
	s.phase = PhaseNewRound

	if !s.IsProposer() {
		s.log.Debug("new round started, awaiting proposer", "round", s.round, "proposer", s.Proposer())

		return wire.DoNothing
	}

	s.preparePool[s.cfg.ID] = struct{}{}
	s.phase = PhasePrepared

	s.log.Info("acting as proposer", "round", s.round)

	if s.pacingDelay > 0 && s.sleep != nil {
		s.sleep(s.pacingDelay)
	}

	return wire.Broadcast(messageFrom(s.cfg, s.round, wire.MessageTypePrePrepare))
}
