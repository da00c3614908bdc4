package consensus

import "github.com/gossipbft/node/wire"

// OnMessage dispatches an inbound, already-decoded message. The sending peer
// handle is accepted for symmetry with the transport layer but is not
// otherwise consulted here; the core trusts the transport's authentication
// of sender identity.
func (s *State) OnMessage(m wire.Message, _ PeerHandle) wire.Response {
	// Round filter: RoundChange and NewRound are evaluated regardless of
	// the current round; everything else is dropped silently if it
	// targets a different round.
	if m.Round != s.round && m.Type != wire.MessageTypeRoundChange && m.Type != wire.MessageTypeNewRound {
		return wire.DoNothing
	}

	var resp wire.Response
	switch m.Type {
	case wire.MessageTypePrePrepare:
		resp = s.onPrePrepare(m)
	case wire.MessageTypePrepare:
		resp = s.onPrepare(m)
	case wire.MessageTypeCommit:
		resp = s.onCommit(m)
	case wire.MessageTypeRoundChange:
		resp = s.onRoundChange(m)
	case wire.MessageTypeNewRound:
		resp = s.onNewRound(m)
	default:
		return wire.DoNothing
	}

	if resp.IsBroadcast() {
		s.touch()
	}

	return resp
}

// onPrePrepare handles a proposer's PrePrepare. Accepted only in
// PhaseNewRound. The message is not rejected for coming from a non-proposer:
// the core has no certificate proving proposer eligibility.
func (s *State) onPrePrepare(m wire.Message) wire.Response {
	if s.phase != PhaseNewRound {
		return wire.DoNothing
	}

	s.phase = PhasePrepared
	s.preparePool[s.cfg.ID] = struct{}{}
	s.preparePool[m.ID] = struct{}{}

	s.log.Debug("pre-prepare accepted", "round", s.round, "proposer", m.ID)

	return wire.Broadcast(messageFrom(s.cfg, s.round, wire.MessageTypePrepare))
}

// onPrepare handles a Prepare vote. Accepted only in PhasePrepared. Once
// quorum is reached the replica moves to PhaseCommitted and commits itself.
func (s *State) onPrepare(m wire.Message) wire.Response {
	if s.phase != PhasePrepared {
		return wire.DoNothing
	}

	s.preparePool[m.ID] = struct{}{}

	if uint64(len(s.preparePool)) < s.cfg.Quorum() {
		return wire.DoNothing
	}

	s.phase = PhaseCommitted
	s.commitPool[s.cfg.ID] = struct{}{}

	s.log.Debug("prepare quorum reached", "round", s.round, "pool_size", len(s.preparePool))

	return wire.Broadcast(messageFrom(s.cfg, s.round, wire.MessageTypeCommit))
}

// onCommit handles a Commit vote. Accepted in PhasePrepared or
// PhaseCommitted; the Prepared case tolerates Commits that race ahead of
// this replica's own threshold crossing. Once quorum is reached the replica
// finalizes the round and advances.
func (s *State) onCommit(m wire.Message) wire.Response {
	if s.phase != PhasePrepared && s.phase != PhaseCommitted {
		return wire.DoNothing
	}

	s.commitPool[m.ID] = struct{}{}

	if uint64(len(s.commitPool)) < s.cfg.Quorum() {
		return wire.DoNothing
	}

	s.phase = PhaseFinalCommitted
	s.log.Info("commit quorum reached", "round", s.round, "pool_size", len(s.commitPool))

	return s.advanceRound()
}

// onNewRound handles a freshly elected proposer's view announcement. It is
// round-filter-exempt and is accepted on trust of the transport's
// authentication; there is no certificate check here.
func (s *State) onNewRound(m wire.Message) wire.Response {
	s.resetPools()

	s.phase = PhasePrepared
	s.preparePool[s.cfg.ID] = struct{}{}
	s.preparePool[m.ID] = struct{}{}

	s.log.Debug("new round announced", "round", s.round, "proposer", m.ID)

	return wire.Broadcast(messageFrom(s.cfg, s.round, wire.MessageTypePrepare))
}
