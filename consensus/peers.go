package consensus

import "github.com/gossipbft/node/wire"

// OnPeerJoined records a newly discovered transport peer under its resolved
// logical replica id. Idempotent: a peer already known is a no-op. The first
// time the live peer count reaches 3f, this is the cold-start trigger that
// flips `started` and invokes the new-round procedure.
func (s *State) OnPeerJoined(peer PeerHandle, logicalID uint64) wire.Response {
	if _, known := s.peers[peer]; known {
		return wire.DoNothing
	}

	s.peers[peer] = logicalID
	s.log.Info("peer joined", "peer", peer, "logical_id", logicalID, "peer_count", len(s.peers))

	if s.started || uint64(len(s.peers)) < s.cfg.coldStartThreshold() {
		return wire.DoNothing
	}

	s.started = true

	return s.advanceRound()
}

// OnPeerLeft removes a peer from the live set. Quorum loss, if any, is
// handled lazily by the next operation that checks the peer count.
func (s *State) OnPeerLeft(peer PeerHandle) wire.Response {
	delete(s.peers, peer)
	s.log.Info("peer left", "peer", peer, "peer_count", len(s.peers))

	return wire.DoNothing
}
