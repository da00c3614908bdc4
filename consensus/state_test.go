package consensus

import (
	"testing"
	"time"

	"github.com/gossipbft/node/wire"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, id, f uint64) *State {
	t.Helper()
	s := NewState(Config{ID: id, F: f, Timeout: 5 * time.Second}, nil)
	s.SetPacingDelay(0)

	return s
}

func joinPeers(s *State, n int) wire.Response {
	var last wire.Response
	for i := 0; i < n; i++ {
		last = s.OnPeerJoined(PeerHandle(string(rune('a'+i))), uint64(i))
	}

	return last
}

// Happy path with three peers, f=1.
func TestHappyPath(t *testing.T) {
	s := newTestState(t, 0, 1)

	// Cold start: 3 peers join, node 0 is proposer of round 0 and
	// broadcasts PrePrepare.
	resp := joinPeers(s, 3)
	require.True(t, s.Started())
	require.True(t, resp.IsBroadcast())
	require.Equal(t, wire.MessageTypePrePrepare, resp.Message.Type)
	require.Equal(t, PhasePrepared, s.Phase())

	// Node 1 receives the PrePrepare, transitions to Prepared, broadcasts
	// Prepare.
	follower := newTestState(t, 1, 1)
	joinPeers(follower, 3)
	resp = follower.OnMessage(resp.Message, "peer-0")
	require.True(t, resp.IsBroadcast())
	require.Equal(t, wire.MessageTypePrepare, resp.Message.Type)
	require.Equal(t, PhasePrepared, follower.Phase())

	// Feed two more Prepares (from peers 0 and 2) to reach quorum (3).
	resp = follower.OnMessage(wire.Message{ID: 0, Round: 0, Type: wire.MessageTypePrepare}, "peer-0")
	require.False(t, resp.IsBroadcast())
	resp = follower.OnMessage(wire.Message{ID: 2, Round: 0, Type: wire.MessageTypePrepare}, "peer-2")
	require.True(t, resp.IsBroadcast())
	require.Equal(t, wire.MessageTypeCommit, resp.Message.Type)
	require.Equal(t, PhaseCommitted, follower.Phase())

	// Feed Commits from peers 0 and 2 to reach quorum and finalize.
	resp = follower.OnMessage(wire.Message{ID: 0, Round: 0, Type: wire.MessageTypeCommit}, "peer-0")
	require.False(t, resp.IsBroadcast())
	resp = follower.OnMessage(wire.Message{ID: 2, Round: 0, Type: wire.MessageTypeCommit}, "peer-2")
	require.True(t, resp.IsBroadcast())

	// Node 1 is round 1's proposer (1 mod 3 == 1).
	require.Equal(t, uint64(1), follower.Round())
	require.Equal(t, PhasePrepared, follower.Phase())
	require.Equal(t, wire.MessageTypePrePrepare, resp.Message.Type)
}

// Duplicate Prepare only contributes once.
func TestDuplicatePrepareDeduplicates(t *testing.T) {
	s := newTestState(t, 1, 1)
	joinPeers(s, 3)

	// Force into Prepared phase via a PrePrepare from the proposer (id 0).
	s.OnMessage(wire.Message{ID: 0, Round: 0, Type: wire.MessageTypePrePrepare}, "peer-0")
	require.Equal(t, PhasePrepared, s.Phase())

	sizeBefore := len(s.preparePool)
	s.OnMessage(wire.Message{ID: 2, Round: 0, Type: wire.MessageTypePrepare}, "peer-2")
	sizeAfterFirst := len(s.preparePool)
	require.Equal(t, sizeBefore+1, sizeAfterFirst)

	resp := s.OnMessage(wire.Message{ID: 2, Round: 0, Type: wire.MessageTypePrepare}, "peer-2")
	require.Equal(t, sizeAfterFirst, len(s.preparePool))
	_ = resp
}

// Out-of-round message is dropped without mutation.
func TestOutOfRoundMessageDropped(t *testing.T) {
	s := newTestState(t, 2, 1)
	joinPeers(s, 3)
	s.round = 2
	s.phase = PhasePrepared

	poolSizeBefore := len(s.preparePool)
	resp := s.OnMessage(wire.Message{ID: 0, Round: 1, Type: wire.MessageTypePrepare}, "peer-0")

	require.False(t, resp.IsBroadcast())
	require.Equal(t, poolSizeBefore, len(s.preparePool))
	require.Equal(t, uint64(2), s.Round())
}

// Peer churn during round still allows pool mutation, but the next
// new-round attempt returns DoNothing.
func TestPeerChurnDuringRound(t *testing.T) {
	s := newTestState(t, 1, 1)
	joinPeers(s, 3)
	s.OnMessage(wire.Message{ID: 0, Round: 0, Type: wire.MessageTypePrePrepare}, "peer-0")
	require.Equal(t, PhasePrepared, s.Phase())

	s.OnPeerLeft("a")
	require.Equal(t, 2, s.PeerCount())

	// Prepare still mutates the pool even though peers < quorum now.
	resp := s.OnMessage(wire.Message{ID: 2, Round: 0, Type: wire.MessageTypePrepare}, "peer-2")
	require.Contains(t, s.preparePool, uint64(2))
	_ = resp

	// A direct call into advanceRound (simulating FinalCommitted) now
	// returns DoNothing since peers (2) < quorum (3).
	s.phase = PhaseFinalCommitted
	resp = s.advanceRound()
	require.False(t, resp.IsBroadcast())
}

// Cold start: no broadcasts until 3f peers join.
func TestColdStart(t *testing.T) {
	s := newTestState(t, 0, 1)
	require.False(t, s.Started())

	resp := s.OnPeerJoined("a", 5)
	require.False(t, s.Started())
	require.False(t, resp.IsBroadcast())

	resp = s.OnPeerJoined("b", 6)
	require.False(t, s.Started())
	require.False(t, resp.IsBroadcast())

	resp = s.OnPeerJoined("c", 7)
	require.True(t, s.Started())
	require.True(t, resp.IsBroadcast())
}

func TestColdStartIsOneShot(t *testing.T) {
	s := newTestState(t, 0, 1)
	joinPeers(s, 3)
	require.True(t, s.Started())

	// A further peer join must not re-trigger advanceRound's proposer path
	// a second time (started latches exactly once, invariant 7).
	s.phase = PhaseCommitted // pretend we are mid-round
	resp := s.OnPeerJoined("extra", 99)
	require.False(t, resp.IsBroadcast())
	require.Equal(t, PhaseCommitted, s.Phase())
}

func TestDuplicateRoundChangeVoteDoesNotCount(t *testing.T) {
	s := newTestState(t, 2, 1)
	joinPeers(s, 3)

	s.onRoundChange(wire.Message{ID: 0, Round: 1, Type: wire.MessageTypeRoundChange})
	sizeAfterFirst := len(s.roundChangePool[1])

	s.onRoundChange(wire.Message{ID: 0, Round: 1, Type: wire.MessageTypeRoundChange})
	require.Equal(t, sizeAfterFirst, len(s.roundChangePool[1]))
}

func TestViewChangeOnQuorumRoundChangeVotes(t *testing.T) {
	s := newTestState(t, 1, 1)
	joinPeers(s, 3)

	s.onRoundChange(wire.Message{ID: 0, Round: 1, Type: wire.MessageTypeRoundChange})
	resp := s.onRoundChange(wire.Message{ID: 2, Round: 1, Type: wire.MessageTypeRoundChange})
	// Only 2 votes so far (from 0 and 2); quorum is 3.
	require.False(t, resp.IsBroadcast())

	resp = s.onRoundChange(wire.Message{ID: 1, Round: 1, Type: wire.MessageTypeRoundChange})
	require.Equal(t, uint64(1), s.Round())
	// Node 1 is proposer of round 1 (1 mod 3 == 1): broadcasts NewRound.
	require.True(t, resp.IsBroadcast())
	require.Equal(t, wire.MessageTypeNewRound, resp.Message.Type)
	require.Equal(t, PhasePrepared, s.Phase())
}

func TestTimeoutTriggersRoundChangeBroadcast(t *testing.T) {
	s := NewState(Config{ID: 2, F: 1, Timeout: time.Microsecond}, nil)
	joinPeers(s, 3)
	time.Sleep(time.Millisecond)

	resp := s.CheckTimeout()
	require.True(t, resp.IsBroadcast())
	require.Equal(t, wire.MessageTypeRoundChange, resp.Message.Type)
	require.Equal(t, PhaseRoundChange, s.Phase())
}

func TestCheckTimeoutNoopBeforeStarted(t *testing.T) {
	s := newTestState(t, 0, 1)
	resp := s.CheckTimeout()
	require.False(t, resp.IsBroadcast())
}

func TestProposerFormula(t *testing.T) {
	s := newTestState(t, 1, 1)
	require.Equal(t, uint64(0), s.Proposer())
	s.round = 1
	require.Equal(t, uint64(1), s.Proposer())
	s.round = 4
	require.Equal(t, uint64(1), s.Proposer())
}
