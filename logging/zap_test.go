package logging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gossipbft/node/consensus"
)

func TestZapSatisfiesConsensusLogger(t *testing.T) {
	z, err := NewZapDevelopment()
	require.NoError(t, err)
	defer z.Sync() //nolint:errcheck

	var _ consensus.Logger = z

	require.NotPanics(t, func() {
		z.Info("test info", "k", "v")
		z.Debug("test debug", "k", 1)
		z.Error("test error", "err", "boom")
	})
}
