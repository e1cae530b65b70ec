package harness

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bout3fiddy/go-hardhat/pkg/chain"
	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
	"github.com/bout3fiddy/go-hardhat/pkg/testutil/fakenode"
)

var isolationAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func newIsolationChain(t *testing.T) (*chain.Chain, *hardhat.Provider, *fakenode.Node) {
	t.Helper()

	node := fakenode.New()
	t.Cleanup(node.Close)

	config := hardhat.DefaultConfig()
	config.URI = node.URL()
	config.HealthCheckInterval = 0

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	provider, err := hardhat.NewProvider(log, "isolation-test", config)
	require.NoError(t, err)

	require.NoError(t, provider.Connect(context.Background()))
	t.Cleanup(func() {
		_ = provider.Disconnect(context.Background())
	})

	return chain.New(log, provider), provider, node
}

func TestIsolateRestoresState(t *testing.T) {
	c, provider, _ := newIsolationChain(t)
	ctx := context.Background()

	require.NoError(t, provider.SetBalance(ctx, isolationAddr, big.NewInt(1000)))

	t.Run("mutates state", func(t *testing.T) {
		Isolate(t, c)

		require.NoError(t, provider.SetBalance(ctx, isolationAddr, big.NewInt(5)))
		require.NoError(t, provider.Mine(ctx, 10))
	})

	// The subtest's cleanup rolled everything back.
	balance, err := provider.Balance(ctx, isolationAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), balance)

	number, err := provider.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Zero(t, number)
}

func TestIsolateWithoutSnapshotSupport(t *testing.T) {
	c, provider, node := newIsolationChain(t)
	ctx := context.Background()

	node.FailMethod("evm_snapshot", -32601, "Method evm_snapshot not found")

	t.Run("runs without isolation", func(t *testing.T) {
		Isolate(t, c)

		// No snapshot was taken, the test still runs.
		require.NoError(t, provider.Mine(ctx, 1))
	})

	// Nothing was restored, the mined block stays.
	number, err := provider.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), number)
}

func TestIsolateToleratesConsumedSnapshot(t *testing.T) {
	c, _, _ := newIsolationChain(t)
	ctx := context.Background()

	t.Run("consumes its own snapshot", func(t *testing.T) {
		Isolate(t, c)

		// Restoring past the isolation snapshot consumes it; the
		// cleanup must treat the now-unknown id as benign.
		require.NoError(t, c.RestoreLast(ctx))
	})

	assert.Empty(t, c.PendingSnapshots())
}

func TestIsolateSkipsRestoreAfterDisconnect(t *testing.T) {
	c, provider, _ := newIsolationChain(t)

	t.Run("disconnects mid-test", func(t *testing.T) {
		Isolate(t, c)

		require.NoError(t, provider.Disconnect(context.Background()))
	})

	assert.False(t, provider.IsConnected())
}
