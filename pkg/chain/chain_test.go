package chain

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
	"github.com/bout3fiddy/go-hardhat/pkg/testutil/fakenode"
)

var testAddr = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

func newTestChain(t *testing.T) (*Chain, *hardhat.Provider) {
	t.Helper()

	node := fakenode.New()
	t.Cleanup(node.Close)

	config := hardhat.DefaultConfig()
	config.URI = node.URL()
	config.HealthCheckInterval = 0

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	provider, err := hardhat.NewProvider(log, "chain-test", config)
	require.NoError(t, err)

	require.NoError(t, provider.Connect(context.Background()))
	t.Cleanup(func() {
		_ = provider.Disconnect(context.Background())
	})

	return New(log, provider), provider
}

func TestSnapshotRestore(t *testing.T) {
	c, provider := newTestChain(t)
	ctx := context.Background()

	require.NoError(t, provider.SetBalance(ctx, testAddr, big.NewInt(1000)))

	id, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []hardhat.SnapshotID{id}, c.PendingSnapshots())

	require.NoError(t, provider.SetBalance(ctx, testAddr, big.NewInt(1)))

	require.NoError(t, c.Restore(ctx, id))
	assert.Empty(t, c.PendingSnapshots())

	balance, err := provider.Balance(ctx, testAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), balance)
}

func TestRestoreUnknownSnapshot(t *testing.T) {
	c, _ := newTestChain(t)

	err := c.Restore(context.Background(), "0xdead")
	assert.ErrorIs(t, err, hardhat.ErrUnknownSnapshot)
}

func TestRestoreConsumedSnapshot(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()

	id, err := c.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, c.Restore(ctx, id))

	// The id was consumed by the first restore.
	err = c.Restore(ctx, id)
	assert.ErrorIs(t, err, hardhat.ErrUnknownSnapshot)
}

func TestRestoreInvalidatesLaterSnapshots(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()

	first, err := c.Snapshot(ctx)
	require.NoError(t, err)

	second, err := c.Snapshot(ctx)
	require.NoError(t, err)

	third, err := c.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, []hardhat.SnapshotID{first, second, third}, c.PendingSnapshots())

	require.NoError(t, c.Restore(ctx, second))

	// Restoring the second drops it and the third, leaving only the first.
	assert.Equal(t, []hardhat.SnapshotID{first}, c.PendingSnapshots())

	err = c.Restore(ctx, third)
	assert.ErrorIs(t, err, hardhat.ErrUnknownSnapshot)

	require.NoError(t, c.Restore(ctx, first))
	assert.Empty(t, c.PendingSnapshots())
}

func TestRestoreLast(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()

	// Nothing to restore yet.
	err := c.RestoreLast(ctx)
	assert.ErrorIs(t, err, hardhat.ErrUnknownSnapshot)

	first, err := c.Snapshot(ctx)
	require.NoError(t, err)

	_, err = c.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, c.RestoreLast(ctx))
	assert.Equal(t, []hardhat.SnapshotID{first}, c.PendingSnapshots())

	require.NoError(t, c.RestoreLast(ctx))
	assert.Empty(t, c.PendingSnapshots())

	err = c.RestoreLast(ctx)
	assert.ErrorIs(t, err, hardhat.ErrUnknownSnapshot)
}

func TestChainPassthroughs(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()

	require.NoError(t, c.Mine(ctx, 4))

	number, err := c.BlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), number)

	require.NoError(t, c.IncreaseTime(ctx, time.Hour))
	require.NoError(t, c.SetPendingTimestamp(ctx, time.Now().Add(time.Hour)))

	assert.NotNil(t, c.Provider())
}
