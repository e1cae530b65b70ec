// Package chain manages chain state on top of a Hardhat provider, most
// importantly the snapshot/restore cycle tests rely on for isolation.
package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

// Provider is the slice of the Hardhat provider surface the chain manager
// needs.
type Provider interface {
	Name() string
	IsConnected() bool
	Snapshot(ctx context.Context) (hardhat.SnapshotID, error)
	Revert(ctx context.Context, id hardhat.SnapshotID) (bool, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	Mine(ctx context.Context, blocks uint64) error
	SetNextBlockTimestamp(ctx context.Context, timestamp time.Time) error
	IncreaseTime(ctx context.Context, delta time.Duration) error
}

// Chain tracks the snapshots taken through it so restores can honor the
// node's invalidation rule: reverting to a snapshot consumes it and every
// snapshot taken after it.
type Chain struct {
	provider Provider
	log      logrus.FieldLogger

	mu    sync.Mutex
	taken []hardhat.SnapshotID
}

// New creates a chain manager over the given provider.
func New(log logrus.FieldLogger, provider Provider) *Chain {
	return &Chain{
		provider: provider,
		log:      log.WithField("module", "hardhat/chain"),
	}
}

// Provider returns the underlying provider.
func (c *Chain) Provider() Provider {
	return c.provider
}

// Snapshot captures the current chain state and records the id.
func (c *Chain) Snapshot(ctx context.Context) (hardhat.SnapshotID, error) {
	id, err := c.provider.Snapshot(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.taken = append(c.taken, id)
	c.mu.Unlock()

	c.log.WithField("snapshot", id).Debug("Took snapshot")

	return id, nil
}

// Restore reverts the chain to the given snapshot. Restoring an id the node
// no longer knows returns ErrUnknownSnapshot. A successful restore drops
// the id and every id taken after it.
func (c *Chain) Restore(ctx context.Context, id hardhat.SnapshotID) error {
	ok, err := c.provider.Revert(ctx, id)
	if err != nil {
		return err
	}

	if !ok {
		return hardhat.ErrUnknownSnapshot
	}

	c.mu.Lock()

	for i, taken := range c.taken {
		if taken == id {
			c.taken = c.taken[:i]

			break
		}
	}

	c.mu.Unlock()

	c.log.WithField("snapshot", id).Debug("Restored snapshot")

	return nil
}

// RestoreLast reverts to the most recent snapshot taken through this
// manager. It returns ErrUnknownSnapshot when none remain.
func (c *Chain) RestoreLast(ctx context.Context) error {
	c.mu.Lock()

	if len(c.taken) == 0 {
		c.mu.Unlock()

		return hardhat.ErrUnknownSnapshot
	}

	id := c.taken[len(c.taken)-1]

	c.mu.Unlock()

	return c.Restore(ctx, id)
}

// PendingSnapshots returns the ids taken through this manager that have not
// been consumed by a restore.
func (c *Chain) PendingSnapshots() []hardhat.SnapshotID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]hardhat.SnapshotID, len(c.taken))
	copy(out, c.taken)

	return out
}

// BlockNumber returns the number of the most recent block.
func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	return c.provider.BlockNumber(ctx)
}

// Mine mines the given number of blocks.
func (c *Chain) Mine(ctx context.Context, blocks uint64) error {
	return c.provider.Mine(ctx, blocks)
}

// SetPendingTimestamp sets the timestamp of the next mined block.
func (c *Chain) SetPendingTimestamp(ctx context.Context, timestamp time.Time) error {
	return c.provider.SetNextBlockTimestamp(ctx, timestamp)
}

// IncreaseTime advances the node clock.
func (c *Chain) IncreaseTime(ctx context.Context, delta time.Duration) error {
	return c.provider.IncreaseTime(ctx, delta)
}
