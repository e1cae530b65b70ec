package harness

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/bout3fiddy/go-hardhat/pkg/chain"
	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

// isolationTimeout bounds the snapshot and restore calls around a test.
const isolationTimeout = 30 * time.Second

// Isolate snapshots the chain and registers a cleanup restoring it, so
// state changes made by the test do not leak into the next one.
//
// Two failure modes are deliberately benign: a node without snapshot
// support means there is nothing to restore, and an unknown snapshot id at
// restore time means the snapshot was already consumed or invalidated
// (for example by the test itself reverting past it). The restore is also
// skipped when the provider was disconnected during the test.
func Isolate(t *testing.T, c *chain.Chain) {
	t.Helper()

	provider := c.Provider()
	if !provider.IsConnected() {
		t.Fatal("isolation requires a connected provider")
	}

	providerName := provider.Name()

	ctx, cancel := context.WithTimeout(context.Background(), isolationTimeout)
	defer cancel()

	id, err := c.Snapshot(ctx)
	if errors.Is(err, hardhat.ErrSnapshotNotSupported) {
		t.Logf("Node does not support snapshots, skipping isolation")

		return
	}

	if err != nil {
		t.Fatalf("Failed to take isolation snapshot: %v", err)
	}

	t.Cleanup(func() {
		if !provider.IsConnected() || provider.Name() != providerName {
			return
		}

		restoreCtx, restoreCancel := context.WithTimeout(context.Background(), isolationTimeout)
		defer restoreCancel()

		if err := c.Restore(restoreCtx, id); err != nil && !errors.Is(err, hardhat.ErrUnknownSnapshot) {
			t.Errorf("Failed to restore isolation snapshot %s: %v", id, err)
		}
	})
}
