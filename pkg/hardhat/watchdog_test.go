package hardhat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bout3fiddy/go-hardhat/pkg/testutil/fakenode"
)

func TestWatchdogUnhealthyThreshold(t *testing.T) {
	provider, node := newConnectedProvider(t)
	ctx := context.Background()

	unhealthy := make(chan int, 1)
	provider.OnUnhealthy(func(failures int, err error) {
		if err == nil {
			return
		}

		select {
		case unhealthy <- failures:
		default:
		}
	})

	w := newWatchdog(testLogger(), provider)

	node.FailMethod("eth_blockNumber", -32000, "boom")

	// One failure short of the threshold stays quiet.
	for i := 0; i < unhealthyThreshold-1; i++ {
		w.check(ctx)
	}

	assert.Equal(t, unhealthyThreshold-1, w.failures)

	select {
	case failures := <-unhealthy:
		t.Fatalf("unhealthy event fired after %d failures", failures)
	default:
	}

	w.check(ctx)

	select {
	case failures := <-unhealthy:
		assert.Equal(t, unhealthyThreshold, failures)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for unhealthy event")
	}
}

func TestWatchdogResetOnSuccess(t *testing.T) {
	provider, node := newConnectedProvider(t)
	ctx := context.Background()

	w := newWatchdog(testLogger(), provider)

	node.FailMethod("eth_blockNumber", -32000, "boom")

	w.check(ctx)
	w.check(ctx)
	assert.Equal(t, 2, w.failures)

	// A healthy poll clears the streak, so the next failures start over.
	node.RestoreMethod("eth_blockNumber")
	w.check(ctx)
	assert.Zero(t, w.failures)

	node.FailMethod("eth_blockNumber", -32000, "boom")
	w.check(ctx)
	assert.Equal(t, 1, w.failures)
}

func TestWatchdogStopWithoutStart(t *testing.T) {
	provider, _ := newConnectedProvider(t)

	w := newWatchdog(testLogger(), provider)
	require.NoError(t, w.Stop())
}

func TestWatchdogStartStop(t *testing.T) {
	node := fakenode.New()
	t.Cleanup(node.Close)

	config := DefaultConfig()
	config.URI = node.URL()
	config.HealthCheckInterval = 10 * time.Millisecond

	provider, err := NewProvider(testLogger(), "watchdog-lifecycle", config)
	require.NoError(t, err)

	require.NoError(t, provider.Connect(context.Background()))
	require.NoError(t, provider.Disconnect(context.Background()))
}
