package harness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

func TestDefaultNodeConfig(t *testing.T) {
	config := DefaultNodeConfig()

	assert.Equal(t, "go-hardhat-test", config.Name)
	assert.Equal(t, 2*time.Minute, config.Timeout)
	assert.False(t, config.KeepAlive)
	require.NotNil(t, config.Provider)
	require.NoError(t, config.Provider.Validate())
}

func TestNodeConfigFromEnvironment(t *testing.T) {
	t.Setenv("KEEP_NODE", "true")
	t.Setenv("TEST_TIMEOUT", "5m")
	t.Setenv("HARDHAT_PORT", "9333")

	config, err := ConfigFromEnvironment()
	require.NoError(t, err)

	assert.True(t, config.KeepAlive)
	assert.Equal(t, 5*time.Minute, config.Timeout)
	assert.Equal(t, 9333, config.Provider.Port)
}

func TestNodeConfigFromEnvironmentInvalid(t *testing.T) {
	t.Setenv("KEEP_NODE", "maybe")

	_, err := ConfigFromEnvironment()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KEEP_NODE")
}

func TestForkNodeConfig(t *testing.T) {
	fork := &hardhat.ForkConfig{
		UpstreamURL: "https://rpc.example.com",
		BlockNumber: 17000000,
	}

	config, err := ForkNodeConfig("fork-test", 9400, fork)
	require.NoError(t, err)

	assert.Equal(t, "fork-test", config.Name)
	assert.Equal(t, 9400, config.Provider.Port)
	assert.Equal(t, fork, config.Provider.Fork)
}

func TestForkNodeConfigFreePort(t *testing.T) {
	config, err := ForkNodeConfig("fork-free-port", 0, &hardhat.ForkConfig{
		UpstreamURL: "https://rpc.example.com",
	})
	require.NoError(t, err)

	assert.NotZero(t, config.Provider.Port)
}

func TestForkNodeConfigInvalidFork(t *testing.T) {
	_, err := ForkNodeConfig("fork-bad", 0, &hardhat.ForkConfig{})
	require.Error(t, err)
}

func TestMainnetForkNodeConfig(t *testing.T) {
	config, err := MainnetForkNodeConfig("https://rpc.example.com")
	require.NoError(t, err)

	assert.Equal(t, hardhat.DefaultMainnetForkPort, config.Provider.Port)
	require.NotNil(t, config.Provider.Fork)
	assert.Equal(t, "https://rpc.example.com", config.Provider.Fork.UpstreamURL)
}
