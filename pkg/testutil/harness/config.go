package harness

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/phayes/freeport"
	"github.com/pkg/errors"

	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

// NodeConfig defines how the harness acquires a node for a test.
type NodeConfig struct {
	// Name identifies the node instance. Tests sharing a name share the
	// node.
	Name string

	// Provider is the underlying provider configuration.
	Provider *hardhat.Config

	// Timeout bounds node setup.
	Timeout time.Duration

	// KeepAlive leaves the node running after ForceCleanupNode, for
	// debugging a failing suite against a live node.
	KeepAlive bool
}

// DefaultNodeConfig returns a NodeConfig for a fresh local node. The
// provider owns a temporary data directory, so tests never touch developer
// machine state.
func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		Name:     "go-hardhat-test",
		Provider: hardhat.DefaultConfig(),
		Timeout:  2 * time.Minute,
	}
}

// ConfigFromEnvironment reads harness configuration from environment
// variables, on top of the provider's own HARDHAT_* variables.
//
//   - KEEP_NODE: keep the node alive after the suite (default: false)
//   - TEST_TIMEOUT: node setup timeout (e.g. "5m") (default: 2m)
func ConfigFromEnvironment() (*NodeConfig, error) {
	providerConfig, err := hardhat.ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	config := DefaultNodeConfig()
	config.Provider = hardhat.MergeConfigs(config.Provider, providerConfig)

	if keepAlive := os.Getenv("KEEP_NODE"); keepAlive != "" {
		parsed, parseErr := strconv.ParseBool(keepAlive)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid KEEP_NODE value %q: %w", keepAlive, parseErr)
		}

		config.KeepAlive = parsed
	}

	if timeout := os.Getenv("TEST_TIMEOUT"); timeout != "" {
		duration, parseErr := time.ParseDuration(timeout)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid TEST_TIMEOUT value %q: %w", timeout, parseErr)
		}

		config.Timeout = duration
	}

	return config, nil
}

// ForkNodeConfig returns a NodeConfig for a node forking the given
// upstream, on its own port so it can run beside the local node.
func ForkNodeConfig(name string, port int, fork *hardhat.ForkConfig) (*NodeConfig, error) {
	if err := fork.Validate(); err != nil {
		return nil, err
	}

	if port == 0 {
		free, err := freeport.GetFreePort()
		if err != nil {
			return nil, errors.Wrap(err, "failed to acquire free port for fork node")
		}

		port = free
	}

	config := DefaultNodeConfig()
	config.Name = name
	config.Provider.Port = port
	config.Provider.Fork = fork

	return config, nil
}

// MainnetForkNodeConfig returns a NodeConfig for a mainnet fork on the
// conventional fork port.
func MainnetForkNodeConfig(upstreamURL string) (*NodeConfig, error) {
	return ForkNodeConfig("go-hardhat-mainnet-fork", hardhat.DefaultMainnetForkPort, &hardhat.ForkConfig{
		UpstreamURL: upstreamURL,
	})
}
