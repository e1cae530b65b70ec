package hardhat

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/bout3fiddy/go-hardhat/pkg/accounts"
)

// Default node parameters. These match the defaults of `npx hardhat node`
// so a provider configured with DefaultConfig behaves like a stock node.
const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8545
	DefaultChainID          = 31337
	DefaultMnemonic         = accounts.DefaultMnemonic
	DefaultAccountCount     = 20
	DefaultAccountBalance   = 10000 // ether
	DefaultGasLimit         = 30_000_000
	DefaultStartupTimeout   = 45 * time.Second
	DefaultRequestTimeout   = 30 * time.Second
	DefaultShutdownGrace    = 10 * time.Second
	DefaultHealthInterval   = 15 * time.Second
	DefaultReceiptCacheTTL  = 5 * time.Minute
	DefaultReceiptCacheSize = 1024
)

// Config defines the configuration for a Hardhat node provider.
type Config struct {
	// Host is the hostname the node binds to.
	Host string `yaml:"host"`
	// Port is the port the node listens on.
	Port int `yaml:"port"`
	// ChainID is the chain id the node reports.
	ChainID uint64 `yaml:"chainId"`
	// Mnemonic seeds the node's unlocked dev accounts.
	Mnemonic string `yaml:"mnemonic"`
	// AccountCount is the number of dev accounts the node unlocks.
	AccountCount int `yaml:"accountCount"`
	// AccountBalance is the initial balance of each dev account, in ether.
	AccountBalance uint64 `yaml:"accountBalance"`
	// Automine controls whether the node mines a block per transaction.
	Automine bool `yaml:"automine"`
	// BlockTime enables interval mining when non-zero.
	BlockTime time.Duration `yaml:"blockTime"`
	// GasLimit is the block gas limit.
	GasLimit uint64 `yaml:"gasLimit"`
	// Hardfork pins the EVM hardfork. Empty lets the node choose.
	Hardfork string `yaml:"hardfork,omitempty"`
	// Fork configures forking an upstream network.
	Fork *ForkConfig `yaml:"fork,omitempty"`
	// DataDir is where the generated project and node state live.
	// Empty means a temporary directory owned by the provider.
	DataDir string `yaml:"dataDir,omitempty"`
	// NodeCommand is the command used to launch the node.
	NodeCommand []string `yaml:"nodeCommand,omitempty"`
	// URI points the provider at an already-running node instead of
	// spawning one. Process management is disabled when set.
	URI string `yaml:"uri,omitempty"`
	// StartupTimeout bounds how long Connect waits for the node RPC.
	StartupTimeout time.Duration `yaml:"startupTimeout"`
	// RequestTimeout bounds individual RPC requests.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// HealthCheckInterval is how often the watchdog polls the node.
	// Zero disables the watchdog.
	HealthCheckInterval time.Duration `yaml:"healthCheckInterval"`
}

// DefaultConfig returns a Config matching a stock local Hardhat node.
func DefaultConfig() *Config {
	return &Config{
		Host:                DefaultHost,
		Port:                DefaultPort,
		ChainID:             DefaultChainID,
		Mnemonic:            DefaultMnemonic,
		AccountCount:        DefaultAccountCount,
		AccountBalance:      DefaultAccountBalance,
		Automine:            true,
		GasLimit:            DefaultGasLimit,
		NodeCommand:         []string{"npx", "hardhat", "node"},
		StartupTimeout:      DefaultStartupTimeout,
		RequestTimeout:      DefaultRequestTimeout,
		HealthCheckInterval: DefaultHealthInterval,
	}
}

// ConfigFromEnvironment reads configuration values from environment
// variables and returns a Config holding only the values that were set.
// It returns an error if any variable contains an invalid value.
//
// The following environment variables are supported:
//   - HARDHAT_HOST: hostname the node binds to
//   - HARDHAT_PORT: port the node listens on
//   - HARDHAT_CHAIN_ID: chain id the node reports
//   - HARDHAT_MNEMONIC: mnemonic for the dev accounts
//   - HARDHAT_URI: URI of an already-running node
//   - HARDHAT_FORK_URL: upstream URL to fork
//   - HARDHAT_FORK_BLOCK: block number to fork at
//   - HARDHAT_STARTUP_TIMEOUT: duration to wait for node readiness
func ConfigFromEnvironment() (*Config, error) {
	config := &Config{}

	if host := os.Getenv("HARDHAT_HOST"); host != "" {
		config.Host = host
	}

	if port := os.Getenv("HARDHAT_PORT"); port != "" {
		parsed, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid HARDHAT_PORT value %q: %w", port, err)
		}

		config.Port = parsed
	}

	if chainID := os.Getenv("HARDHAT_CHAIN_ID"); chainID != "" {
		parsed, err := strconv.ParseUint(chainID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HARDHAT_CHAIN_ID value %q: %w", chainID, err)
		}

		config.ChainID = parsed
	}

	if mnemonic := os.Getenv("HARDHAT_MNEMONIC"); mnemonic != "" {
		config.Mnemonic = mnemonic
	}

	if uri := os.Getenv("HARDHAT_URI"); uri != "" {
		config.URI = uri
	}

	if forkURL := os.Getenv("HARDHAT_FORK_URL"); forkURL != "" {
		config.Fork = &ForkConfig{UpstreamURL: forkURL}

		if forkBlock := os.Getenv("HARDHAT_FORK_BLOCK"); forkBlock != "" {
			parsed, err := strconv.ParseUint(forkBlock, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid HARDHAT_FORK_BLOCK value %q: %w", forkBlock, err)
			}

			config.Fork.BlockNumber = parsed
		}
	}

	if timeout := os.Getenv("HARDHAT_STARTUP_TIMEOUT"); timeout != "" {
		duration, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid HARDHAT_STARTUP_TIMEOUT value %q: %w", timeout, err)
		}

		config.StartupTimeout = duration
	}

	return config, nil
}

// LoadConfig reads a provider configuration from a YAML file, applying
// environment variable overrides on top of the file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	fileConfig := &Config{}
	if err := v.Unmarshal(fileConfig); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	envConfig, err := ConfigFromEnvironment()
	if err != nil {
		return nil, err
	}

	return MergeConfigs(MergeConfigs(DefaultConfig(), fileConfig), envConfig), nil
}

// MergeConfigs merges two Config instances, with non-zero values from the
// override configuration taking precedence over the base configuration.
// This allows layering defaults with file- or environment-specific values.
func MergeConfigs(base, override *Config) *Config {
	if base == nil && override == nil {
		return nil
	}

	if base == nil {
		result := *override

		return &result
	}

	if override == nil {
		result := *base

		return &result
	}

	result := *base

	if override.Host != "" {
		result.Host = override.Host
	}

	if override.Port != 0 {
		result.Port = override.Port
	}

	if override.ChainID != 0 {
		result.ChainID = override.ChainID
	}

	if override.Mnemonic != "" {
		result.Mnemonic = override.Mnemonic
	}

	if override.AccountCount != 0 {
		result.AccountCount = override.AccountCount
	}

	if override.AccountBalance != 0 {
		result.AccountBalance = override.AccountBalance
	}

	if override.BlockTime != 0 {
		result.BlockTime = override.BlockTime
	}

	if override.GasLimit != 0 {
		result.GasLimit = override.GasLimit
	}

	if override.Hardfork != "" {
		result.Hardfork = override.Hardfork
	}

	if override.Fork != nil {
		result.Fork = override.Fork
	}

	if override.DataDir != "" {
		result.DataDir = override.DataDir
	}

	if len(override.NodeCommand) > 0 {
		result.NodeCommand = override.NodeCommand
	}

	if override.URI != "" {
		result.URI = override.URI
	}

	if override.StartupTimeout != 0 {
		result.StartupTimeout = override.StartupTimeout
	}

	if override.RequestTimeout != 0 {
		result.RequestTimeout = override.RequestTimeout
	}

	if override.HealthCheckInterval != 0 {
		result.HealthCheckInterval = override.HealthCheckInterval
	}

	return &result
}

// Validate checks the configuration for the provider.
func (c *Config) Validate() error {
	if c.URI == "" {
		if c.Host == "" {
			return errors.New("host is required")
		}

		if c.Port <= 0 || c.Port > 65535 {
			return errors.Errorf("port %d is out of range", c.Port)
		}

		if len(c.NodeCommand) == 0 {
			return errors.New("nodeCommand is required when no URI is set")
		}
	}

	if c.AccountCount < 0 {
		return errors.New("accountCount must not be negative")
	}

	if c.Fork != nil {
		if err := c.Fork.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Endpoint returns the HTTP RPC endpoint the provider connects to.
func (c *Config) Endpoint() string {
	if c.URI != "" {
		return c.URI
	}

	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}
