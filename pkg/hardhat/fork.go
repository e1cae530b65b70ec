package hardhat

import (
	"strings"

	"github.com/pkg/errors"
)

// Default ports for fork providers. Forked nodes run beside the local one,
// so they get their own ports.
const (
	DefaultMainnetForkPort = 9001
	DefaultSepoliaForkPort = 9002
)

// ForkConfig configures forking an upstream network at a given block.
type ForkConfig struct {
	// UpstreamURL is the RPC endpoint of the network to fork.
	UpstreamURL string `yaml:"upstreamUrl"`
	// BlockNumber pins the fork point. Zero forks the latest block.
	BlockNumber uint64 `yaml:"blockNumber,omitempty"`
	// ChainID overrides the chain id reported by the forked node.
	// Zero keeps the upstream chain id.
	ChainID uint64 `yaml:"chainId,omitempty"`
}

// Validate checks the fork configuration.
func (f *ForkConfig) Validate() error {
	if f.UpstreamURL == "" {
		return errors.New("fork upstreamUrl is required")
	}

	if !strings.HasPrefix(f.UpstreamURL, "http://") && !strings.HasPrefix(f.UpstreamURL, "https://") &&
		!strings.HasPrefix(f.UpstreamURL, "ws://") && !strings.HasPrefix(f.UpstreamURL, "wss://") {
		return errors.Errorf("fork upstreamUrl %q has an unsupported scheme", f.UpstreamURL)
	}

	return nil
}

// IsRateLimited reports whether an error looks like an upstream provider
// rate limit. Hosted RPC providers shed load with "too many requests"
// responses, which forked-node tests treat as environmental rather than
// as failures.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(strings.ToLower(err.Error()), "too many requests")
}
