package hardhat

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chuckpreslar/emission"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Provider manages a connection to a Hardhat development node. It either
// supervises its own node process or attaches to an already-running node
// when the config carries a URI.
type Provider struct {
	name    string
	config  *Config
	log     logrus.FieldLogger
	broker  *emission.Emitter
	metrics *Metrics

	mu          sync.Mutex
	rpcClient   *rpc.Client
	ethClient   *ethclient.Client
	proc        *nodeProcess
	watchdog    *watchdog
	receipts    *ttlcache.Cache[common.Hash, *types.Receipt]
	connected   bool
	everSpawned bool
}

// NewProvider creates a provider for the given configuration. A nil config
// uses DefaultConfig.
func NewProvider(log logrus.FieldLogger, name string, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid provider config")
	}

	return &Provider{
		name:    name,
		config:  config,
		log:     log.WithField("module", "hardhat/provider").WithField("provider", name),
		broker:  emission.NewEmitter(),
		metrics: NewMetrics("hardhat"),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Config returns the provider configuration.
func (p *Provider) Config() *Config {
	return p.config
}

// Endpoint returns the RPC endpoint the provider is configured for.
func (p *Provider) Endpoint() string {
	return p.config.Endpoint()
}

// IsConnected reports whether the provider has a live connection.
func (p *Provider) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.connected
}

// Metrics returns the provider's metrics for registration.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// DataDir returns the generated project directory when the provider owns
// its node process, empty otherwise.
func (p *Provider) DataDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.proc == nil {
		return ""
	}

	return p.proc.DataDir()
}

// Connect starts the node process (unless a URI is configured), waits for
// the RPC endpoint to come up and attaches the clients.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected {
		return ErrAlreadyConnected
	}

	if p.config.URI == "" {
		proc := newNodeProcess(p.log, p.config)
		if err := proc.Start(); err != nil {
			return err
		}

		p.proc = proc

		if p.everSpawned {
			p.metrics.NodeRestarts.Inc()
		}

		p.everSpawned = true
	}

	client, err := p.waitForRPC(ctx)
	if err != nil {
		if p.proc != nil {
			if stopErr := p.proc.Stop(); stopErr != nil {
				p.log.WithError(stopErr).Warn("Failed to stop node process after connect failure")
			}

			p.proc = nil
		}

		return err
	}

	p.rpcClient = client
	p.ethClient = ethclient.NewClient(client)
	p.connected = true

	p.receipts = ttlcache.New(
		ttlcache.WithTTL[common.Hash, *types.Receipt](DefaultReceiptCacheTTL),
		ttlcache.WithCapacity[common.Hash, *types.Receipt](DefaultReceiptCacheSize),
	)
	go p.receipts.Start()

	if p.config.HealthCheckInterval > 0 {
		p.watchdog = newWatchdog(p.log, p)
		if err := p.watchdog.Start(ctx); err != nil {
			p.log.WithError(err).Warn("Failed to start watchdog")
		}
	}

	p.metrics.SetConnected(true)

	p.log.WithField("endpoint", p.config.Endpoint()).Info("Connected to node")

	p.emitConnected(p.config.Endpoint())

	return nil
}

// Disconnect tears down the connection and stops the managed node process.
// Disconnecting a provider that is not connected is a no-op.
//
// The fields are detached under the mutex but torn down after releasing it:
// stopping the watchdog waits for an in-flight health check, and that check
// takes the same mutex on its way into the RPC client.
func (p *Provider) Disconnect(_ context.Context) error {
	p.mu.Lock()

	if !p.connected {
		p.mu.Unlock()

		return nil
	}

	wd := p.watchdog
	receipts := p.receipts
	client := p.rpcClient
	proc := p.proc

	p.watchdog = nil
	p.receipts = nil
	p.rpcClient = nil
	p.ethClient = nil
	p.proc = nil
	p.connected = false

	p.mu.Unlock()

	if wd != nil {
		if err := wd.Stop(); err != nil {
			p.log.WithError(err).Warn("Failed to stop watchdog")
		}
	}

	if receipts != nil {
		receipts.Stop()
	}

	client.Close()

	var err error

	if proc != nil {
		err = proc.Stop()
	}

	p.metrics.SetConnected(false)

	p.log.Info("Disconnected from node")

	p.emitDisconnected(p.config.Endpoint())

	return err
}

// EthClient returns the attached ethclient, or nil when disconnected.
func (p *Provider) EthClient() *ethclient.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.ethClient
}

// RPCClient returns the attached raw RPC client, or nil when disconnected.
func (p *Provider) RPCClient() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.rpcClient
}

// waitForRPC polls the node's RPC endpoint until it answers eth_chainId or
// the startup timeout elapses. When the provider owns the node process, an
// early process exit aborts the wait.
func (p *Provider) waitForRPC(ctx context.Context) (*rpc.Client, error) {
	operation := func() (*rpc.Client, error) {
		if p.proc != nil {
			select {
			case <-p.proc.Exited():
				return nil, backoff.Permanent(errors.Wrapf(ErrNodeExited, "%v", p.proc.ExitError()))
			default:
			}
		}

		dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		client, err := rpc.DialContext(dialCtx, p.config.Endpoint())
		if err != nil {
			return nil, err
		}

		var chainID hexutil.Big
		if err := client.CallContext(dialCtx, &chainID, "eth_chainId"); err != nil {
			client.Close()

			return nil, err
		}

		return client, nil
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(p.config.StartupTimeout),
		backoff.WithNotify(func(err error, duration time.Duration) {
			p.log.WithError(err).Debugf("Node not ready, retrying in %s", duration)
		}),
	}

	client, err := backoff.Retry(ctx, operation, retryOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "node at %s did not become ready within %s",
			p.config.Endpoint(), p.config.StartupTimeout)
	}

	return client, nil
}

// call performs a raw RPC call with request timeout, metrics and error
// translation applied.
func (p *Provider) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	p.mu.Lock()
	client := p.rpcClient
	p.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}

	if p.config.RequestTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.config.RequestTimeout)
		defer cancel()
	}

	p.metrics.RecordRequest(method)

	if err := client.CallContext(ctx, result, method, args...); err != nil {
		p.metrics.RecordFailure(method)

		return wrapRPCError(method, err)
	}

	return nil
}
