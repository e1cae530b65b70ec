package harness

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bout3fiddy/go-hardhat/pkg/accounts"
	"github.com/bout3fiddy/go-hardhat/pkg/chain"
	"github.com/bout3fiddy/go-hardhat/pkg/hardhat"
)

// minFoundationAccounts is the smallest account set a foundation carries,
// covering the named roles at indices 0-3.
const minFoundationAccounts = 4

// Foundation bundles everything a test needs from a running node.
type Foundation struct {
	// Config is the node configuration the foundation was built from.
	Config *NodeConfig

	// Provider is the connected Hardhat provider.
	Provider *hardhat.Provider

	// Chain manages snapshots over the provider.
	Chain *chain.Chain

	// Accounts are the node's unlocked dev accounts.
	Accounts []*accounts.Account

	// Logger provides structured logging for test operations.
	Logger *logrus.Logger
}

// Dev account roles, matching the fixture conventions of the original
// test suite: sender, receiver, owner and a non-owner at indices 0-3.

// Sender returns dev account 0.
func (f *Foundation) Sender() *accounts.Account { return f.Accounts[0] }

// Receiver returns dev account 1.
func (f *Foundation) Receiver() *accounts.Account { return f.Accounts[1] }

// Owner returns dev account 2.
func (f *Foundation) Owner() *accounts.Account { return f.Accounts[2] }

// NotOwner returns dev account 3.
func (f *Foundation) NotOwner() *accounts.Account { return f.Accounts[3] }

// nodeManager manages the lifecycle of test nodes. It provides node reuse
// across tests and proper cleanup.
type nodeManager struct {
	mu        sync.Mutex
	instances map[string]*managedNode
}

// managedNode is a node instance with reference counting.
type managedNode struct {
	foundation *Foundation
	refCount   int
	createdAt  time.Time
}

// defaultManager is the package-level node manager instance.
var defaultManager = &nodeManager{
	instances: make(map[string]*managedNode),
}

// globalTestMutex ensures only one node-backed test suite sets up at a
// time, preventing port conflicts between test packages.
var globalTestMutex sync.Mutex

// AcquireTestLock acquires the global test lock. Call at the beginning of
// TestMain for packages that spawn real nodes.
func AcquireTestLock() {
	globalTestMutex.Lock()
}

// ReleaseTestLock releases the global test lock.
func ReleaseTestLock() {
	globalTestMutex.Unlock()
}

// GetNode retrieves or creates a node for the given configuration,
// reusing a running instance with the same name when possible.
func GetNode(t *testing.T, config *NodeConfig) (*Foundation, error) {
	t.Helper()

	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	if managed, exists := defaultManager.instances[config.Name]; exists {
		t.Logf("Reusing node %s (created %v ago)", config.Name, time.Since(managed.createdAt))

		managed.refCount++

		t.Cleanup(func() {
			releaseNode(t, config)
		})

		return managed.foundation, nil
	}

	t.Logf("Starting node %s", config.Name)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	foundation, err := setupNode(ctx, config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set up node %s", config.Name)
	}

	defaultManager.instances[config.Name] = &managedNode{
		foundation: foundation,
		refCount:   1,
		createdAt:  time.Now(),
	}

	t.Cleanup(func() {
		releaseNode(t, config)
	})

	return foundation, nil
}

// setupNode connects a provider per the config and assembles a Foundation.
func setupNode(ctx context.Context, config *NodeConfig) (*Foundation, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	provider, err := hardhat.NewProvider(logger, config.Name, config.Provider)
	if err != nil {
		return nil, err
	}

	if err := provider.Connect(ctx); err != nil {
		return nil, err
	}

	accountCount := config.Provider.AccountCount
	if accountCount == 0 || accountCount > accounts.MaxAccounts() {
		accountCount = accounts.MaxAccounts()
	}

	// The named roles index accounts 0-3, so a foundation never carries
	// fewer than four.
	if accountCount < minFoundationAccounts {
		accountCount = minFoundationAccounts
	}

	devAccounts, err := accounts.Default(accountCount)
	if err != nil {
		if disconnectErr := provider.Disconnect(ctx); disconnectErr != nil {
			logger.WithError(disconnectErr).Warn("Failed to disconnect after account setup error")
		}

		return nil, err
	}

	return &Foundation{
		Config:   config,
		Provider: provider,
		Chain:    chain.New(logger, provider),
		Accounts: devAccounts,
		Logger:   logger,
	}, nil
}

// releaseNode decrements a node's reference count. The node stays up for
// later tests in the package; ForceCleanupNode in TestMain tears it down.
func releaseNode(t *testing.T, config *NodeConfig) {
	t.Helper()

	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	managed, exists := defaultManager.instances[config.Name]
	if !exists {
		return
	}

	managed.refCount--

	t.Logf("Test completed, node %s refCount: %d", config.Name, managed.refCount)
}

// ForceCleanupNode tears down a node by name regardless of reference
// counts. Call it from TestMain so the node dies even when tests fail.
func ForceCleanupNode(name string) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()

	managed, exists := defaultManager.instances[name]
	if !exists {
		return nil
	}

	delete(defaultManager.instances, name)

	if managed.foundation.Config.KeepAlive {
		managed.foundation.Logger.WithField("node", name).Info("KeepAlive set, leaving node running")

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := managed.foundation.Provider.Disconnect(ctx); err != nil {
		return errors.Wrapf(err, "failed to clean up node %s", name)
	}

	return nil
}
