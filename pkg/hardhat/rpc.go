package hardhat

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
)

// SnapshotID identifies a chain-state snapshot held by the node. Snapshot
// ids are single use: reverting to one consumes it and invalidates every id
// taken after it.
type SnapshotID string

// Snapshot captures the current chain state and returns its id.
func (p *Provider) Snapshot(ctx context.Context) (SnapshotID, error) {
	var id string
	if err := p.call(ctx, &id, "evm_snapshot"); err != nil {
		return "", err
	}

	p.metrics.Snapshots.Inc()

	p.emitSnapshot(SnapshotID(id))

	return SnapshotID(id), nil
}

// Revert restores the chain state captured by the given snapshot id.
// It returns false when the node no longer knows the id.
func (p *Provider) Revert(ctx context.Context, id SnapshotID) (bool, error) {
	var ok bool
	if err := p.call(ctx, &ok, "evm_revert", string(id)); err != nil {
		return false, err
	}

	if ok {
		p.metrics.Reverts.Inc()

		// Receipts minted after the snapshot no longer exist.
		p.clearReceipts()
	}

	p.emitRevert(id, ok)

	return ok, nil
}

// Mine mines the given number of blocks immediately.
func (p *Provider) Mine(ctx context.Context, blocks uint64) error {
	return p.call(ctx, nil, "hardhat_mine", hexutil.EncodeUint64(blocks))
}

// MineWithInterval mines blocks with the given timestamp spacing between
// consecutive blocks.
func (p *Provider) MineWithInterval(ctx context.Context, blocks uint64, interval time.Duration) error {
	return p.call(ctx, nil, "hardhat_mine",
		hexutil.EncodeUint64(blocks),
		hexutil.EncodeUint64(uint64(interval.Seconds())),
	)
}

// SetBalance sets the balance of an account, in wei.
func (p *Provider) SetBalance(ctx context.Context, addr common.Address, balance *big.Int) error {
	return p.call(ctx, nil, "hardhat_setBalance", addr, hexutil.EncodeBig(balance))
}

// SetCode replaces the contract code at an address.
func (p *Provider) SetCode(ctx context.Context, addr common.Address, code []byte) error {
	return p.call(ctx, nil, "hardhat_setCode", addr, hexutil.Encode(code))
}

// SetNonce sets the transaction count of an account.
func (p *Provider) SetNonce(ctx context.Context, addr common.Address, nonce uint64) error {
	return p.call(ctx, nil, "hardhat_setNonce", addr, hexutil.EncodeUint64(nonce))
}

// SetStorageAt writes a raw storage slot of a contract.
func (p *Provider) SetStorageAt(ctx context.Context, addr common.Address, slot, value common.Hash) error {
	return p.call(ctx, nil, "hardhat_setStorageAt", addr, slot, value)
}

// ImpersonateAccount makes the node accept transactions from an address
// without its private key.
func (p *Provider) ImpersonateAccount(ctx context.Context, addr common.Address) error {
	return p.call(ctx, nil, "hardhat_impersonateAccount", addr)
}

// StopImpersonatingAccount ends impersonation of an address.
func (p *Provider) StopImpersonatingAccount(ctx context.Context, addr common.Address) error {
	return p.call(ctx, nil, "hardhat_stopImpersonatingAccount", addr)
}

// SetNextBlockTimestamp sets the timestamp of the next mined block.
func (p *Provider) SetNextBlockTimestamp(ctx context.Context, timestamp time.Time) error {
	return p.call(ctx, nil, "evm_setNextBlockTimestamp", timestamp.Unix())
}

// IncreaseTime advances the node clock by the given duration. The change
// applies from the next mined block.
func (p *Provider) IncreaseTime(ctx context.Context, delta time.Duration) error {
	return p.call(ctx, nil, "evm_increaseTime", int64(delta.Seconds()))
}

// SetAutomine toggles mining a block for every submitted transaction.
func (p *Provider) SetAutomine(ctx context.Context, enabled bool) error {
	return p.call(ctx, nil, "evm_setAutomine", enabled)
}

// SetIntervalMining sets a fixed mining interval. Zero disables interval
// mining.
func (p *Provider) SetIntervalMining(ctx context.Context, interval time.Duration) error {
	return p.call(ctx, nil, "evm_setIntervalMining", interval.Milliseconds())
}

// resetForking mirrors the params shape of hardhat_reset.
type resetForking struct {
	JSONRPCURL  string `json:"jsonRpcUrl"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
}

type resetParams struct {
	Forking *resetForking `json:"forking,omitempty"`
}

// Reset reinitialises the node state. With a fork config it re-forks the
// upstream network, with nil it returns to a fresh local chain.
func (p *Provider) Reset(ctx context.Context, fork *ForkConfig) error {
	params := resetParams{}

	if fork != nil {
		if err := fork.Validate(); err != nil {
			return err
		}

		params.Forking = &resetForking{
			JSONRPCURL:  fork.UpstreamURL,
			BlockNumber: fork.BlockNumber,
		}
	}

	if err := p.call(ctx, nil, "hardhat_reset", params); err != nil {
		return err
	}

	p.clearReceipts()

	return nil
}

// ChainID returns the chain id reported by the node.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := p.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}

	return (*big.Int)(&id), nil
}

// BlockNumber returns the number of the most recent block.
func (p *Provider) BlockNumber(ctx context.Context) (uint64, error) {
	var number hexutil.Uint64
	if err := p.call(ctx, &number, "eth_blockNumber"); err != nil {
		return 0, err
	}

	return uint64(number), nil
}

// Balance returns the balance of an account at the latest block, in wei.
func (p *Provider) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var balance hexutil.Big
	if err := p.call(ctx, &balance, "eth_getBalance", addr, "latest"); err != nil {
		return nil, err
	}

	return (*big.Int)(&balance), nil
}

// Nonce returns the transaction count of an account at the latest block.
func (p *Provider) Nonce(ctx context.Context, addr common.Address) (uint64, error) {
	var nonce hexutil.Uint64
	if err := p.call(ctx, &nonce, "eth_getTransactionCount", addr, "latest"); err != nil {
		return 0, err
	}

	return uint64(nonce), nil
}

// Code returns the contract code at an address at the latest block.
func (p *Provider) Code(ctx context.Context, addr common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := p.call(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return nil, err
	}

	return code, nil
}

// StorageAt returns a raw storage slot of a contract at the latest block.
func (p *Provider) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	var value common.Hash
	if err := p.call(ctx, &value, "eth_getStorageAt", addr, slot, "latest"); err != nil {
		return common.Hash{}, err
	}

	return value, nil
}

// Accounts returns the node's unlocked dev accounts.
func (p *Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}

	return accounts, nil
}

// ClientVersion returns the node's client version string.
func (p *Provider) ClientVersion(ctx context.Context) (string, error) {
	var version string
	if err := p.call(ctx, &version, "web3_clientVersion"); err != nil {
		return "", err
	}

	return version, nil
}

// TransactionReceipt returns the receipt for a mined transaction, serving
// repeated lookups from a TTL cache. Receipts are immutable until a revert
// or reset, which flush the cache.
func (p *Provider) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	p.mu.Lock()
	cache := p.receipts
	eth := p.ethClient
	p.mu.Unlock()

	if eth == nil {
		return nil, ErrNotConnected
	}

	if cache != nil {
		if item := cache.Get(txHash); item != nil {
			return item.Value(), nil
		}
	}

	p.metrics.RecordRequest("eth_getTransactionReceipt")

	receipt, err := eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		p.metrics.RecordFailure("eth_getTransactionReceipt")

		return nil, errors.Wrapf(err, "failed to fetch receipt for %s", txHash)
	}

	if cache != nil {
		cache.Set(txHash, receipt, ttlcache.DefaultTTL)
	}

	return receipt, nil
}

func (p *Provider) clearReceipts() {
	p.mu.Lock()
	cache := p.receipts
	p.mu.Unlock()

	if cache != nil {
		cache.DeleteAll()
	}
}
