// Package fakenode provides an in-memory Hardhat-compatible JSON-RPC
// server for tests. It models flat account state (balances, nonces, code,
// storage) and the snapshot/revert cycle; it does not execute EVM code.
package fakenode

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ClientVersion is what the fake node reports for web3_clientVersion.
const ClientVersion = "FakeHardhatNode/0.1.0"

type accountState struct {
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	codes    map[common.Address][]byte
	storage  map[common.Address]map[common.Hash]common.Hash
}

func newAccountState() *accountState {
	return &accountState{
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		codes:    make(map[common.Address][]byte),
		storage:  make(map[common.Address]map[common.Hash]common.Hash),
	}
}

func (s *accountState) clone() *accountState {
	c := newAccountState()

	for addr, bal := range s.balances {
		c.balances[addr] = new(big.Int).Set(bal)
	}

	for addr, nonce := range s.nonces {
		c.nonces[addr] = nonce
	}

	for addr, code := range s.codes {
		c.codes[addr] = append([]byte{}, code...)
	}

	for addr, slots := range s.storage {
		cSlots := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			cSlots[k] = v
		}

		c.storage[addr] = cSlots
	}

	return c
}

type snapshotRecord struct {
	seq         int
	state       *accountState
	blockNumber uint64
	timeOffset  int64
}

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Node is a fake Hardhat node backed by an httptest server.
type Node struct {
	server *httptest.Server

	mu           sync.Mutex
	chainID      uint64
	blockNumber  uint64
	timeOffset   int64
	automine     bool
	interval     int64
	state        *accountState
	snapshots    map[string]*snapshotRecord
	snapshotSeq  int
	accounts     []common.Address
	impersonated map[common.Address]bool
	calls        []string
	failures     map[string]*rpcError
}

// New starts a fake node with the default Hardhat chain id.
func New() *Node {
	n := &Node{
		chainID:      31337,
		automine:     true,
		state:        newAccountState(),
		snapshots:    make(map[string]*snapshotRecord),
		impersonated: make(map[common.Address]bool),
		failures:     make(map[string]*rpcError),
	}

	n.server = httptest.NewServer(http.HandlerFunc(n.handle))

	return n
}

// URL returns the node's RPC endpoint.
func (n *Node) URL() string {
	return n.server.URL
}

// Close shuts the node down.
func (n *Node) Close() {
	n.server.Close()
}

// Calls returns the RPC methods received, in order.
func (n *Node) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]string, len(n.calls))
	copy(out, n.calls)

	return out
}

// SetChainID changes the reported chain id.
func (n *Node) SetChainID(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.chainID = id
}

// SetAccounts sets the account list returned by eth_accounts.
func (n *Node) SetAccounts(accounts []common.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.accounts = accounts
}

// FundAccount credits an account balance directly.
func (n *Node) FundAccount(addr common.Address, balance *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.state.balances[addr] = new(big.Int).Set(balance)
}

// BlockNumber returns the current block number.
func (n *Node) BlockNumber() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.blockNumber
}

// Impersonated reports whether an address is currently impersonated.
func (n *Node) Impersonated(addr common.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.impersonated[addr]
}

// FailMethod makes the node answer a method with the given error.
func (n *Node) FailMethod(method string, code int, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.failures[method] = &rpcError{Code: code, Message: message}
}

// RestoreMethod removes an injected failure.
func (n *Node) RestoreMethod(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.failures, method)
}

func (n *Node) handle(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	n.mu.Lock()
	n.calls = append(n.calls, req.Method)

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}

	if failure, ok := n.failures[req.Method]; ok {
		resp.Error = failure
	} else {
		result, rpcErr := n.dispatch(req.Method, req.Params)
		resp.Result = result
		resp.Error = rpcErr
	}

	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

//nolint:gocyclo // a dispatch table is one switch.
func (n *Node) dispatch(method string, params []json.RawMessage) (any, *rpcError) {
	switch method {
	case "eth_chainId":
		return hexutil.EncodeUint64(n.chainID), nil

	case "net_version":
		return fmt.Sprintf("%d", n.chainID), nil

	case "web3_clientVersion":
		return ClientVersion, nil

	case "eth_blockNumber":
		return hexutil.EncodeUint64(n.blockNumber), nil

	case "eth_accounts":
		accounts := make([]string, len(n.accounts))
		for i, addr := range n.accounts {
			accounts[i] = addr.Hex()
		}

		return accounts, nil

	case "eth_getBalance":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		balance, ok := n.state.balances[addr]
		if !ok {
			balance = new(big.Int)
		}

		return hexutil.EncodeBig(balance), nil

	case "eth_getTransactionCount":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		return hexutil.EncodeUint64(n.state.nonces[addr]), nil

	case "eth_getCode":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		return hexutil.Encode(n.state.codes[addr]), nil

	case "eth_getStorageAt":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		slot, err := decodeHash(params, 1)
		if err != nil {
			return nil, err
		}

		return n.state.storage[addr][slot].Hex(), nil

	case "eth_getTransactionReceipt":
		return nil, nil

	case "evm_snapshot":
		n.snapshotSeq++
		id := hexutil.EncodeUint64(uint64(n.snapshotSeq))
		n.snapshots[id] = &snapshotRecord{
			seq:         n.snapshotSeq,
			state:       n.state.clone(),
			blockNumber: n.blockNumber,
			timeOffset:  n.timeOffset,
		}

		return id, nil

	case "evm_revert":
		id, err := decodeString(params, 0)
		if err != nil {
			return nil, err
		}

		record, ok := n.snapshots[id]
		if !ok {
			return false, nil
		}

		n.state = record.state
		n.blockNumber = record.blockNumber
		n.timeOffset = record.timeOffset

		// Reverting consumes the snapshot and every later one.
		for other, otherRecord := range n.snapshots {
			if otherRecord.seq >= record.seq {
				delete(n.snapshots, other)
			}
		}

		return true, nil

	case "evm_mine":
		n.blockNumber++

		return "0x0", nil

	case "hardhat_mine":
		blocks := uint64(1)

		if len(params) > 0 {
			parsed, err := decodeString(params, 0)
			if err != nil {
				return nil, err
			}

			decoded, decodeErr := hexutil.DecodeUint64(parsed)
			if decodeErr != nil {
				return nil, invalidParams(decodeErr)
			}

			blocks = decoded
		}

		n.blockNumber += blocks

		return true, nil

	case "evm_increaseTime":
		var delta int64
		if len(params) > 0 {
			if err := json.Unmarshal(params[0], &delta); err != nil {
				return nil, invalidParams(err)
			}
		}

		n.timeOffset += delta

		return n.timeOffset, nil

	case "evm_setNextBlockTimestamp", "evm_setAutomine", "evm_setIntervalMining":
		if method == "evm_setAutomine" && len(params) > 0 {
			_ = json.Unmarshal(params[0], &n.automine)
		}

		if method == "evm_setIntervalMining" && len(params) > 0 {
			_ = json.Unmarshal(params[0], &n.interval)
		}

		return true, nil

	case "hardhat_setBalance":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		value, err := decodeString(params, 1)
		if err != nil {
			return nil, err
		}

		balance, decodeErr := hexutil.DecodeBig(value)
		if decodeErr != nil {
			return nil, invalidParams(decodeErr)
		}

		n.state.balances[addr] = balance

		return true, nil

	case "hardhat_setCode":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		value, err := decodeString(params, 1)
		if err != nil {
			return nil, err
		}

		code, decodeErr := hexutil.Decode(value)
		if decodeErr != nil {
			return nil, invalidParams(decodeErr)
		}

		n.state.codes[addr] = code

		return true, nil

	case "hardhat_setNonce":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		value, err := decodeString(params, 1)
		if err != nil {
			return nil, err
		}

		nonce, decodeErr := hexutil.DecodeUint64(value)
		if decodeErr != nil {
			return nil, invalidParams(decodeErr)
		}

		n.state.nonces[addr] = nonce

		return true, nil

	case "hardhat_setStorageAt":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		slot, err := decodeHash(params, 1)
		if err != nil {
			return nil, err
		}

		value, err := decodeHash(params, 2)
		if err != nil {
			return nil, err
		}

		if n.state.storage[addr] == nil {
			n.state.storage[addr] = make(map[common.Hash]common.Hash)
		}

		n.state.storage[addr][slot] = value

		return true, nil

	case "hardhat_impersonateAccount":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		n.impersonated[addr] = true

		return true, nil

	case "hardhat_stopImpersonatingAccount":
		addr, err := decodeAddress(params, 0)
		if err != nil {
			return nil, err
		}

		delete(n.impersonated, addr)

		return true, nil

	case "hardhat_reset":
		n.state = newAccountState()
		n.snapshots = make(map[string]*snapshotRecord)
		n.blockNumber = 0
		n.timeOffset = 0

		return true, nil

	default:
		return nil, &rpcError{Code: -32601, Message: fmt.Sprintf("Method %s not found", method)}
	}
}

func invalidParams(err error) *rpcError {
	return &rpcError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)}
}

func decodeString(params []json.RawMessage, idx int) (string, *rpcError) {
	if idx >= len(params) {
		return "", &rpcError{Code: -32602, Message: fmt.Sprintf("missing param %d", idx)}
	}

	var s string
	if err := json.Unmarshal(params[idx], &s); err != nil {
		return "", invalidParams(err)
	}

	return s, nil
}

func decodeAddress(params []json.RawMessage, idx int) (common.Address, *rpcError) {
	s, rpcErr := decodeString(params, idx)
	if rpcErr != nil {
		return common.Address{}, rpcErr
	}

	if !common.IsHexAddress(s) {
		return common.Address{}, &rpcError{Code: -32602, Message: fmt.Sprintf("invalid address %q", s)}
	}

	return common.HexToAddress(s), nil
}

func decodeHash(params []json.RawMessage, idx int) (common.Hash, *rpcError) {
	s, rpcErr := decodeString(params, idx)
	if rpcErr != nil {
		return common.Hash{}, rpcErr
	}

	return common.HexToHash(s), nil
}
