package hardhat

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned when an operation requires a connected
	// provider.
	ErrNotConnected = errors.New("provider is not connected")

	// ErrAlreadyConnected is returned when Connect is called on a provider
	// that already has a live connection.
	ErrAlreadyConnected = errors.New("provider is already connected")

	// ErrSnapshotNotSupported is returned when the connected node does not
	// implement the snapshot API.
	ErrSnapshotNotSupported = errors.New("node does not support snapshots")

	// ErrUnknownSnapshot is returned when restoring a snapshot id the node
	// no longer knows about, either because it was already consumed or
	// invalidated by an earlier revert.
	ErrUnknownSnapshot = errors.New("unknown snapshot id")

	// ErrNodeExited is returned when the managed node process terminates
	// unexpectedly.
	ErrNodeExited = errors.New("node process exited")
)

// Solidity error selectors carried in revert data.
var (
	errorSelector = hexutil.MustDecode("0x08c379a0") // Error(string)
	panicSelector = hexutil.MustDecode("0x4e487b71") // Panic(uint256)
)

// RevertError is a transaction or call failure raised by the EVM, with the
// revert reason decoded from the RPC error data when present.
type RevertError struct {
	// Reason is the decoded revert reason, empty if none was carried.
	Reason string
	// PanicCode is set for Panic(uint256) reverts (assert failures,
	// overflow checks and friends), nil otherwise.
	PanicCode *big.Int
	// Data is the raw revert data as a hex string.
	Data string

	err error
}

func (e *RevertError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("execution reverted: %s", e.Reason)
	case e.PanicCode != nil:
		return fmt.Sprintf("execution reverted: panic 0x%x", e.PanicCode)
	default:
		return "execution reverted"
	}
}

func (e *RevertError) Unwrap() error {
	return e.err
}

// wrapRPCError converts node errors into typed errors where possible.
// Revert errors get their reason decoded, snapshot calls a node does not
// implement map to ErrSnapshotNotSupported, everything else passes through.
func wrapRPCError(method string, err error) error {
	if err == nil {
		return nil
	}

	if revert := decodeRevert(err); revert != nil {
		return revert
	}

	if method == "evm_snapshot" || method == "evm_revert" {
		msg := strings.ToLower(err.Error())

		if strings.Contains(msg, "not found") ||
			strings.Contains(msg, "not supported") ||
			strings.Contains(msg, "not implemented") {
			return ErrSnapshotNotSupported
		}
	}

	return err
}

// decodeRevert extracts a RevertError from an RPC error carrying revert
// data. Returns nil when the error is not a revert.
func decodeRevert(err error) *RevertError {
	dataErr, ok := err.(rpc.DataError)
	if !ok {
		if !strings.Contains(strings.ToLower(err.Error()), "revert") {
			return nil
		}

		return &RevertError{Reason: revertReasonFromMessage(err.Error()), err: err}
	}

	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return &RevertError{Reason: revertReasonFromMessage(err.Error()), err: err}
	}

	revert := &RevertError{Data: hexData, err: err}

	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil || len(data) < 4 {
		revert.Reason = revertReasonFromMessage(err.Error())

		return revert
	}

	selector, payload := data[:4], data[4:]

	switch {
	case string(selector) == string(errorSelector):
		revert.Reason = unpackErrorString(payload)
	case string(selector) == string(panicSelector):
		if len(payload) >= 32 {
			revert.PanicCode = new(big.Int).SetBytes(payload[:32])
		}
	}

	return revert
}

// unpackErrorString decodes the payload of Error(string): a 32-byte offset,
// a 32-byte length, then the string bytes. The offset and length words come
// from an untrusted node response, so the comparisons must not overflow.
func unpackErrorString(payload []byte) string {
	if len(payload) < 64 {
		return ""
	}

	size := uint64(len(payload))

	offsetWord := new(big.Int).SetBytes(payload[:32])
	if !offsetWord.IsUint64() || offsetWord.Uint64() > size-32 {
		return ""
	}

	offset := offsetWord.Uint64()

	lengthWord := new(big.Int).SetBytes(payload[offset : offset+32])
	if !lengthWord.IsUint64() || lengthWord.Uint64() > size-32-offset {
		return ""
	}

	return string(payload[offset+32 : offset+32+lengthWord.Uint64()])
}

// revertReasonFromMessage pulls the reason out of a node error message of
// the form "... reverted with reason string 'nope'".
func revertReasonFromMessage(msg string) string {
	const marker = "reverted with reason string '"

	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}

	rest := msg[idx+len(marker):]

	end := strings.Index(rest, "'")
	if end < 0 {
		return rest
	}

	return rest[:end]
}
