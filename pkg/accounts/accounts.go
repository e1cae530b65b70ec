// Package accounts provides the deterministic dev accounts a Hardhat node
// unlocks when started with the default test mnemonic.
package accounts

import (
	"crypto/ecdsa"
	"math/big"

	gethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// DefaultMnemonic seeds the node's dev accounts.
const DefaultMnemonic = "test test test test test test test test test test test junk"

// defaultPrivateKeys are the first 20 keys derived from DefaultMnemonic at
// m/44'/60'/0'/0/i. Every Hardhat (and Anvil) node prints these on startup.
var defaultPrivateKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
	"7c852118294e51e653712a81e05800f419141751be58f605c371e15141b007a6",
	"47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a",
	"8b3a350cf5c34c9194ca85829a2df0ec3153be0318b5e2d3348e872092edffba",
	"92db14e403b83dfe3df233f83dfa3a0d7096f21ca9b0d6d6b8d88b2b4ec1564e",
	"4bbbf85ce3377467afe5d46f804f221813b2bb87f24d81f60f1fcdbf7cbf4356",
	"dbda1821b80551c9d65939329250298aa3472ba22feea921c0cf5d620ea67b97",
	"2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6",
	"f214f2b2cd398c806f84e317254e0f0b801d0643303237d97a22a48e01628897",
	"701b615bbdfb9de65240bc28bd21bbc0d996645a3dd57e7b12bc2bdf6f192c82",
	"a267530f49f8280200edf313ee7af6b827f2a8bce2897751d06a843f644967b1",
	"47c99abed3324a2707c28affff1267e45918ec8c3f20b8aa892e8b065d2942dd",
	"c526ee95bf44d8fc405a158bb884d9d1238d99f0612e9f33d006bb0789009aaa",
	"8166f546bab6da521a8369cab06c5d2b9e46670292d85c875ee9ec20e84ffb61",
	"ea6c44ac03bff858b476bba40716402b03e41b8e97e276d1baec7c37d42484a0",
	"689af8efa8c651a91ad287602527f3af2fe9f6501a7ac4b061667b5a93e037fd",
	"de9be858da4a475276426320d5e9262ecfc3ba460bfac56360bfa6c4c28b4ee0",
	"df57089febbacf7ba0bc227dafbffa9fc08a93fdc68e1e42411a14efcf23656e",
}

// Account is an unlocked dev account with its private key in memory.
type Account struct {
	// Index is the account's derivation index.
	Index int
	// Address is the account's address.
	Address common.Address
	// PrivateKey is the account's secp256k1 key.
	PrivateKey *ecdsa.PrivateKey
}

// Default returns the node's dev accounts, at most MaxAccounts of them.
func Default(count int) ([]*Account, error) {
	if count < 0 || count > len(defaultPrivateKeys) {
		return nil, errors.Errorf("account count %d out of range [0, %d]", count, len(defaultPrivateKeys))
	}

	accounts := make([]*Account, count)

	for i := 0; i < count; i++ {
		key, err := crypto.HexToECDSA(defaultPrivateKeys[i])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse dev key %d", i)
		}

		accounts[i] = &Account{
			Index:      i,
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accounts, nil
}

// MaxAccounts is the number of embedded dev keys.
func MaxAccounts() int {
	return len(defaultPrivateKeys)
}

// TransactOpts returns keyed transaction options for the account, signing
// with EIP-155 for the given chain id.
func (a *Account) TransactOpts(chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(a.PrivateKey, chainID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create transactor for account %d", a.Index)
	}

	return opts, nil
}

// SignTx signs a transaction with the account's key using the latest
// signer for the given chain id.
func (a *Account) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), a.PrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign transaction with account %d", a.Index)
	}

	return signed, nil
}

// SignMessage signs a message the way eth_sign does: an EIP-191 personal
// message hash with the recovery id offset by 27.
func (a *Account) SignMessage(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(gethaccounts.TextHash(message), a.PrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign message with account %d", a.Index)
	}

	sig[crypto.RecoveryIDOffset] += 27

	return sig, nil
}
