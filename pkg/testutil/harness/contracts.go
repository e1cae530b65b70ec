package harness

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/bout3fiddy/go-hardhat/pkg/accounts"
	"github.com/bout3fiddy/go-hardhat/pkg/contracts"
)

// TransactOpts returns keyed transaction options for one of the
// foundation's dev accounts, bound to the connected node's chain id.
func (f *Foundation) TransactOpts(ctx context.Context, account *accounts.Account) (*bind.TransactOpts, error) {
	chainID, err := f.Provider.ChainID(ctx)
	if err != nil {
		return nil, err
	}

	return account.TransactOpts(chainID)
}

// LoadArtifact parses the contract artifact at path into a container,
// failing the test on parse errors.
func LoadArtifact(t *testing.T, path string) *contracts.ContractContainer {
	t.Helper()

	artifact, err := contracts.ParseArtifact(path)
	if err != nil {
		t.Fatalf("Failed to load artifact %s: %v", path, err)
	}

	return contracts.NewContainer(artifact)
}

// DeployArtifact loads the artifact at path and deploys it through the
// given backend. Constructor arguments are passed through, so chained
// deployments feed one instance's Address into the next one's args.
func DeployArtifact(
	t *testing.T,
	path string,
	opts *bind.TransactOpts,
	backend bind.ContractBackend,
	args ...interface{},
) *contracts.ContractInstance {
	t.Helper()

	instance, err := LoadArtifact(t, path).Deploy(opts, backend, args...)
	if err != nil {
		t.Fatalf("Failed to deploy artifact %s: %v", path, err)
	}

	return instance
}
