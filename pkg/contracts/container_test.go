package contracts

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simulatedChainID is the chain id of go-ethereum's simulated backend.
var simulatedChainID = big.NewInt(1337)

func newSimulatedBackend(t *testing.T) (*simulated.Backend, *bind.TransactOpts) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	opts, err := bind.NewKeyedTransactorWithChainID(key, simulatedChainID)
	require.NoError(t, err)

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18))
	backend := simulated.NewBackend(types.GenesisAlloc{
		opts.From: {Balance: balance},
	})
	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend, opts
}

func deployableArtifact(t *testing.T) *Artifact {
	t.Helper()

	artifact, err := ParseArtifactJSON([]byte(`{
  "contractName": "Stub",
  "abi": [],
  "bytecode": "0x60006000f3"
}`))
	require.NoError(t, err)

	return artifact
}

func TestContainerDeploy(t *testing.T) {
	backend, opts := newSimulatedBackend(t)
	container := NewContainer(deployableArtifact(t))

	assert.Equal(t, "Stub", container.Name())

	instance, err := container.Deploy(opts, backend.Client())
	require.NoError(t, err)
	require.NotNil(t, instance.DeployTx)
	assert.NotZero(t, instance.Address)
	assert.Equal(t, "Stub", instance.Name())

	backend.Commit()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	receipt, err := bind.WaitMined(ctx, backend.Client(), instance.DeployTx)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, instance.Address, receipt.ContractAddress)
}

func TestContainerDeployNotDeployable(t *testing.T) {
	backend, opts := newSimulatedBackend(t)

	artifact, err := ParseArtifactJSON([]byte(`{"contractName": "IStub", "abi": []}`))
	require.NoError(t, err)

	_, err = NewContainer(artifact).Deploy(opts, backend.Client())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no deployment bytecode")
}

func TestContainerAt(t *testing.T) {
	backend, opts := newSimulatedBackend(t)
	container := NewContainer(deployableArtifact(t))

	deployed, err := container.Deploy(opts, backend.Client())
	require.NoError(t, err)

	backend.Commit()

	instance := container.At(deployed.Address, backend.Client())
	assert.Equal(t, deployed.Address, instance.Address)
	assert.Nil(t, instance.DeployTx)
	assert.Equal(t, "Stub", instance.Name())
}
