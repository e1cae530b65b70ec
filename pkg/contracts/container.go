package contracts

import (
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// ContractContainer wraps a parsed artifact and deploys instances of it.
type ContractContainer struct {
	artifact *Artifact
}

// NewContainer creates a container for the given artifact.
func NewContainer(artifact *Artifact) *ContractContainer {
	return &ContractContainer{artifact: artifact}
}

// Artifact returns the container's artifact.
func (c *ContractContainer) Artifact() *Artifact {
	return c.artifact
}

// Name returns the contract name.
func (c *ContractContainer) Name() string {
	return c.artifact.ContractName
}

// Deploy deploys the contract with the given constructor arguments and
// returns the instance bound to its deployment address. The deployment
// transaction is not waited on; automine nodes mine it immediately, other
// setups should wait on Instance.DeployTx.
func (c *ContractContainer) Deploy(
	opts *bind.TransactOpts,
	backend bind.ContractBackend,
	args ...interface{},
) (*ContractInstance, error) {
	if !c.artifact.IsDeployable() {
		return nil, errors.Errorf("contract %s has no deployment bytecode", c.Name())
	}

	addr, tx, bound, err := bind.DeployContract(opts, c.artifact.ABI, c.artifact.Bytecode, backend, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to deploy contract %s", c.Name())
	}

	return &ContractInstance{
		Address:  addr,
		DeployTx: tx,
		artifact: c.artifact,
		bound:    bound,
	}, nil
}

// At binds the contract to an existing deployment address.
func (c *ContractContainer) At(addr common.Address, backend bind.ContractBackend) *ContractInstance {
	return &ContractInstance{
		Address:  addr,
		artifact: c.artifact,
		bound:    bind.NewBoundContract(addr, c.artifact.ABI, backend, backend, backend),
	}
}

// ContractInstance is a deployed contract bound to its address.
type ContractInstance struct {
	// Address is the deployment address.
	Address common.Address
	// DeployTx is the deployment transaction, nil for instances bound
	// with At.
	DeployTx *types.Transaction

	artifact *Artifact
	bound    *bind.BoundContract
}

// Name returns the contract name.
func (i *ContractInstance) Name() string {
	return i.artifact.ContractName
}

// Call invokes a read-only contract method.
func (i *ContractInstance) Call(opts *bind.CallOpts, results *[]interface{}, method string, args ...interface{}) error {
	if err := i.bound.Call(opts, results, method, args...); err != nil {
		return errors.Wrapf(err, "call %s.%s", i.Name(), method)
	}

	return nil
}

// Transact invokes a state-changing contract method.
func (i *ContractInstance) Transact(opts *bind.TransactOpts, method string, args ...interface{}) (*types.Transaction, error) {
	tx, err := i.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "transact %s.%s", i.Name(), method)
	}

	return tx, nil
}
