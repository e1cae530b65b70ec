// Package contracts loads compiled contract artifacts and deploys them
// through a bound go-ethereum backend.
package contracts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// Artifact is a compiled contract: its ABI and deployment bytecode.
type Artifact struct {
	// ContractName is the name recorded in the artifact, or the file
	// name when the artifact does not carry one.
	ContractName string
	// ABI is the parsed contract ABI.
	ABI abi.ABI
	// RawABI preserves the ABI JSON as found in the artifact.
	RawABI json.RawMessage
	// Bytecode is the deployment bytecode.
	Bytecode []byte
}

// artifactJSON covers both artifact shapes in the wild: Hardhat output
// ("abi" + "bytecode") and ethPM manifests ("abi" +
// "deploymentBytecode.bytecode").
type artifactJSON struct {
	ContractName       string          `json:"contractName"`
	ABI                json.RawMessage `json:"abi"`
	Bytecode           string          `json:"bytecode"`
	DeploymentBytecode *struct {
		Bytecode string `json:"bytecode"`
	} `json:"deploymentBytecode"`
}

// ParseArtifactJSON parses a compiled contract artifact.
func ParseArtifactJSON(data []byte) (*Artifact, error) {
	var raw artifactJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse artifact")
	}

	if len(raw.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(raw.ABI)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse artifact abi")
	}

	bytecodeHex := raw.Bytecode
	if bytecodeHex == "" && raw.DeploymentBytecode != nil {
		bytecodeHex = raw.DeploymentBytecode.Bytecode
	}

	var bytecode []byte

	if bytecodeHex != "" {
		bytecode, err = hexutil.Decode(bytecodeHex)
		if err != nil {
			return nil, errors.Wrap(err, "failed to decode artifact bytecode")
		}
	}

	return &Artifact{
		ContractName: raw.ContractName,
		ABI:          parsedABI,
		RawABI:       raw.ABI,
		Bytecode:     bytecode,
	}, nil
}

// ParseArtifact reads and parses a compiled contract artifact file. The
// contract name falls back to the file name when the artifact omits it.
func ParseArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read artifact %s", path)
	}

	artifact, err := ParseArtifactJSON(data)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", path)
	}

	if artifact.ContractName == "" {
		artifact.ContractName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return artifact, nil
}

// IsDeployable reports whether the artifact carries deployment bytecode.
// Interface-only artifacts parse fine but cannot be deployed.
func (a *Artifact) IsDeployable() bool {
	return len(a.Bytecode) > 0
}
