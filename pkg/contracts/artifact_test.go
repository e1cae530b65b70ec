package contracts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterABI = `[
  {
    "inputs": [],
    "name": "count",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "increment",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

func TestParseArtifactJSONHardhat(t *testing.T) {
	data := `{
  "contractName": "Counter",
  "abi": ` + counterABI + `,
  "bytecode": "0x60006000f3"
}`

	artifact, err := ParseArtifactJSON([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "Counter", artifact.ContractName)
	assert.Equal(t, []byte{0x60, 0x00, 0x60, 0x00, 0xf3}, artifact.Bytecode)
	assert.True(t, artifact.IsDeployable())

	_, ok := artifact.ABI.Methods["increment"]
	assert.True(t, ok)
}

func TestParseArtifactJSONEthPM(t *testing.T) {
	data := `{
  "contractName": "Counter",
  "abi": ` + counterABI + `,
  "deploymentBytecode": {"bytecode": "0x60006000f3"}
}`

	artifact, err := ParseArtifactJSON([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x00, 0x60, 0x00, 0xf3}, artifact.Bytecode)
}

func TestParseArtifactJSONInterfaceOnly(t *testing.T) {
	data := `{"contractName": "ICounter", "abi": ` + counterABI + `}`

	artifact, err := ParseArtifactJSON([]byte(data))
	require.NoError(t, err)
	assert.False(t, artifact.IsDeployable())
}

func TestParseArtifactJSONErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "not json",
			data:    "not json",
			wantErr: "failed to parse artifact",
		},
		{
			name:    "missing abi",
			data:    `{"contractName": "Counter", "bytecode": "0x00"}`,
			wantErr: "artifact has no abi",
		},
		{
			name:    "bad abi",
			data:    `{"abi": [{"type": "garbage"}], "bytecode": "0x00"}`,
			wantErr: "abi",
		},
		{
			name:    "bad bytecode",
			data:    `{"abi": [], "bytecode": "zz"}`,
			wantErr: "bytecode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifactJSON([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseArtifactNameFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Token.json")

	data := `{"abi": ` + counterABI + `, "bytecode": "0x00"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	artifact, err := ParseArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, "Token", artifact.ContractName)
}

func TestParseArtifactMissingFile(t *testing.T) {
	_, err := ParseArtifact(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
