package hardhat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteProject(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = t.TempDir()
	config.Hardfork = "cancun"
	config.BlockTime = 2 * time.Second

	proc := newNodeProcess(testLogger(), config)
	proc.dataDir = config.DataDir

	require.NoError(t, proc.writeProject())

	rendered, err := os.ReadFile(filepath.Join(config.DataDir, "hardhat.config.js"))
	require.NoError(t, err)

	content := string(rendered)
	assert.Contains(t, content, "chainId: 31337")
	assert.Contains(t, content, "blockGasLimit: 30000000")
	assert.Contains(t, content, `hardfork: "cancun"`)
	assert.Contains(t, content, `mnemonic: "`+DefaultMnemonic+`"`)
	assert.Contains(t, content, "count: 20")
	assert.Contains(t, content, `accountsBalance: "10000000000000000000000"`)
	assert.Contains(t, content, "auto: true")
	assert.Contains(t, content, "interval: 2000")
	assert.NotContains(t, content, "forking")

	pkg, err := os.ReadFile(filepath.Join(config.DataDir, "package.json"))
	require.NoError(t, err)
	assert.Contains(t, string(pkg), "go-hardhat-node")
}

func TestWriteProjectFork(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = t.TempDir()
	config.Fork = &ForkConfig{
		UpstreamURL: "https://rpc.example.com",
		BlockNumber: 17000000,
	}

	proc := newNodeProcess(testLogger(), config)
	proc.dataDir = config.DataDir

	require.NoError(t, proc.writeProject())

	rendered, err := os.ReadFile(filepath.Join(config.DataDir, "hardhat.config.js"))
	require.NoError(t, err)

	content := string(rendered)
	assert.Contains(t, content, `url: "https://rpc.example.com"`)
	assert.Contains(t, content, "blockNumber: 17000000")
}

func TestWriteProjectKeepsPackageJSON(t *testing.T) {
	config := DefaultConfig()
	config.DataDir = t.TempDir()

	existing := []byte(`{"name": "my-project"}`)
	require.NoError(t, os.WriteFile(filepath.Join(config.DataDir, "package.json"), existing, 0o644))

	proc := newNodeProcess(testLogger(), config)
	proc.dataDir = config.DataDir

	require.NoError(t, proc.writeProject())

	pkg, err := os.ReadFile(filepath.Join(config.DataDir, "package.json"))
	require.NoError(t, err)
	assert.Equal(t, existing, pkg)
}

func TestNodeProcessStartStop(t *testing.T) {
	config := DefaultConfig()
	config.NodeCommand = []string{"sh", "-c", "sleep 30", "node"}

	proc := newNodeProcess(testLogger(), config)

	require.NoError(t, proc.Start())
	assert.NotEmpty(t, proc.DataDir())

	select {
	case <-proc.Exited():
		t.Fatal("process exited immediately")
	default:
	}

	require.NoError(t, proc.Stop())

	// The owned temp directory is gone after Stop.
	_, err := os.Stat(proc.DataDir())
	assert.True(t, os.IsNotExist(err))
}

func TestNodeProcessExit(t *testing.T) {
	config := DefaultConfig()
	config.NodeCommand = []string{"sh", "-c", "exit 3", "node"}

	proc := newNodeProcess(testLogger(), config)
	require.NoError(t, proc.Start())

	select {
	case <-proc.Exited():
		require.Error(t, proc.ExitError())
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for process exit")
	}

	require.NoError(t, proc.Stop())
}
