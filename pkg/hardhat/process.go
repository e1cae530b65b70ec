package hardhat

import (
	"bufio"
	"fmt"
	"io"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// hardhatConfigTemplate is rendered into the generated project directory.
// The node reads everything it needs from here, so the command line only
// carries the hostname and port.
var hardhatConfigTemplate = template.Must(template.New("hardhat.config.js").Parse(`module.exports = {
  networks: {
    hardhat: {
      chainId: {{.ChainID}},
      blockGasLimit: {{.GasLimit}},
{{- if .Hardfork}}
      hardfork: "{{.Hardfork}}",
{{- end}}
      accounts: {
        mnemonic: "{{.Mnemonic}}",
        count: {{.AccountCount}},
        accountsBalance: "{{.AccountBalanceWei}}"
      },
      mining: {
        auto: {{.Automine}},
        interval: {{.BlockTimeMS}}
      }{{- if .Fork}},
      forking: {
        url: "{{.Fork.UpstreamURL}}"{{- if .Fork.BlockNumber}},
        blockNumber: {{.Fork.BlockNumber}}{{- end}}
      }{{- end}}
    }
  }
};
`))

// packageJSON keeps npx from walking up the tree looking for a project.
const packageJSON = `{
  "name": "go-hardhat-node",
  "private": true,
  "version": "1.0.0"
}
`

type hardhatConfigData struct {
	ChainID           uint64
	GasLimit          uint64
	Hardfork          string
	Mnemonic          string
	AccountCount      int
	AccountBalanceWei string
	Automine          bool
	BlockTimeMS       int64
	Fork              *ForkConfig
}

// nodeProcess supervises a `npx hardhat node` subprocess rooted in a
// generated project directory.
type nodeProcess struct {
	config *Config
	log    logrus.FieldLogger

	cmd         *exec.Cmd
	dataDir     string
	ownsDataDir bool

	done chan struct{}
	err  error
}

func newNodeProcess(log logrus.FieldLogger, config *Config) *nodeProcess {
	return &nodeProcess{
		config: config,
		log:    log.WithField("component", "node-process"),
		done:   make(chan struct{}),
	}
}

// Start generates the project directory and launches the node.
func (p *nodeProcess) Start() error {
	dataDir := p.config.DataDir
	if dataDir == "" {
		dir, err := os.MkdirTemp("", "go-hardhat-*")
		if err != nil {
			return errors.Wrap(err, "failed to create data directory")
		}

		dataDir = dir
		p.ownsDataDir = true
	}

	p.dataDir = dataDir

	if err := p.writeProject(); err != nil {
		p.cleanupDataDir()

		return err
	}

	args := append([]string{}, p.config.NodeCommand...)
	args = append(args, "--hostname", p.config.Host, "--port", strconv.Itoa(p.config.Port))

	//nolint:gosec // the command comes from the provider's own config.
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dataDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		p.cleanupDataDir()

		return errors.Wrap(err, "failed to open node stdout")
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		p.cleanupDataDir()

		return errors.Wrap(err, "failed to open node stderr")
	}

	if err := cmd.Start(); err != nil {
		p.cleanupDataDir()

		return errors.Wrapf(err, "failed to start node command %q", args[0])
	}

	p.cmd = cmd

	go p.pipeOutput(stdout, "stdout")
	go p.pipeOutput(stderr, "stderr")

	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	p.log.WithFields(logrus.Fields{
		"pid":      cmd.Process.Pid,
		"data_dir": dataDir,
	}).Info("Started node process")

	return nil
}

// Stop terminates the node, first with SIGTERM, then with SIGKILL after the
// grace period.
func (p *nodeProcess) Stop() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	defer p.cleanupDataDir()

	select {
	case <-p.done:
		// Already gone.
		return nil
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		p.log.WithError(err).Debug("Failed to signal node process, killing")

		return p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
		p.log.Info("Node process stopped")

		return nil
	case <-time.After(DefaultShutdownGrace):
		p.log.Warn("Node process did not stop in time, killing")

		if err := p.cmd.Process.Kill(); err != nil {
			return errors.Wrap(err, "failed to kill node process")
		}

		<-p.done

		return nil
	}
}

// Exited returns a channel closed when the node process terminates.
func (p *nodeProcess) Exited() <-chan struct{} {
	return p.done
}

// ExitError returns the error the node process terminated with, valid once
// Exited is closed.
func (p *nodeProcess) ExitError() error {
	return p.err
}

// DataDir returns the project directory the node runs in.
func (p *nodeProcess) DataDir() string {
	return p.dataDir
}

func (p *nodeProcess) writeProject() error {
	balanceWei := new(big.Int).Mul(
		new(big.Int).SetUint64(p.config.AccountBalance),
		big.NewInt(1e18),
	)

	data := hardhatConfigData{
		ChainID:           p.config.ChainID,
		GasLimit:          p.config.GasLimit,
		Hardfork:          p.config.Hardfork,
		Mnemonic:          p.config.Mnemonic,
		AccountCount:      p.config.AccountCount,
		AccountBalanceWei: balanceWei.String(),
		Automine:          p.config.Automine,
		BlockTimeMS:       p.config.BlockTime.Milliseconds(),
		Fork:              p.config.Fork,
	}

	configFile, err := os.Create(filepath.Join(p.dataDir, "hardhat.config.js"))
	if err != nil {
		return errors.Wrap(err, "failed to create hardhat config")
	}
	defer configFile.Close()

	if err := hardhatConfigTemplate.Execute(configFile, data); err != nil {
		return errors.Wrap(err, "failed to render hardhat config")
	}

	pkgPath := filepath.Join(p.dataDir, "package.json")
	if _, err := os.Stat(pkgPath); os.IsNotExist(err) {
		if err := os.WriteFile(pkgPath, []byte(packageJSON), 0o644); err != nil {
			return errors.Wrap(err, "failed to write package.json")
		}
	}

	return nil
}

func (p *nodeProcess) pipeOutput(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	log := p.log.WithField("stream", stream)

	for scanner.Scan() {
		log.Debug(scanner.Text())
	}
}

func (p *nodeProcess) cleanupDataDir() {
	if !p.ownsDataDir || p.dataDir == "" {
		return
	}

	if err := os.RemoveAll(p.dataDir); err != nil {
		p.log.WithError(err).WithField("data_dir", p.dataDir).Warn("Failed to remove data directory")
	}
}

// String describes the process for logs.
func (p *nodeProcess) String() string {
	return fmt.Sprintf("hardhat node on %s:%d", p.config.Host, p.config.Port)
}
