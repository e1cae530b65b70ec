package harness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	cp "github.com/otiai10/copy"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the provider config file written into temp projects.
const ConfigFileName = "go-hardhat.yaml"

// ProjectFixture configures a temporary project directory.
type ProjectFixture struct {
	// Config is marshalled to YAML as the project's provider config.
	Config map[string]any

	// PackageJSON, when set, is written as the project's package.json.
	PackageJSON map[string]any

	// ContractsDir, when set, is copied into the project as contracts/.
	ContractsDir string
}

// TempProject creates a temporary project directory holding a generated
// provider config, removed when the test finishes. It is the place to
// point a provider's DataDir at when a test needs full control over the
// project layout.
func TempProject(t *testing.T, fixture ProjectFixture) string {
	t.Helper()

	dir := t.TempDir()

	data, err := yaml.Marshal(fixture.Config)
	if err != nil {
		t.Fatalf("Failed to marshal project config: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644); err != nil {
		t.Fatalf("Failed to write project config: %v", err)
	}

	if fixture.PackageJSON != nil {
		pkg, marshalErr := json.MarshalIndent(fixture.PackageJSON, "", "  ")
		if marshalErr != nil {
			t.Fatalf("Failed to marshal package.json: %v", marshalErr)
		}

		if err := os.WriteFile(filepath.Join(dir, "package.json"), pkg, 0o644); err != nil {
			t.Fatalf("Failed to write package.json: %v", err)
		}
	}

	if fixture.ContractsDir != "" {
		if err := cp.Copy(fixture.ContractsDir, filepath.Join(dir, "contracts")); err != nil {
			t.Fatalf("Failed to copy contracts into project: %v", err)
		}
	}

	return dir
}
