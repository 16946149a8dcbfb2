package handlers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/azhpc/internal/config"
	"github.com/imamik/azhpc/internal/platform/azure"
)

// saveAndRestoreFactories saves all factory variables and restores them after the test.
func saveAndRestoreFactories(t *testing.T) {
	t.Helper()
	origFindConfigFile := findConfigFile
	origLoadConfigFile := loadConfigFile
	origNewCloudClient := newCloudClient
	origNewLogger := newLogger
	origWriteFile := writeFile
	origStdout := stdout
	origStderr := stderr
	origStdin := stdin

	t.Cleanup(func() {
		findConfigFile = origFindConfigFile
		loadConfigFile = origLoadConfigFile
		newCloudClient = origNewCloudClient
		newLogger = origNewLogger
		writeFile = origWriteFile
		stdout = origStdout
		stderr = origStderr
		stdin = origStdin
	})
}

// harness wires the handlers to cfg and cloud and captures their output.
type harness struct {
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	written map[string][]byte
}

func newHarness(t *testing.T, cfg *config.Config, cloud azure.CloudClient) *harness {
	t.Helper()
	saveAndRestoreFactories(t)
	h := &harness{stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, written: map[string][]byte{}}

	findConfigFile = func() (string, error) { return "azhpc.yaml", nil }
	loadConfigFile = func(string) (*config.Config, error) {
		c := *cfg
		return &c, nil
	}
	newCloudClient = func(*config.Config, bool) (azure.CloudClient, error) { return cloud, nil }
	newLogger = func(bool) (logr.Logger, func(), error) { return logr.Discard(), func() {}, nil }
	writeFile = func(name string, data []byte, _ os.FileMode) error {
		h.written[name] = data
		return nil
	}
	stdout = h.stdout
	stderr = h.stderr
	stdin = emptyStdin(t)
	return h
}

// emptyStdin returns a file that reads EOF immediately.
func emptyStdin(t *testing.T) *os.File {
	t.Helper()
	return stdinWith(t, "")
}

// stdinWith returns a file holding input, for the prompt.
func stdinWith(t *testing.T, input string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(input), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}
