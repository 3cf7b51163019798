package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleOptionsMergesFileAndSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opts.yml")
	require.NoError(t, os.WriteFile(path, []byte("url: http://a\ntimeout: 5s\n"), 0o644))

	opts, err := moduleOptions(path, map[string]string{"url": "http://b"})
	require.NoError(t, err)
	assert.Equal(t, "http://b", opts["url"])
	assert.Equal(t, "5s", opts["timeout"])

	opts, err = moduleOptions("", nil)
	require.NoError(t, err)
	assert.Nil(t, opts)

	_, err = moduleOptions(filepath.Join(t.TempDir(), "missing.yml"), nil)
	assert.Error(t, err)
}

func writeConfig(t *testing.T, dir, manifest string) string {
	t.Helper()
	manifestPath := filepath.Join(dir, "modules.yml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(manifest), 0o644))

	cfg := `
wiresentry:
  capture:
    source: file
    file: ` + filepath.Join(dir, "replay.pcap") + `
  plugins:
    manifest: ` + manifestPath + `
`
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func TestRunValidate(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
modules:
  - kind: portscan
    type: detector
  - kind: logger
    type: handler
    options:
      level: error
`)
	assert.NoError(t, runValidate(path))
}

func TestRunValidateRejectsBadModule(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
modules:
  - kind: portscan
    type: detector
    options:
      min_sequence: -1
`)
	assert.Error(t, runValidate(path))
}

func TestBindFlagsOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "modules: []\n")
	configFile = path
	t.Cleanup(func() { configFile = "/etc/wiresentry/config.yml" })

	flags := daemonCmd.Flags()
	require.NoError(t, flags.Set("bpf", "arp or tcp"))
	t.Cleanup(func() { flags.Set("bpf", "") })

	cfg, used, err := loadConfig(flags)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "file", cfg.Capture.Source, "unset flag keeps the file value")
	assert.Equal(t, "arp or tcp", cfg.Capture.BPFFilter)
}
