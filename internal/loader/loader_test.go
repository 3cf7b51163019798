package loader_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/loader"
	"firestige.xyz/wiresentry/internal/scheduler"
	_ "firestige.xyz/wiresentry/plugins"
	"firestige.xyz/wiresentry/plugins/detector/arpspoof"
	"firestige.xyz/wiresentry/plugins/detector/dnsspoof"
	"firestige.xyz/wiresentry/plugins/detector/portscan"
)

func TestLoadDefaultManifest(t *testing.T) {
	r := scheduler.NewRegistry()
	n, err := loader.Load(r, loader.Default())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ds := r.Detectors()
	require.Len(t, ds, 3)
	assert.Equal(t, arpspoof.ID, ds[0].ID)
	assert.Equal(t, portscan.ID, ds[1].ID)
	assert.Equal(t, dnsspoof.ID, ds[2].ID)

	hs := r.Handlers()
	require.Len(t, hs, 1)
	assert.Equal(t, "logger", hs[0].ID())
}

func TestParseManifest(t *testing.T) {
	doc := `
modules:
  - kind: portscan
    type: detector
    options:
      min_sequence: 40
  - kind: webhook
    type: handler
    enabled: false
    options:
      url: http://127.0.0.1:1/hook
  - kind: logger
    type: handler
    options:
      id: audit
      level: error
`
	m, err := loader.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, m.Modules, 3)
	assert.True(t, m.Modules[0].IsEnabled())
	assert.False(t, m.Modules[1].IsEnabled())

	r := scheduler.NewRegistry()
	n, err := loader.Load(r, m)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hs := r.Handlers()
	require.Len(t, hs, 1)
	assert.Equal(t, "audit", hs[0].ID())
}

func TestParseRejectsBadType(t *testing.T) {
	_, err := loader.Parse([]byte("modules:\n  - kind: portscan\n    type: sensor\n"))
	assert.Error(t, err)

	_, err = loader.Parse([]byte("modules:\n  - type: detector\n"))
	assert.Error(t, err)
}

func TestLoadSkipsFailingEntries(t *testing.T) {
	m := &loader.Manifest{Modules: []loader.Entry{
		{Kind: "nosuch", Type: loader.TypeDetector},
		{Kind: "portscan", Type: loader.TypeDetector, Options: map[string]any{"bogus": 1}},
		{Kind: "arpspoof", Type: loader.TypeDetector},
		{Kind: "arpspoof", Type: loader.TypeDetector},
	}}

	r := scheduler.NewRegistry()
	n, err := loader.Load(r, m)
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrPluginNotFound))
	assert.True(t, errors.Is(err, core.ErrPluginInitFailed))
	assert.True(t, errors.Is(err, core.ErrModuleExists))
	assert.Len(t, r.Detectors(), 1)
}

func TestReadManifest(t *testing.T) {
	m, err := loader.Read("")
	require.NoError(t, err)
	assert.Equal(t, loader.Default(), m)

	path := filepath.Join(t.TempDir(), "modules.yml")
	require.NoError(t, os.WriteFile(path, []byte("modules:\n  - kind: dnsspoof\n    type: detector\n"), 0o644))
	m, err = loader.Read(path)
	require.NoError(t, err)
	require.Len(t, m.Modules, 1)
	assert.Equal(t, "dnsspoof", m.Modules[0].Kind)

	_, err = loader.Read(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
