// Package loader builds detector and handler instances from a YAML module
// manifest and registers them with the scheduler registry.
package loader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Module types accepted in a manifest entry.
const (
	TypeDetector = "detector"
	TypeHandler  = "handler"
)

// Entry describes one module to load.
type Entry struct {
	Kind    string         `yaml:"kind" json:"kind"`
	Type    string         `yaml:"type" json:"type"`
	Enabled *bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"` // nil means enabled
	Options map[string]any `yaml:"options,omitempty" json:"options,omitempty"`
}

// IsEnabled reports whether the entry should be loaded.
func (e Entry) IsEnabled() bool { return e.Enabled == nil || *e.Enabled }

// Validate checks the fields a factory lookup needs.
func (e Entry) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("module kind is required")
	}
	switch e.Type {
	case TypeDetector, TypeHandler:
	default:
		return fmt.Errorf("module %q: type must be %s or %s, got %q", e.Kind, TypeDetector, TypeHandler, e.Type)
	}
	return nil
}

// Manifest is the module list file.
//
//	modules:
//	  - kind: portscan
//	    type: detector
//	    options:
//	      min_sequence: 40
//	  - kind: webhook
//	    type: handler
//	    enabled: false
//	    options:
//	      url: https://hooks.example.com/ids
type Manifest struct {
	Modules []Entry `yaml:"modules"`
}

// Default is the module set used when no manifest is configured.
func Default() *Manifest {
	return &Manifest{Modules: []Entry{
		{Kind: "arpspoof", Type: TypeDetector},
		{Kind: "portscan", Type: TypeDetector},
		{Kind: "dnsspoof", Type: TypeDetector},
		{Kind: "logger", Type: TypeHandler},
	}}
}

// Parse decodes a manifest document and validates every entry.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, e := range m.Modules {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
	}
	return &m, nil
}

// Read loads the manifest at path. An empty path yields Default.
func Read(path string) (*Manifest, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(data)
}
