// Package plugin defines the detector and handler contracts and the
// factory registry built-in modules register into.
package plugin

import (
	"context"
	"time"

	"firestige.xyz/wiresentry/internal/core"
)

// Metadata is informational only; it never affects scheduling.
type Metadata struct {
	Name    string `json:"name"`
	Author  string `json:"author,omitempty"`
	Version string `json:"version,omitempty"`
}

// Module is anything the scheduler registry can hold.
type Module interface {
	// ID is unique across all registered detectors and handlers.
	ID() string
	Metadata() Metadata
}

// Detector inspects a window snapshot and reports attacks.
//
// Scan runs on the scheduler goroutine, one detector at a time. It must not
// modify the packets it is given.
type Detector interface {
	Module
	// Frequency is the run interval in whole seconds, at least 1.
	Frequency() int
	Scan(now time.Time, window []*core.Packet) []*core.Attack
}

// Handler is notified once for every newly created attack.
type Handler interface {
	Module
	Handle(ctx context.Context, attack *core.Attack) error
}

// Configurable modules accept manifest options after construction.
type Configurable interface {
	Init(options map[string]any) error
}

// Closer modules hold resources released on unregister or shutdown.
type Closer interface {
	Close() error
}

// Describe builds the attack attribution for a module.
func Describe(m Module) core.DetectorInfo {
	md := m.Metadata()
	return core.DetectorInfo{
		ID:      m.ID(),
		Name:    md.Name,
		Author:  md.Author,
		Version: md.Version,
	}
}
