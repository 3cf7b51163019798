// Package sink persists attacks. Delivery is best-effort: callers log and
// count failures and carry on.
package sink

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
)

// Sink is a persistence backend for attacks.
type Sink interface {
	Open() error
	Close() error
	// Create stores a newly tracked attack with all of its packets.
	Create(a *core.Attack) error
	// Update stores packets of a known attack not yet persisted.
	Update(a *core.Attack) error
}

// Factory builds an unopened sink from configuration.
type Factory func(cfg config.SinkConfig) (Sink, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a sink type available by name. Panics on duplicates.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("sink: %s already registered", name))
	}
	factories[name] = f
}

// Types lists the registered sink names.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(factories)+1)
	names = append(names, NopName)
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open builds and opens the configured sink. Any failure is logged and the
// no-op sink returned instead, so the daemon always has a usable sink.
func Open(cfg config.SinkConfig) Sink {
	logger := log.GetLogger().WithField("sink", cfg.Type)

	if cfg.Type == "" || cfg.Type == NopName {
		return Nop{}
	}

	mu.RLock()
	f, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		logger.Warn("unknown sink type, persistence disabled")
		return Nop{}
	}

	s, err := f(cfg)
	if err != nil {
		logger.WithError(err).Warn("failed to build sink, persistence disabled")
		return Nop{}
	}
	if err := s.Open(); err != nil {
		logger.WithError(err).Warn("failed to open sink, persistence disabled")
		return Nop{}
	}

	logger.Info("sink opened")
	return s
}

// NopName is the configuration name of the no-op sink.
const NopName = "none"

// Nop discards everything.
type Nop struct{}

func (Nop) Open() error               { return nil }
func (Nop) Close() error              { return nil }
func (Nop) Create(*core.Attack) error { return nil }
func (Nop) Update(*core.Attack) error { return nil }
