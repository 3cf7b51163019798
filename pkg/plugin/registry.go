package plugin

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/wiresentry/internal/core"
)

// DetectorFactory creates a new detector instance.
type DetectorFactory func() Detector

// HandlerFactory creates a new handler instance.
type HandlerFactory func() Handler

// factoryRegistry maps a kind name to a constructor. Registration happens in
// init functions, so misuse panics rather than returning an error.
type factoryRegistry[T any] struct {
	mu        sync.RWMutex
	kind      string
	factories map[string]func() T
}

func newFactoryRegistry[T any](kind string) *factoryRegistry[T] {
	return &factoryRegistry[T]{
		kind:      kind,
		factories: make(map[string]func() T),
	}
}

func (r *factoryRegistry[T]) register(name string, factory func() T) {
	if name == "" {
		panic(fmt.Sprintf("plugin: %s name must not be empty", r.kind))
	}
	if factory == nil {
		panic(fmt.Sprintf("plugin: %s %q factory is nil", r.kind, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic(fmt.Sprintf("plugin: %s %q already registered", r.kind, name))
	}
	r.factories[name] = factory
}

func (r *factoryRegistry[T]) get(name string) (func() T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", r.kind, name, core.ErrPluginNotFound)
	}
	return f, nil
}

func (r *factoryRegistry[T]) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears all registrations. Intended for tests.
func (r *factoryRegistry[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]func() T)
}

var (
	detectorReg = newFactoryRegistry[Detector]("detector")
	handlerReg  = newFactoryRegistry[Handler]("handler")
)

// RegisterDetector registers a detector factory under a kind name.
func RegisterDetector(name string, factory DetectorFactory) {
	detectorReg.register(name, factory)
}

// GetDetectorFactory returns the factory for name, or ErrPluginNotFound.
func GetDetectorFactory(name string) (DetectorFactory, error) {
	f, err := detectorReg.get(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListDetectors returns registered detector kinds, sorted.
func ListDetectors() []string { return detectorReg.list() }

// RegisterHandler registers a handler factory under a kind name.
func RegisterHandler(name string, factory HandlerFactory) {
	handlerReg.register(name, factory)
}

// GetHandlerFactory returns the factory for name, or ErrPluginNotFound.
func GetHandlerFactory(name string) (HandlerFactory, error) {
	f, err := handlerReg.get(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ListHandlers returns registered handler kinds, sorted.
func ListHandlers() []string { return handlerReg.list() }
