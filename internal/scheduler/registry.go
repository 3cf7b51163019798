// Package scheduler holds the registered detectors and handlers and runs
// due detectors on a fixed tick.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/metrics"
	"firestige.xyz/wiresentry/pkg/plugin"
)

type entry struct {
	detector plugin.Detector
	next     time.Time
}

// Registry stores detectors and handlers in registration order.
//
// Detectors live under mu, which a tick holds for its whole duration.
// Handlers live under hmu so they can be read while a tick is dispatching.
// When both are needed, mu is taken first.
type Registry struct {
	mu        sync.Mutex
	detectors map[string]*entry
	order     []string

	hmu          sync.RWMutex
	handlers     map[string]plugin.Handler
	handlerOrder []string

	clock func() time.Time
}

// NewRegistry returns an empty registry using the wall clock.
func NewRegistry() *Registry {
	return NewRegistryWithClock(time.Now)
}

// NewRegistryWithClock returns an empty registry reading time from clock.
func NewRegistryWithClock(clock func() time.Time) *Registry {
	return &Registry{
		detectors: make(map[string]*entry),
		handlers:  make(map[string]plugin.Handler),
		clock:     clock,
	}
}

// RegisterDetector adds d; its first run is one frequency from now.
func (r *Registry) RegisterDetector(d plugin.Detector) error {
	if d.Frequency() < 1 {
		return fmt.Errorf("detector %q: frequency must be at least 1 second, got %d", d.ID(), d.Frequency())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFreeLocked(d.ID()); err != nil {
		return err
	}

	r.detectors[d.ID()] = &entry{
		detector: d,
		next:     r.clock().Add(frequency(d)),
	}
	r.order = append(r.order, d.ID())
	metrics.ModulesRegistered.WithLabelValues("detector").Set(float64(len(r.order)))
	return nil
}

// RegisterHandler adds h to the end of the dispatch order.
func (r *Registry) RegisterHandler(h plugin.Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkFreeLocked(h.ID()); err != nil {
		return err
	}

	r.hmu.Lock()
	r.handlers[h.ID()] = h
	r.handlerOrder = append(r.handlerOrder, h.ID())
	n := len(r.handlerOrder)
	r.hmu.Unlock()

	metrics.ModulesRegistered.WithLabelValues("handler").Set(float64(n))
	return nil
}

// checkFreeLocked requires mu.
func (r *Registry) checkFreeLocked(id string) error {
	if _, exists := r.detectors[id]; exists {
		return fmt.Errorf("detector %q: %w", id, core.ErrModuleExists)
	}
	r.hmu.RLock()
	_, exists := r.handlers[id]
	r.hmu.RUnlock()
	if exists {
		return fmt.Errorf("handler %q: %w", id, core.ErrModuleExists)
	}
	return nil
}

// Unregister removes the detector or handler with id and returns it.
func (r *Registry) Unregister(id string) (plugin.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.detectors[id]; ok {
		delete(r.detectors, id)
		r.order = remove(r.order, id)
		metrics.ModulesRegistered.WithLabelValues("detector").Set(float64(len(r.order)))
		return e.detector, nil
	}

	r.hmu.Lock()
	defer r.hmu.Unlock()
	if h, ok := r.handlers[id]; ok {
		delete(r.handlers, id)
		r.handlerOrder = remove(r.handlerOrder, id)
		metrics.ModulesRegistered.WithLabelValues("handler").Set(float64(len(r.handlerOrder)))
		return h, nil
	}

	return nil, fmt.Errorf("module %q: %w", id, core.ErrModuleNotFound)
}

// DetectorStatus describes one scheduled detector.
type DetectorStatus struct {
	ID        string          `json:"id"`
	Metadata  plugin.Metadata `json:"metadata"`
	Frequency int             `json:"frequency"`
	NextRun   time.Time       `json:"next_run"`
}

// Detectors lists registered detectors in registration order. It blocks
// while a tick is in progress.
func (r *Registry) Detectors() []DetectorStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DetectorStatus, 0, len(r.order))
	for _, id := range r.order {
		e := r.detectors[id]
		out = append(out, DetectorStatus{
			ID:        id,
			Metadata:  e.detector.Metadata(),
			Frequency: e.detector.Frequency(),
			NextRun:   e.next,
		})
	}
	return out
}

// Handlers returns registered handlers in registration order.
func (r *Registry) Handlers() []plugin.Handler {
	r.hmu.RLock()
	defer r.hmu.RUnlock()

	out := make([]plugin.Handler, 0, len(r.handlerOrder))
	for _, id := range r.handlerOrder {
		out = append(out, r.handlers[id])
	}
	return out
}

// Modules returns every registered detector and handler.
func (r *Registry) Modules() []plugin.Module {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]plugin.Module, 0, len(r.order)+len(r.handlerOrder))
	for _, id := range r.order {
		out = append(out, r.detectors[id].detector)
	}
	for _, h := range r.Handlers() {
		out = append(out, h)
	}
	return out
}

func frequency(d plugin.Detector) time.Duration {
	return time.Duration(d.Frequency()) * time.Second
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...)
		}
	}
	return ids
}
