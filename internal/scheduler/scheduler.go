package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/metrics"
	"firestige.xyz/wiresentry/pkg/plugin"
)

// DefaultInterval is the tick period when none is configured.
const DefaultInterval = 250 * time.Millisecond

// Runner executes one detector against the current window.
type Runner interface {
	Run(d plugin.Detector, now time.Time)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(d plugin.Detector, now time.Time)

func (f RunnerFunc) Run(d plugin.Detector, now time.Time) { f(d, now) }

// Scheduler ticks on a fixed interval and runs every due detector, one at a
// time, in registration order.
type Scheduler struct {
	registry *Registry
	runner   Runner
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates a scheduler. A non-positive interval selects DefaultInterval.
func New(registry *Registry, runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		registry: registry,
		runner:   runner,
		interval: interval,
	}
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)

	log.GetLogger().WithField("interval", s.interval.String()).Info("scheduler started")
}

// Stop prevents further ticks and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	log.GetLogger().Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.registry.clock())
		}
	}
}

// Tick runs every detector whose next run is at or before now and returns
// how many ran. Each run reschedules its detector to now plus its
// frequency, whether or not it panicked.
func (s *Scheduler) Tick(now time.Time) int {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	ran := 0
	for _, id := range s.registry.order {
		e := s.registry.detectors[id]
		if e.next.After(now) {
			continue
		}
		s.run(e.detector, now)
		e.next = now.Add(frequency(e.detector))
		ran++
	}
	return ran
}

func (s *Scheduler) run(d plugin.Detector, now time.Time) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.DetectorRunsTotal.WithLabelValues(d.ID(), "panic").Inc()
			log.GetLogger().WithFields(map[string]interface{}{
				"detector": d.ID(),
				"panic":    r,
				"stack":    string(debug.Stack()),
			}).Error("detector panicked")
			return
		}
		metrics.DetectorRunsTotal.WithLabelValues(d.ID(), "ok").Inc()
		metrics.DetectorLatencySeconds.WithLabelValues(d.ID()).Observe(time.Since(start).Seconds())
	}()

	s.runner.Run(d, now)
}
