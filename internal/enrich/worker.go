// Package enrich resolves packet addresses to host names off the capture
// path.
package enrich

import (
	"context"
	"sync"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/metrics"
	"firestige.xyz/wiresentry/internal/resolver"
)

// DefaultQueueSize bounds the backlog when none is configured.
const DefaultQueueSize = 65535

// Worker resolves source and destination domains for queued packets on a
// single goroutine. Lookups are attempted once; failures leave the domain
// unset.
type Worker struct {
	resolver resolver.Resolver
	limit    int

	mu    sync.Mutex
	queue []*core.Packet

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker. queueSize <= 0 selects DefaultQueueSize.
func New(r resolver.Resolver, queueSize int) *Worker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Worker{
		resolver: r,
		limit:    queueSize,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds p to the backlog and signals the worker. It never blocks;
// when the backlog is full p is skipped.
func (w *Worker) Enqueue(p *core.Packet) {
	w.mu.Lock()
	if len(w.queue) >= w.limit {
		w.mu.Unlock()
		metrics.EnrichmentTotal.WithLabelValues("skipped").Inc()
		return
	}
	w.queue = append(w.queue, p)
	n := len(w.queue)
	w.mu.Unlock()

	metrics.EnrichmentBacklog.Set(float64(n))
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Pending returns the backlog length.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop cancels in-flight lookups and waits for the goroutine to exit.
// Packets still queued are dropped.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	logger := log.GetLogger().WithField("component", "enrich")
	logger.Debug("enrichment worker started")

	for {
		for {
			batch := w.drain()
			if len(batch) == 0 {
				break
			}
			for _, p := range batch {
				if ctx.Err() != nil {
					return
				}
				w.enrich(ctx, p, logger)
			}
		}

		select {
		case <-ctx.Done():
			logger.Debug("enrichment worker stopped")
			return
		case <-w.wake:
		}
	}
}

func (w *Worker) drain() []*core.Packet {
	w.mu.Lock()
	defer w.mu.Unlock()
	batch := w.queue
	w.queue = nil
	metrics.EnrichmentBacklog.Set(0)
	return batch
}

func (w *Worker) enrich(ctx context.Context, p *core.Packet, logger log.Logger) {
	if name, ok := w.lookup(ctx, p.SrcIP, logger); ok {
		p.SetSrcDomain(name)
	}
	if name, ok := w.lookup(ctx, p.DstIP, logger); ok {
		p.SetDstDomain(name)
	}
}

func (w *Worker) lookup(ctx context.Context, ip string, logger log.Logger) (string, bool) {
	if ip == "" {
		return "", false
	}
	name, err := w.resolver.Resolve(ctx, ip)
	if err != nil {
		metrics.EnrichmentTotal.WithLabelValues("failed").Inc()
		logger.WithError(err).WithField("ip", ip).Debug("reverse lookup failed")
		return "", false
	}
	metrics.EnrichmentTotal.WithLabelValues("resolved").Inc()
	return name, true
}
