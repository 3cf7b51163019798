// Package engine connects capture, the packet window, detectors, the
// attack tracker, persistence and handlers.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"firestige.xyz/wiresentry/internal/attack"
	"firestige.xyz/wiresentry/internal/capture"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/metrics"
	"firestige.xyz/wiresentry/internal/sink"
	"firestige.xyz/wiresentry/internal/window"
	"firestige.xyz/wiresentry/pkg/plugin"
)

// DefaultHandlerTimeout bounds one handler call.
const DefaultHandlerTimeout = 30 * time.Second

// FrameDecoder turns a raw frame into a packet record, or nil to discard.
type FrameDecoder interface {
	Decode(frame capture.Frame) *core.Packet
}

// HandlerSource lists the handlers to notify for a new attack.
type HandlerSource interface {
	Handlers() []plugin.Handler
}

// Options wires an Engine.
type Options struct {
	Decoder  FrameDecoder
	Window   *window.Window
	Tracker  *attack.Tracker
	Sink     sink.Sink
	SinkName string // metrics label
	Handlers HandlerSource

	HandlerTimeout time.Duration
}

// Engine is the capture callback and the scheduler runner.
//
// HandleFrame runs on the capture goroutine; Run runs on the scheduler
// goroutine. The two share only the window.
type Engine struct {
	decoder  FrameDecoder
	window   *window.Window
	tracker  *attack.Tracker
	sink     sink.Sink
	sinkName string
	handlers HandlerSource
	timeout  time.Duration

	log log.Logger
}

// New creates an engine. A nil sink is replaced with sink.Nop.
func New(opts Options) *Engine {
	s := opts.Sink
	name := opts.SinkName
	if s == nil {
		s = sink.Nop{}
		name = sink.NopName
	}
	timeout := opts.HandlerTimeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	return &Engine{
		decoder:  opts.Decoder,
		window:   opts.Window,
		tracker:  opts.Tracker,
		sink:     s,
		sinkName: name,
		handlers: opts.Handlers,
		timeout:  timeout,
		log:      log.GetLogger().WithField("component", "engine"),
	}
}

// HandleFrame decodes frame and appends the result to the window.
func (e *Engine) HandleFrame(frame capture.Frame) {
	if p := e.decoder.Decode(frame); p != nil {
		e.window.Append(p)
	}
}

// Run scans a snapshot of the window with d and dispatches every result.
func (e *Engine) Run(d plugin.Detector, now time.Time) {
	for _, a := range d.Scan(now, e.window.Snapshot()) {
		if a == nil {
			continue
		}
		e.Process(a)
	}
}

// Process merges a into the tracker. A new attack is persisted and handed
// to every handler; a grown attack is persisted only.
func (e *Engine) Process(a *core.Attack) attack.Outcome {
	tracked, outcome := e.tracker.Merge(a)
	metrics.AttacksTotal.WithLabelValues(a.Type, outcome.String()).Inc()

	switch outcome {
	case attack.Created:
		e.log.WithFields(map[string]interface{}{
			"signature": tracked.Signature(),
			"type":      tracked.Type,
			"attacker":  tracked.Attacker,
			"victim":    tracked.Victim,
		}).Debug("new attack")
		if err := e.sink.Create(tracked); err != nil {
			e.sinkError("create", tracked, err)
		}
		e.notify(tracked)
	case attack.Updated:
		if err := e.sink.Update(tracked); err != nil {
			e.sinkError("update", tracked, err)
		}
	}
	return outcome
}

func (e *Engine) sinkError(op string, a *core.Attack, err error) {
	metrics.SinkErrorsTotal.WithLabelValues(e.sinkName, op).Inc()
	e.log.WithError(err).WithFields(map[string]interface{}{
		"sink":      e.sinkName,
		"op":        op,
		"signature": a.Signature(),
	}).Error("sink write failed")
}

func (e *Engine) notify(a *core.Attack) {
	if e.handlers == nil {
		return
	}
	for _, h := range e.handlers.Handlers() {
		if err := e.handle(h, a); err != nil {
			e.log.WithError(err).WithFields(map[string]interface{}{
				"handler":   h.ID(),
				"signature": a.Signature(),
			}).Error("handler failed")
		}
	}
}

func (e *Engine) handle(h plugin.Handler, a *core.Attack) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerErrorsTotal.WithLabelValues(h.ID(), "panic").Inc()
			e.log.WithField("stack", string(debug.Stack())).Debug("handler panic stack")
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	if err := h.Handle(ctx, a); err != nil {
		metrics.HandlerErrorsTotal.WithLabelValues(h.ID(), "error").Inc()
		return err
	}
	return nil
}
