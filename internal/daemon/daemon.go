// Package daemon implements the daemon lifecycle manager.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"firestige.xyz/wiresentry/internal/attack"
	"firestige.xyz/wiresentry/internal/capture"
	"firestige.xyz/wiresentry/internal/command"
	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/decoder"
	"firestige.xyz/wiresentry/internal/engine"
	"firestige.xyz/wiresentry/internal/enrich"
	"firestige.xyz/wiresentry/internal/loader"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/internal/metrics"
	"firestige.xyz/wiresentry/internal/resolver"
	"firestige.xyz/wiresentry/internal/scheduler"
	"firestige.xyz/wiresentry/internal/sink"
	_ "firestige.xyz/wiresentry/internal/sink/jsonfile"
	_ "firestige.xyz/wiresentry/internal/sink/sqlite"
	"firestige.xyz/wiresentry/internal/window"
	_ "firestige.xyz/wiresentry/plugins"
)

// Version is reported by daemon_status and the CLI.
const Version = "0.1.0"

// Process exit codes for fatal startup failures.
const (
	ExitDeviceNotFound = 2
	ExitOpenFailed     = 3
	ExitStartFailed    = 4
)

// ExitError is a fatal startup failure carrying the process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// Daemon manages the wiresentry process lifecycle.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string

	// Detection pipeline
	source    capture.Source
	window    *window.Window
	tracker   *attack.Tracker
	registry  *scheduler.Registry
	scheduler *scheduler.Scheduler
	engine    *engine.Engine
	enricher  *enrich.Worker // nil if enrichment disabled
	sink      sink.Sink
	sinkName  string

	// Control plane
	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	metricsServer *metrics.Server // nil if metrics disabled

	// Lifecycle management
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	stopOnce     sync.Once
	sigChan      chan os.Signal
}

// New creates a daemon for a loaded configuration. configPath is re-read
// on SIGHUP; it may be empty.
func New(cfg *config.GlobalConfig, configPath string) *Daemon {
	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		registry:     scheduler.NewRegistry(),
		tracker:      attack.NewTracker(),
		window:       window.New(cfg.Window.Capacity),
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d
}

// Start initializes and starts all daemon components. Fatal capture
// failures are returned as *ExitError; whatever was already started is
// torn down before Start returns an error.
func (d *Daemon) Start() (err error) {
	defer func() {
		if err != nil {
			d.Stop()
		}
	}()

	// 1. Logging
	if err := log.Init(d.config.Log); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger := log.GetLogger()
	logger.WithFields(map[string]interface{}{
		"version": Version,
		"config":  d.configPath,
		"source":  d.config.Capture.Source,
	}).Info("starting wiresentry daemon")

	// 2. PID file
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	// 3. Metrics
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 4. Persistence; never fatal
	d.sink = sink.Open(d.config.Sink)
	d.sinkName = d.config.Sink.Type
	if _, nop := d.sink.(sink.Nop); nop {
		d.sinkName = sink.NopName
	}

	// 5. Capture device
	src, err := capture.New(d.config.Capture)
	if err != nil {
		return &ExitError{Code: ExitOpenFailed, Err: err}
	}
	if err := src.Open(); err != nil {
		code := ExitOpenFailed
		if errors.Is(err, core.ErrDeviceNotFound) {
			code = ExitDeviceNotFound
		}
		return &ExitError{Code: code, Err: err}
	}
	d.source = src

	// 6. Modules
	manifest, err := loader.Read(d.config.Plugins.Manifest)
	if err != nil {
		return fmt.Errorf("failed to load module manifest: %w", err)
	}
	n, err := loader.Load(d.registry, manifest)
	if err != nil {
		logger.WithError(err).Warn("some modules failed to load")
	}
	logger.WithField("count", n).Info("modules loaded")

	// 7. Enrichment
	var enq decoder.Enqueuer
	if d.config.DNS.Enabled {
		res, err := resolver.New(d.config.DNS)
		if err != nil {
			logger.WithError(err).Warn("failed to create resolver, enrichment disabled")
		} else {
			d.enricher = enrich.New(res, d.config.DNS.QueueSize)
			d.enricher.Start(d.ctx)
			enq = d.enricher
		}
	}

	d.engine = engine.New(engine.Options{
		Decoder:  decoder.New(enq, nil),
		Window:   d.window,
		Tracker:  d.tracker,
		Sink:     d.sink,
		SinkName: d.sinkName,
		Handlers: d.registry,
	})

	// 8. Capture loop
	if err := d.source.Start(d.engine.HandleFrame); err != nil {
		return &ExitError{Code: ExitStartFailed, Err: err}
	}

	// 9. Scheduler
	d.scheduler = scheduler.New(d.registry, d.engine, d.config.Scheduler.Interval)
	d.scheduler.Start()

	// 10. Control plane; non-fatal, detection keeps running without it
	d.cmdHandler = command.NewCommandHandler(d.registry, d.tracker, d.status)
	d.cmdHandler.SetShutdownFunc(func() {
		log.GetLogger().Info("shutdown triggered via daemon_shutdown command")
		d.TriggerShutdown()
	})
	d.udsServer = command.NewUDSServer(d.config.Control.Socket, d.cmdHandler)
	if err := d.udsServer.Listen(); err != nil {
		logger.WithError(err).Error("control socket unavailable")
	} else {
		go func() {
			if err := d.udsServer.Serve(d.ctx); err != nil {
				log.GetLogger().WithError(err).Error("uds server failed")
			}
		}()
	}

	logger.Info("daemon started successfully")
	return nil
}

// Stop shuts components down in dependency order. Safe on a partially
// started daemon and on repeated calls.
func (d *Daemon) Stop() {
	d.stopOnce.Do(d.stop)
}

func (d *Daemon) stop() {
	logger := log.GetLogger()
	logger.Info("initiating graceful shutdown")

	// 1. No more detector runs; waits for an in-flight tick
	if d.scheduler != nil {
		d.scheduler.Stop()
	}

	// 2. Persistence
	if d.sink != nil {
		if err := d.sink.Close(); err != nil {
			logger.WithError(err).Error("error closing sink")
		}
	}

	// 3. Capture loop, then the device
	if d.source != nil {
		d.source.Stop()
		if err := d.source.Close(); err != nil {
			logger.WithError(err).Error("error closing capture source")
		}
	}

	// 4. Enrichment
	if d.enricher != nil {
		d.enricher.Stop()
	}

	// 5. Modules holding resources
	for _, m := range d.registry.Modules() {
		loader.Close(m)
	}

	// 6. Control plane
	if d.udsServer != nil {
		d.udsServer.Stop()
	}

	// 7. Metrics
	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("error stopping metrics server")
		}
		cancel()
	}

	d.cancel()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	// 8. PID file
	if err := d.removePIDFile(); err != nil {
		logger.WithError(err).Error("error removing PID file")
	}

	logger.Info("daemon stopped gracefully")
}

// Run blocks until SIGTERM, SIGINT or daemon_shutdown, then stops the
// daemon. SIGHUP reloads the log configuration.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	log.GetLogger().Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				log.GetLogger().WithField("signal", sig.String()).Info("received shutdown signal")
				d.Stop()
				return nil
			case syscall.SIGHUP:
				if err := d.Reload(); err != nil {
					log.GetLogger().WithError(err).Error("failed to reload config")
				}
			}

		case <-d.shutdownChan:
			log.GetLogger().Info("shutdown triggered by command")
			d.Stop()
			return nil

		case <-d.ctx.Done():
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// Reload re-reads the configuration file. Only logging is applied live;
// changes to other sections are reported as requiring a restart.
func (d *Daemon) Reload() error {
	if d.configPath == "" {
		return fmt.Errorf("no configuration file to reload")
	}
	newConfig, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("failed to load new config: %w", err)
	}

	if err := log.Init(newConfig.Log); err != nil {
		return fmt.Errorf("failed to reinitialize logging: %w", err)
	}

	var requiresRestart []string
	if newConfig.Capture != d.config.Capture {
		requiresRestart = append(requiresRestart, "capture")
	}
	if newConfig.Sink.Type != d.config.Sink.Type {
		requiresRestart = append(requiresRestart, "sink")
	}
	if newConfig.Metrics != d.config.Metrics {
		requiresRestart = append(requiresRestart, "metrics")
	}
	d.config.Log = newConfig.Log

	log.GetLogger().WithFields(map[string]interface{}{
		"hot_reloaded":     []string{"log"},
		"requires_restart": requiresRestart,
	}).Info("configuration reloaded")
	return nil
}

// TriggerShutdown asks Run to stop the daemon.
func (d *Daemon) TriggerShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownChan) })
}

func (d *Daemon) status() command.Status {
	st := command.Status{
		Version: Version,
		Sink:    d.sinkName,
		Attacks: d.tracker.Len(),
		Window: command.WindowStatus{
			Count:     d.window.Count(),
			Capacity:  d.window.Capacity(),
			Protocols: make(map[string]int),
		},
	}
	d.window.Range(func(p *core.Packet) bool {
		st.Window.Protocols[p.Protocol().String()]++
		return true
	})
	if d.source != nil {
		stats := d.source.Stats()
		st.Capture = command.CaptureStatus{
			Source:   d.source.Name(),
			Received: stats.Received,
			Dropped:  stats.Dropped,
		}
	}
	if d.enricher != nil {
		st.Enrichment = command.EnrichStatus{Enabled: true, Pending: d.enricher.Pending()}
	}
	return st
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		log.GetLogger().Debug("metrics server disabled")
		return nil
	}

	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(d.ctx)
}

func (d *Daemon) writePIDFile() error {
	path := d.config.Control.PIDFile
	if path == "" {
		return nil
	}

	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write PID file %s: %w", path, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{"path": path, "pid": pid}).Debug("PID file written")
	return nil
}

func (d *Daemon) removePIDFile() error {
	path := d.config.Control.PIDFile
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file %s: %w", path, err)
	}
	return nil
}
