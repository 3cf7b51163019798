// Package logger reports new attacks to the daemon log.
package logger

import (
	"context"
	"fmt"
	"strings"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const Name = "logger"

type Config struct {
	ID    string `mapstructure:"id"`
	Level string `mapstructure:"level"` // info | warn | error
}

type Handler struct {
	config Config
	log    log.Logger
}

func New() plugin.Handler {
	return &Handler{config: Config{ID: Name, Level: "warn"}}
}

func (h *Handler) ID() string { return h.config.ID }

func (h *Handler) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Log Handler", Version: "1.0.0"}
}

func (h *Handler) Init(options map[string]any) error {
	cfg := h.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	switch strings.ToLower(cfg.Level) {
	case "info", "warn", "error":
	default:
		return fmt.Errorf("logger handler: unsupported level %q", cfg.Level)
	}
	if cfg.ID == "" {
		return fmt.Errorf("logger handler: id must not be empty")
	}
	h.config = cfg
	return nil
}

// SetLogger overrides the global logger, for tests.
func (h *Handler) SetLogger(l log.Logger) { h.log = l }

func (h *Handler) Handle(_ context.Context, a *core.Attack) error {
	l := h.log
	if l == nil {
		l = log.GetLogger()
	}
	entry := l.WithFields(map[string]interface{}{
		"signature": a.Signature(),
		"type":      a.Type,
		"attacker":  a.Attacker,
		"victim":    a.Victim,
		"detector":  a.Detector.Name,
		"packets":   len(a.Packets),
	})

	msg := fmt.Sprintf("%s attack detected", a.Type)
	switch strings.ToLower(h.config.Level) {
	case "info":
		entry.Info(msg)
	case "error":
		entry.Error(msg)
	default:
		entry.Warn(msg)
	}
	return nil
}
