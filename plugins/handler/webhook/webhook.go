// Package webhook posts new attacks as JSON to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	Name = "webhook"

	defaultTimeout = 10 * time.Second
)

type Config struct {
	ID      string            `mapstructure:"id"`
	URL     string            `mapstructure:"url"` // required
	Timeout time.Duration     `mapstructure:"timeout"`
	Headers map[string]string `mapstructure:"headers"`
}

// Payload is the request body.
type Payload struct {
	Event  string          `json:"event"`
	Text   string          `json:"text"`
	Attack core.AttackView `json:"attack"`
}

type Handler struct {
	config Config
	client *http.Client
}

func New() plugin.Handler {
	return &Handler{config: Config{ID: Name, Timeout: defaultTimeout}}
}

func (h *Handler) ID() string { return h.config.ID }

func (h *Handler) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Webhook Handler", Version: "1.0.0"}
}

func (h *Handler) Init(options map[string]any) error {
	cfg := h.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return fmt.Errorf("webhook handler requires 'url'")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	h.config = cfg
	h.client = &http.Client{Timeout: cfg.Timeout}
	return nil
}

func (h *Handler) Handle(ctx context.Context, a *core.Attack) error {
	if h.client == nil {
		return fmt.Errorf("webhook handler: not configured")
	}

	body, err := json.Marshal(Payload{
		Event:  "attack.detected",
		Text:   fmt.Sprintf("%s Attack Detected! %s -> %s", a.Type, a.Attacker, a.Victim),
		Attack: a.View(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.config.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range h.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
