// Package email mails a short notice for every new attack.
package email

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	Name = "email"

	defaultPort = 25
	defaultFrom = "wiresentry@localhost"
)

type Config struct {
	ID       string   `mapstructure:"id"`
	Host     string   `mapstructure:"host"` // required
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"` // required
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Handler struct {
	config Config
	send   sendFunc
}

func New() plugin.Handler {
	return &Handler{
		config: Config{ID: Name, Port: defaultPort, From: defaultFrom},
		send:   smtp.SendMail,
	}
}

func (h *Handler) ID() string { return h.config.ID }

func (h *Handler) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Email Handler", Version: "1.0.0"}
}

func (h *Handler) Init(options map[string]any) error {
	cfg := h.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if cfg.Host == "" {
		return fmt.Errorf("email handler requires 'host'")
	}
	if len(cfg.To) == 0 {
		return fmt.Errorf("email handler requires at least one recipient in 'to'")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("email handler: invalid port %d", cfg.Port)
	}
	h.config = cfg
	return nil
}

func (h *Handler) Handle(_ context.Context, a *core.Attack) error {
	if h.config.Host == "" {
		return fmt.Errorf("email handler: not configured")
	}

	addr := net.JoinHostPort(h.config.Host, strconv.Itoa(h.config.Port))

	var auth smtp.Auth
	if h.config.Username != "" {
		auth = smtp.PlainAuth("", h.config.Username, h.config.Password, h.config.Host)
	}

	if err := h.send(addr, auth, h.config.From, h.config.To, message(h.config, a)); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}
	return nil
}

// Subject is the mail subject for a.
func Subject(a *core.Attack) string {
	return a.Type + " Attack Detected!"
}

// Body is the mail body for a.
func Body(a *core.Attack) string {
	return a.Attacker + " -> " + a.Victim
}

func message(cfg Config, a *core.Attack) []byte {
	var b strings.Builder
	b.WriteString("From: " + cfg.From + "\r\n")
	b.WriteString("To: " + strings.Join(cfg.To, ",") + "\r\n")
	b.WriteString("Subject: " + Subject(a) + "\r\n")
	b.WriteString("X-Priority: 1\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(Body(a) + "\r\n")
	return []byte(b.String())
}
