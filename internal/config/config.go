// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GlobalConfig represents the top-level daemon configuration.
// Maps to the `wiresentry:` root key in YAML.
type GlobalConfig struct {
	Capture   CaptureConfig   `mapstructure:"capture"`
	Window    WindowConfig    `mapstructure:"window"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	DNS       DNSConfig       `mapstructure:"dns"`
	Sink      SinkConfig      `mapstructure:"sink"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
	Control   ControlConfig   `mapstructure:"control"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// ─── Capture ───

// CaptureConfig selects and configures the packet source.
type CaptureConfig struct {
	Source      string        `mapstructure:"source"` // pcap | afpacket | file
	Device      string        `mapstructure:"device"` // interface name for live sources
	Promiscuous bool          `mapstructure:"promiscuous"`
	SnapLen     int           `mapstructure:"snap_len"`
	BPFFilter   string        `mapstructure:"bpf_filter"`
	Timeout     time.Duration `mapstructure:"timeout"`        // read timeout for live sources
	File        string        `mapstructure:"file"`           // pcap file for the file source
	BufferMB    int           `mapstructure:"buffer_size_mb"` // afpacket ring size
	FanoutID    uint16        `mapstructure:"fanout_id"`      // afpacket, 0 disables fanout
}

// ─── Detection ───

// WindowConfig sizes the recent-packet window.
type WindowConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// SchedulerConfig controls the detector tick.
type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// DNSConfig controls reverse-DNS enrichment.
type DNSConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Resolver  string        `mapstructure:"resolver"` // system | dns
	Servers   []string      `mapstructure:"servers"`  // host:port, dns resolver only
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"` // 0 disables caching
	QueueSize int           `mapstructure:"queue_size"` // 0 selects the default
}

// ─── Persistence ───

// SinkConfig selects the attack persistence backend.
type SinkConfig struct {
	Type   string           `mapstructure:"type"` // none | sqlite | file
	SQLite SQLiteSinkConfig `mapstructure:"sqlite"`
	File   FileSinkConfig   `mapstructure:"file"`
}

// SQLiteSinkConfig configures the SQLite sink.
type SQLiteSinkConfig struct {
	Path string `mapstructure:"path"`
}

// FileSinkConfig configures the JSON-lines sink.
type FileSinkConfig struct {
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// ─── Plugins ───

// PluginsConfig points at the module manifest. Empty means built-in defaults.
type PluginsConfig struct {
	Manifest string `mapstructure:"manifest"`
}

// ─── Control Plane ───

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level"`  // debug / info / warn / error
	Format     string           `mapstructure:"format"` // json / text
	Pattern    string           `mapstructure:"pattern"`
	TimeFormat string           `mapstructure:"time_format"`
	Outputs    LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// Root is the YAML root key; env vars use the WIRESENTRY_ prefix.
const Root = "wiresentry"

// configRoot is the top-level wrapper matching the YAML structure `wiresentry: ...`.
type configRoot struct {
	WireSentry GlobalConfig `mapstructure:"wiresentry"`
}

// New returns a viper instance with defaults and env overrides applied.
// Callers may bind CLI flags to it (keys are "wiresentry.<section>.<field>")
// before handing it to LoadWith.
func New() *viper.Viper {
	v := viper.New()
	// No explicit env prefix: key "wiresentry.log.level" maps to WIRESENTRY_LOG_LEVEL.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load loads configuration from file.
func Load(path string) (*GlobalConfig, error) {
	return LoadWith(New(), path)
}

// LoadWith reads path (if non-empty) into v and returns the validated config.
func LoadWith(v *viper.Viper, path string) (*GlobalConfig, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.WireSentry

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Key prefixes a dotted config key with the root.
func Key(k string) string { return Root + "." + k }

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault(Key("capture.source"), "pcap")
	v.SetDefault(Key("capture.device"), "")
	v.SetDefault(Key("capture.promiscuous"), true)
	v.SetDefault(Key("capture.snap_len"), 65535)
	v.SetDefault(Key("capture.bpf_filter"), "")
	v.SetDefault(Key("capture.timeout"), "500ms")
	v.SetDefault(Key("capture.file"), "")
	v.SetDefault(Key("capture.buffer_size_mb"), 8)
	v.SetDefault(Key("capture.fanout_id"), 0)

	// Detection defaults
	v.SetDefault(Key("window.capacity"), 65535)
	v.SetDefault(Key("scheduler.interval"), "250ms")

	// Enrichment defaults
	v.SetDefault(Key("dns.enabled"), true)
	v.SetDefault(Key("dns.resolver"), "system")
	v.SetDefault(Key("dns.servers"), []string{})
	v.SetDefault(Key("dns.timeout"), "2s")
	v.SetDefault(Key("dns.cache_size"), 4096)
	v.SetDefault(Key("dns.queue_size"), 65535)

	// Sink defaults
	v.SetDefault(Key("sink.type"), "none")
	v.SetDefault(Key("sink.sqlite.path"), "/var/lib/wiresentry/wiresentry.db")
	v.SetDefault(Key("sink.file.path"), "/var/lib/wiresentry/attacks.jsonl")
	v.SetDefault(Key("sink.file.rotation.max_size_mb"), 100)
	v.SetDefault(Key("sink.file.rotation.max_age_days"), 30)
	v.SetDefault(Key("sink.file.rotation.max_backups"), 5)
	v.SetDefault(Key("sink.file.rotation.compress"), true)

	v.SetDefault(Key("plugins.manifest"), "")

	// Control defaults
	v.SetDefault(Key("control.pid_file"), "/var/run/wiresentry.pid")
	v.SetDefault(Key("control.socket"), "/var/run/wiresentry.sock")

	// Log defaults
	v.SetDefault(Key("log.level"), "info")
	v.SetDefault(Key("log.format"), "text")
	v.SetDefault(Key("log.pattern"), "")
	v.SetDefault(Key("log.time_format"), "")
	v.SetDefault(Key("log.outputs.file.enabled"), false)
	v.SetDefault(Key("log.outputs.file.path"), "/var/log/wiresentry/wiresentry.log")
	v.SetDefault(Key("log.outputs.file.rotation.max_size_mb"), 100)
	v.SetDefault(Key("log.outputs.file.rotation.max_age_days"), 30)
	v.SetDefault(Key("log.outputs.file.rotation.max_backups"), 5)
	v.SetDefault(Key("log.outputs.file.rotation.compress"), true)

	// Metrics defaults
	v.SetDefault(Key("metrics.enabled"), false)
	v.SetDefault(Key("metrics.listen"), "127.0.0.1:9095")
	v.SetDefault(Key("metrics.path"), "/metrics")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	// ── Capture ──
	switch cfg.Capture.Source {
	case "pcap", "afpacket":
		if cfg.Capture.Device == "" {
			return fmt.Errorf("capture.device is required for source %q", cfg.Capture.Source)
		}
	case "file":
		if cfg.Capture.File == "" {
			return fmt.Errorf("capture.file is required for source \"file\"")
		}
	default:
		return fmt.Errorf("unsupported capture.source: %s (must be pcap/afpacket/file)", cfg.Capture.Source)
	}
	if cfg.Capture.SnapLen <= 0 {
		cfg.Capture.SnapLen = 65535
	}
	if cfg.Capture.BufferMB <= 0 {
		cfg.Capture.BufferMB = 8
	}

	// ── Window / scheduler ──
	if cfg.Window.Capacity <= 0 {
		return fmt.Errorf("window.capacity must be positive, got %d", cfg.Window.Capacity)
	}
	if cfg.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", cfg.Scheduler.Interval)
	}

	// ── DNS ──
	if cfg.DNS.Enabled {
		switch cfg.DNS.Resolver {
		case "system":
		case "dns":
			if len(cfg.DNS.Servers) == 0 {
				return fmt.Errorf("dns.servers is required when dns.resolver=dns")
			}
		default:
			return fmt.Errorf("unsupported dns.resolver: %s (must be system/dns)", cfg.DNS.Resolver)
		}
		if cfg.DNS.Timeout <= 0 {
			cfg.DNS.Timeout = 2 * time.Second
		}
	}

	// ── Sink ──
	switch cfg.Sink.Type {
	case "none", "":
		cfg.Sink.Type = "none"
	case "sqlite":
		if cfg.Sink.SQLite.Path == "" {
			return fmt.Errorf("sink.sqlite.path is required when sink.type=sqlite")
		}
	case "file":
		if cfg.Sink.File.Path == "" {
			return fmt.Errorf("sink.file.path is required when sink.type=file")
		}
	default:
		return fmt.Errorf("unsupported sink.type: %s (must be none/sqlite/file)", cfg.Sink.Type)
	}

	return nil
}
