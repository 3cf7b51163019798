// Package kafka publishes new attacks to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/log"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	Name = "kafka"

	defaultBatchSize    = 1
	defaultBatchTimeout = 100 * time.Millisecond
	defaultCompression  = "snappy"
	defaultMaxAttempts  = 3
	defaultEncoding     = "json"
)

type Config struct {
	ID           string        `mapstructure:"id"`
	Brokers      []string      `mapstructure:"brokers"` // required
	Topic        string        `mapstructure:"topic"`   // required
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
	Compression  string        `mapstructure:"compression"` // none | gzip | snappy | lz4
	MaxAttempts  int           `mapstructure:"max_attempts"`
	Encoding     string        `mapstructure:"encoding"` // json | protobuf
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler struct {
	config Config
	writer messageWriter

	published atomic.Uint64
	failed    atomic.Uint64
}

func New() plugin.Handler {
	return &Handler{config: Config{
		ID:           Name,
		BatchSize:    defaultBatchSize,
		BatchTimeout: defaultBatchTimeout,
		Compression:  defaultCompression,
		MaxAttempts:  defaultMaxAttempts,
		Encoding:     defaultEncoding,
	}}
}

func (h *Handler) ID() string { return h.config.ID }

func (h *Handler) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Kafka Handler", Version: "1.0.0"}
}

func (h *Handler) Init(options map[string]any) error {
	cfg := h.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if len(cfg.Brokers) == 0 {
		return fmt.Errorf("brokers is required")
	}
	if cfg.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	switch cfg.Encoding {
	case "json", "protobuf":
	default:
		return fmt.Errorf("invalid encoding: %s", cfg.Encoding)
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
	}

	switch cfg.Compression {
	case "none", "":
		writerConfig.CompressionCodec = nil
	case "gzip":
		writerConfig.CompressionCodec = compress.Gzip.Codec()
	case "snappy":
		writerConfig.CompressionCodec = compress.Snappy.Codec()
	case "lz4":
		writerConfig.CompressionCodec = compress.Lz4.Codec()
	default:
		return fmt.Errorf("invalid compression type: %s", cfg.Compression)
	}

	h.config = cfg
	h.writer = kafka.NewWriter(writerConfig)
	return nil
}

// Handle publishes a keyed by its signature so repeats of one incident land
// on the same partition.
func (h *Handler) Handle(ctx context.Context, a *core.Attack) error {
	if h.writer == nil {
		return fmt.Errorf("kafka handler: not configured")
	}

	value, err := encode(h.config.Encoding, a.View())
	if err != nil {
		h.failed.Add(1)
		return fmt.Errorf("encode attack: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(a.Signature()),
		Value: value,
		Time:  a.LastSeen(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(a.Type)},
			{Key: "detector", Value: []byte(a.Detector.ID)},
			{Key: "encoding", Value: []byte(h.config.Encoding)},
		},
	}

	if err := h.writer.WriteMessages(ctx, msg); err != nil {
		h.failed.Add(1)
		return fmt.Errorf("kafka write failed: %w", err)
	}
	h.published.Add(1)
	return nil
}

func (h *Handler) Close() error {
	if h.writer == nil {
		return nil
	}
	err := h.writer.Close()
	log.GetLogger().WithFields(map[string]interface{}{
		"handler":   h.config.ID,
		"published": h.published.Load(),
		"failed":    h.failed.Load(),
	}).Info("kafka handler closed")
	return err
}

func encode(encoding string, v core.AttackView) ([]byte, error) {
	if encoding == "json" {
		return json.Marshal(v)
	}

	st, err := structpb.NewStruct(map[string]any{
		"signature":  v.Signature,
		"type":       v.Type,
		"attacker":   v.Attacker,
		"victim":     v.Victim,
		"packets":    v.Packets,
		"first_seen": v.FirstSeen.UnixMilli(),
		"last_seen":  v.LastSeen.UnixMilli(),
		"detector": map[string]any{
			"id":      v.Detector.ID,
			"name":    v.Detector.Name,
			"author":  v.Detector.Author,
			"version": v.Detector.Version,
		},
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(st)
}
