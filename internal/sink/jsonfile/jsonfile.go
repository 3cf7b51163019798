// Package jsonfile appends attacks as JSON lines to a rotated file.
package jsonfile

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/sink"
)

const Name = "file"

func init() {
	sink.Register(Name, func(cfg config.SinkConfig) (sink.Sink, error) {
		if cfg.File.Path == "" {
			return nil, fmt.Errorf("file sink requires 'path' field")
		}
		return New(cfg.File), nil
	})
}

// Record is one line in the output file.
type Record struct {
	Op      string            `json:"op"` // create | update
	Time    time.Time         `json:"time"`
	Attack  core.AttackView   `json:"attack"`
	Packets []core.PacketView `json:"packets"`
}

type Sink struct {
	cfg config.FileSinkConfig
	now func() time.Time

	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

func New(cfg config.FileSinkConfig) *Sink {
	return &Sink{cfg: cfg, now: time.Now}
}

func (s *Sink) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out = &lumberjack.Logger{
		Filename:   s.cfg.Path,
		MaxSize:    s.cfg.Rotation.MaxSizeMB,
		MaxAge:     s.cfg.Rotation.MaxAgeDays,
		MaxBackups: s.cfg.Rotation.MaxBackups,
		Compress:   s.cfg.Rotation.Compress,
	}
	s.enc = json.NewEncoder(s.out)
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out, s.enc = nil, nil
	return err
}

func (s *Sink) Create(a *core.Attack) error {
	return s.write("create", a, a.Packets)
}

// Update writes only packets not yet logged. Nothing is written when there
// are none.
func (s *Sink) Update(a *core.Attack) error {
	var fresh []*core.Packet
	for _, p := range a.Packets {
		if !p.Logged() {
			fresh = append(fresh, p)
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	return s.write("update", a, fresh)
}

func (s *Sink) write(op string, a *core.Attack, packets []*core.Packet) error {
	rec := Record{
		Op:      op,
		Time:    s.now(),
		Attack:  a.View(),
		Packets: make([]core.PacketView, 0, len(packets)),
	}
	for _, p := range packets {
		rec.Packets = append(rec.Packets, p.View())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return core.ErrSinkClosed
	}
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("write %s record: %w", op, err)
	}

	for _, p := range packets {
		p.MarkLogged()
	}
	return nil
}
