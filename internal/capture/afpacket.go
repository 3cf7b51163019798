package capture

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
)

const defaultPollTimeout = 500 * time.Millisecond

// AFPacket captures through a Linux TPACKET_V3 memory-mapped ring.
type AFPacket struct {
	cfg config.CaptureConfig

	frameSize int
	blockSize int
	numBlocks int

	tp   *afpacket.TPacket
	loop readLoop
}

func NewAFPacket(cfg config.CaptureConfig) *AFPacket {
	return &AFPacket{cfg: cfg, loop: readLoop{name: "afpacket"}}
}

func (s *AFPacket) Name() string { return "afpacket" }

func (s *AFPacket) Open() error {
	if _, err := net.InterfaceByName(s.cfg.Device); err != nil {
		return fmt.Errorf("%s: %w", s.cfg.Device, core.ErrDeviceNotFound)
	}

	var err error
	s.frameSize, s.blockSize, s.numBlocks, err = ringGeometry(s.cfg.BufferMB, s.cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return err
	}

	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.cfg.Device),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return fmt.Errorf("open tpacket on %s: %w", s.cfg.Device, err)
	}
	s.tp = tp
	return nil
}

func (s *AFPacket) Start(handler func(Frame)) error {
	if s.tp == nil {
		return core.ErrCaptureClosed
	}

	if s.cfg.FanoutID > 0 {
		if err := s.tp.SetFanout(afpacket.FanoutHashWithDefrag, s.cfg.FanoutID); err != nil {
			return fmt.Errorf("set fanout: %w", err)
		}
	}
	if s.cfg.BPFFilter != "" {
		prog, err := compileBPF(s.cfg.BPFFilter, s.frameSize)
		if err != nil {
			return err
		}
		if err := s.tp.SetBPF(prog); err != nil {
			return fmt.Errorf("attach bpf filter: %w", err)
		}
	}

	s.loop.start(s.tp, layers.LinkTypeEthernet, func(err error) bool {
		return errors.Is(err, afpacket.ErrTimeout)
	}, handler)
	return nil
}

func (s *AFPacket) Stop() { s.loop.halt() }

func (s *AFPacket) Close() error {
	if s.tp != nil {
		s.tp.Close()
		s.tp = nil
	}
	return nil
}

func (s *AFPacket) Stats() Stats {
	st := Stats{Received: s.loop.received.Load()}
	if s.tp == nil {
		return st
	}
	if _, v3, err := s.tp.SocketStats(); err == nil {
		st.Dropped = uint64(v3.Drops())
	}
	return st
}

// compileBPF compiles a tcpdump expression with libpcap and converts it to
// raw instructions for the socket filter.
func compileBPF(expr string, snapLen int) ([]bpf.RawInstruction, error) {
	insns, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, expr)
	if err != nil {
		return nil, fmt.Errorf("compile bpf filter %q: %w", expr, err)
	}
	raw := make([]bpf.RawInstruction, len(insns))
	for i, ins := range insns {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}
