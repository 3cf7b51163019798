package capture

import (
	"errors"
	"fmt"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/wiresentry/internal/config"
	"firestige.xyz/wiresentry/internal/core"
)

// Pcap captures from a live interface through libpcap.
type Pcap struct {
	cfg config.CaptureConfig

	inactive *pcap.InactiveHandle
	handle   *pcap.Handle
	loop     readLoop
}

func NewPcap(cfg config.CaptureConfig) *Pcap {
	return &Pcap{cfg: cfg, loop: readLoop{name: "pcap"}}
}

func (s *Pcap) Name() string { return "pcap" }

// Open fails with core.ErrDeviceNotFound when the interface does not exist.
func (s *Pcap) Open() error {
	if err := findDevice(s.cfg.Device); err != nil {
		return err
	}

	inactive, err := pcap.NewInactiveHandle(s.cfg.Device)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.Device, err)
	}
	if err := inactive.SetSnapLen(s.cfg.SnapLen); err != nil {
		inactive.CleanUp()
		return fmt.Errorf("set snaplen: %w", err)
	}
	if err := inactive.SetPromisc(s.cfg.Promiscuous); err != nil {
		inactive.CleanUp()
		return fmt.Errorf("set promiscuous: %w", err)
	}
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}
	if err := inactive.SetTimeout(timeout); err != nil {
		inactive.CleanUp()
		return fmt.Errorf("set timeout: %w", err)
	}

	s.inactive = inactive
	return nil
}

func (s *Pcap) Start(handler func(Frame)) error {
	if s.inactive == nil {
		return core.ErrCaptureClosed
	}

	h, err := s.inactive.Activate()
	if err != nil {
		return fmt.Errorf("activate %s: %w", s.cfg.Device, err)
	}
	if s.cfg.BPFFilter != "" {
		if err := h.SetBPFFilter(s.cfg.BPFFilter); err != nil {
			h.Close()
			return fmt.Errorf("set bpf filter %q: %w", s.cfg.BPFFilter, err)
		}
	}
	s.handle = h

	s.loop.start(h, h.LinkType(), func(err error) bool {
		return errors.Is(err, pcap.NextErrorTimeoutExpired)
	}, handler)
	return nil
}

func (s *Pcap) Stop() { s.loop.halt() }

func (s *Pcap) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	if s.inactive != nil {
		s.inactive.CleanUp()
		s.inactive = nil
	}
	return nil
}

func (s *Pcap) Stats() Stats {
	st := Stats{Received: s.loop.received.Load()}
	if s.handle == nil {
		return st
	}
	if ps, err := s.handle.Stats(); err == nil {
		st.Dropped = uint64(ps.PacketsDropped + ps.PacketsIfDropped)
	}
	return st
}

func findDevice(name string) error {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if d.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, core.ErrDeviceNotFound)
}
