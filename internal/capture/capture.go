// Package capture reads link-layer frames from a live interface or a
// capture file and hands them to a callback on a single goroutine.
package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiresentry/internal/config"
)

// Frame is one captured frame. Data may be reused by the source after the
// callback returns.
type Frame struct {
	LinkType    layers.LinkType
	Data        []byte
	CaptureInfo gopacket.CaptureInfo
}

// Stats are cumulative counters reported by the source.
type Stats struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

// Source is a packet source. Open locates and prepares the device, Start
// begins delivering frames, Stop halts delivery and waits for the read
// goroutine, Close releases the device.
type Source interface {
	Name() string
	Open() error
	Start(handler func(Frame)) error
	Stop()
	Close() error
	Stats() Stats
}

// New builds the source selected by cfg.Source.
func New(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Source {
	case "pcap", "":
		return NewPcap(cfg), nil
	case "afpacket":
		return NewAFPacket(cfg), nil
	case "file":
		return NewFile(cfg.File), nil
	default:
		return nil, fmt.Errorf("unsupported capture source: %s", cfg.Source)
	}
}
