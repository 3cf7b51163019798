// Package core defines the packet and attack records shared by every stage.
package core

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Protocol tags a decoded packet.
type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	ProtocolTCP
	ProtocolUDP
	ProtocolARP
	ProtocolICMP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "tcp"
	case ProtocolUDP:
		return "udp"
	case ProtocolARP:
		return "arp"
	case ProtocolICMP:
		return "icmp"
	default:
		return "unknown"
	}
}

// ParseProtocol is the inverse of Protocol.String.
func ParseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "tcp":
		return ProtocolTCP
	case "udp":
		return ProtocolUDP
	case "arp":
		return ProtocolARP
	case "icmp":
		return ProtocolICMP
	default:
		return ProtocolUnknown
	}
}

// Packet is one decoded frame kept in the window.
//
// Header fields are written once by the decoder before the packet is
// published. Domains are filled in later by the enrichment worker and the
// logged flag is owned by the persistence sink; both are atomics so those
// writers never race with readers on other goroutines.
//
// A Packet must not be copied after first use.
type Packet struct {
	ID uuid.UUID

	SrcIP   string // empty for ARP
	DstIP   string
	SrcPort uint16 // TCP/UDP only
	DstPort uint16

	// Sender/target hardware address for ARP, Ethernet source/destination otherwise.
	SrcMAC string
	DstMAC string

	ICMPType  string // ICMPv4 type-code, ICMP only
	Payload   []byte
	Timestamp time.Time

	protocol  Protocol
	srcDomain atomic.Pointer[string]
	dstDomain atomic.Pointer[string]
	logged    atomic.Bool
}

// NewPacket returns a packet with a fresh ID and a fixed protocol tag.
func NewPacket(proto Protocol, ts time.Time) *Packet {
	return &Packet{
		ID:        uuid.New(),
		Timestamp: ts,
		protocol:  proto,
	}
}

func (p *Packet) Protocol() Protocol { return p.protocol }

// SrcDomain returns the reverse-resolved source name, if any.
func (p *Packet) SrcDomain() (string, bool) {
	if s := p.srcDomain.Load(); s != nil {
		return *s, true
	}
	return "", false
}

func (p *Packet) SetSrcDomain(name string) { p.srcDomain.Store(&name) }

// DstDomain returns the reverse-resolved destination name, if any.
func (p *Packet) DstDomain() (string, bool) {
	if s := p.dstDomain.Load(); s != nil {
		return *s, true
	}
	return "", false
}

func (p *Packet) SetDstDomain(name string) { p.dstDomain.Store(&name) }

// Logged reports whether a sink has already persisted this packet.
func (p *Packet) Logged() bool { return p.logged.Load() }

func (p *Packet) MarkLogged() { p.logged.Store(true) }

// PacketView is a plain, serialisable copy of a Packet.
type PacketView struct {
	ID        string    `json:"id"`
	Protocol  string    `json:"protocol"`
	SrcIP     string    `json:"src_ip,omitempty"`
	DstIP     string    `json:"dst_ip,omitempty"`
	SrcPort   uint16    `json:"src_port,omitempty"`
	DstPort   uint16    `json:"dst_port,omitempty"`
	SrcMAC    string    `json:"src_mac,omitempty"`
	DstMAC    string    `json:"dst_mac,omitempty"`
	SrcDomain string    `json:"src_domain,omitempty"`
	DstDomain string    `json:"dst_domain,omitempty"`
	ICMPType  string    `json:"icmp_type,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// View snapshots the packet, including whatever domains are resolved so far.
func (p *Packet) View() PacketView {
	v := PacketView{
		ID:        p.ID.String(),
		Protocol:  p.protocol.String(),
		SrcIP:     p.SrcIP,
		DstIP:     p.DstIP,
		SrcPort:   p.SrcPort,
		DstPort:   p.DstPort,
		SrcMAC:    p.SrcMAC,
		DstMAC:    p.DstMAC,
		ICMPType:  p.ICMPType,
		Payload:   p.Payload,
		Timestamp: p.Timestamp,
	}
	v.SrcDomain, _ = p.SrcDomain()
	v.DstDomain, _ = p.DstDomain()
	return v
}
