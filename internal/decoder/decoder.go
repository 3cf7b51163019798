// Package decoder turns captured frames into packet records.
package decoder

import (
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/wiresentry/internal/capture"
	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/metrics"
)

// Enqueuer accepts records for asynchronous enrichment. Enqueue must not
// block.
type Enqueuer interface {
	Enqueue(p *core.Packet)
}

// Decoder recognizes TCP, UDP and ICMPv4 over IP, and ARP. It reuses its
// layer structs between calls and is not safe for concurrent use.
type Decoder struct {
	enrich Enqueuer
	clock  func() time.Time

	eth     layers.Ethernet
	sll     layers.LinuxSLL
	dot1q   layers.Dot1Q
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	udp     layers.UDP
	icmp4   layers.ICMPv4
	arp     layers.ARP
	payload gopacket.Payload

	parsers map[layers.LinkType]*gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// New creates a decoder. enrich may be nil to disable enrichment; clock
// may be nil to use the wall clock.
func New(enrich Enqueuer, clock func() time.Time) *Decoder {
	if clock == nil {
		clock = time.Now
	}
	return &Decoder{
		enrich:  enrich,
		clock:   clock,
		parsers: make(map[layers.LinkType]*gopacket.DecodingLayerParser),
		decoded: make([]gopacket.LayerType, 0, 8),
	}
}

func (d *Decoder) parserFor(lt layers.LinkType) *gopacket.DecodingLayerParser {
	if p, ok := d.parsers[lt]; ok {
		return p
	}

	var first gopacket.LayerType
	switch lt {
	case layers.LinkTypeEthernet:
		first = layers.LayerTypeEthernet
	case layers.LinkTypeLinuxSLL:
		first = layers.LayerTypeLinuxSLL
	case layers.LinkTypeRaw, layers.LinkTypeIPv4:
		first = layers.LayerTypeIPv4
	case layers.LinkTypeIPv6:
		first = layers.LayerTypeIPv6
	default:
		d.parsers[lt] = nil
		return nil
	}

	p := gopacket.NewDecodingLayerParser(first,
		&d.eth, &d.sll, &d.dot1q,
		&d.ip4, &d.ip6,
		&d.tcp, &d.udp, &d.icmp4, &d.arp,
		&d.payload,
	)
	p.IgnoreUnsupported = true
	d.parsers[lt] = p
	return p
}

// Decode returns the record for frame, or nil when the frame is not a
// recognized protocol. TCP, UDP and ICMP records are queued for DNS
// enrichment; ARP records are not.
func (d *Decoder) Decode(frame capture.Frame) *core.Packet {
	parser := d.parserFor(frame.LinkType)
	if parser == nil {
		metrics.DiscardedFramesTotal.Inc()
		return nil
	}

	d.decoded = d.decoded[:0]
	if err := parser.DecodeLayers(frame.Data, &d.decoded); err != nil {
		metrics.DiscardedFramesTotal.Inc()
		return nil
	}

	var link, net4, net6, tcp, udp, icmp, arp bool
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeEthernet, layers.LayerTypeLinuxSLL:
			link = true
		case layers.LayerTypeIPv4:
			net4, net6 = true, false
		case layers.LayerTypeIPv6:
			net4, net6 = false, true
		case layers.LayerTypeTCP:
			tcp = true
		case layers.LayerTypeUDP:
			udp = true
		case layers.LayerTypeICMPv4:
			icmp = true
		case layers.LayerTypeARP:
			arp = true
		}
	}
	hasIP := net4 || net6

	var p *core.Packet
	switch {
	case tcp && hasIP:
		p = core.NewPacket(core.ProtocolTCP, d.clock())
		d.fillIP(p, net4)
		p.SrcPort, p.DstPort = uint16(d.tcp.SrcPort), uint16(d.tcp.DstPort)
		p.Payload = clone(d.tcp.Payload)
	case udp && hasIP:
		p = core.NewPacket(core.ProtocolUDP, d.clock())
		d.fillIP(p, net4)
		p.SrcPort, p.DstPort = uint16(d.udp.SrcPort), uint16(d.udp.DstPort)
		p.Payload = clone(d.udp.Payload)
	case icmp && net4:
		p = core.NewPacket(core.ProtocolICMP, d.clock())
		d.fillIP(p, true)
		p.ICMPType = d.icmp4.TypeCode.String()
		p.Payload = clone(d.icmp4.Payload)
	case arp:
		p = core.NewPacket(core.ProtocolARP, d.clock())
		p.SrcMAC = net.HardwareAddr(d.arp.SourceHwAddress).String()
		p.DstMAC = net.HardwareAddr(d.arp.DstHwAddress).String()
		p.Payload = clone(d.linkPayload(frame.LinkType))
		metrics.DecodedPacketsTotal.WithLabelValues(p.Protocol().String()).Inc()
		return p
	default:
		metrics.DiscardedFramesTotal.Inc()
		return nil
	}

	if link {
		d.fillLink(p, frame.LinkType)
	}
	metrics.DecodedPacketsTotal.WithLabelValues(p.Protocol().String()).Inc()
	if d.enrich != nil {
		d.enrich.Enqueue(p)
	}
	return p
}

func (d *Decoder) fillIP(p *core.Packet, v4 bool) {
	if v4 {
		p.SrcIP, p.DstIP = d.ip4.SrcIP.String(), d.ip4.DstIP.String()
		return
	}
	p.SrcIP, p.DstIP = d.ip6.SrcIP.String(), d.ip6.DstIP.String()
}

// fillLink records link-layer addresses as secondary identity.
func (d *Decoder) fillLink(p *core.Packet, lt layers.LinkType) {
	switch lt {
	case layers.LinkTypeEthernet:
		p.SrcMAC, p.DstMAC = d.eth.SrcMAC.String(), d.eth.DstMAC.String()
	case layers.LinkTypeLinuxSLL:
		if d.sll.AddrLen > 0 && int(d.sll.AddrLen) <= len(d.sll.Addr) {
			p.SrcMAC = d.sll.Addr[:d.sll.AddrLen].String()
		}
	}
}

func (d *Decoder) linkPayload(lt layers.LinkType) []byte {
	if lt == layers.LinkTypeLinuxSLL {
		return d.sll.Payload
	}
	if d.eth.EthernetType == layers.EthernetTypeDot1Q {
		return d.dot1q.Payload
	}
	return d.eth.Payload
}

// clone copies b; capture sources reuse their buffers.
func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
