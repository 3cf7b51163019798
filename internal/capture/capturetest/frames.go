// Package capturetest builds synthetic Ethernet frames and pcap files.
package capturetest

import (
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/wiresentry/internal/capture"
)

func mustMAC(s string) net.HardwareAddr {
	mac, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return mac
}

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ipLayers returns the Ethernet and network layers for an IPv4 or IPv6
// pair, depending on the address family of srcIP.
func ipLayers(srcMAC, dstMAC, srcIP, dstIP string, proto layers.IPProtocol) (*layers.Ethernet, gopacket.NetworkLayer) {
	src, dst := net.ParseIP(srcIP), net.ParseIP(dstIP)
	eth := &layers.Ethernet{SrcMAC: mustMAC(srcMAC), DstMAC: mustMAC(dstMAC)}

	if src.To4() != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		return eth, &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: proto,
			SrcIP:    src.To4(),
			DstIP:    dst.To4(),
		}
	}
	eth.EthernetType = layers.EthernetTypeIPv6
	return eth, &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: proto,
		SrcIP:      src,
		DstIP:      dst,
	}
}

// TCP builds an Ethernet/IP/TCP SYN frame.
func TCP(srcMAC, dstMAC, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) []byte {
	eth, ip := ipLayers(srcMAC, dstMAC, srcIP, dstIP, layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: layers.TCPPort(srcPort), DstPort: layers.TCPPort(dstPort), SYN: true, Window: 1024}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(eth, ip.(gopacket.SerializableLayer), tcp, gopacket.Payload(payload))
}

// UDP builds an Ethernet/IP/UDP frame.
func UDP(srcMAC, dstMAC, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) []byte {
	eth, ip := ipLayers(srcMAC, dstMAC, srcIP, dstIP, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(eth, ip.(gopacket.SerializableLayer), udp, gopacket.Payload(payload))
}

// ICMPEcho builds an Ethernet/IPv4/ICMP echo request frame.
func ICMPEcho(srcMAC, dstMAC, srcIP, dstIP string, payload []byte) []byte {
	eth, ip := ipLayers(srcMAC, dstMAC, srcIP, dstIP, layers.IPProtocolICMPv4)
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0), Id: 1, Seq: 1}
	return serialize(eth, ip.(gopacket.SerializableLayer), icmp, gopacket.Payload(payload))
}

// ARPReply builds an Ethernet/ARP reply claiming senderIP is at senderMAC.
func ARPReply(senderMAC, targetMAC, senderIP, targetIP string) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       mustMAC(senderMAC),
		DstMAC:       mustMAC(targetMAC),
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   mustMAC(senderMAC),
		SourceProtAddress: net.ParseIP(senderIP).To4(),
		DstHwAddress:      mustMAC(targetMAC),
		DstProtAddress:    net.ParseIP(targetIP).To4(),
	}
	return serialize(eth, arp)
}

// Frame wraps Ethernet bytes as a captured frame.
func Frame(data []byte) capture.Frame {
	return capture.Frame{
		LinkType: layers.LinkTypeEthernet,
		Data:     data,
		CaptureInfo: gopacket.CaptureInfo{
			Timestamp:     time.Now(),
			CaptureLength: len(data),
			Length:        len(data),
		},
	}
}

// WritePcap writes Ethernet frames to a new pcap file at path.
func WritePcap(path string, frames ...[]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		return err
	}
	ts := time.Now()
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			return err
		}
	}
	return nil
}
