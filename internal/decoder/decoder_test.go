package decoder

import (
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/capture"
	"firestige.xyz/wiresentry/internal/capture/capturetest"
	"firestige.xyz/wiresentry/internal/core"
)

const (
	macA = "aa:aa:aa:aa:aa:01"
	macB = "bb:bb:bb:bb:bb:02"
)

type recorder struct{ got []*core.Packet }

func (r *recorder) Enqueue(p *core.Packet) { r.got = append(r.got, p) }

var fixed = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestDecoder() (*Decoder, *recorder) {
	r := &recorder{}
	return New(r, func() time.Time { return fixed }), r
}

func TestDecodeTCP(t *testing.T) {
	d, r := newTestDecoder()
	frame := capturetest.Frame(capturetest.TCP(macA, macB, "10.0.0.1", "10.0.0.2", 40000, 443, []byte("hello")))

	p := d.Decode(frame)
	require.NotNil(t, p)
	assert.Equal(t, core.ProtocolTCP, p.Protocol())
	assert.Equal(t, "10.0.0.1", p.SrcIP)
	assert.Equal(t, "10.0.0.2", p.DstIP)
	assert.Equal(t, uint16(40000), p.SrcPort)
	assert.Equal(t, uint16(443), p.DstPort)
	assert.Equal(t, macA, p.SrcMAC)
	assert.Equal(t, macB, p.DstMAC)
	assert.Equal(t, []byte("hello"), p.Payload)
	assert.Equal(t, fixed, p.Timestamp)

	require.Len(t, r.got, 1)
	assert.Same(t, p, r.got[0])
}

func TestDecodePayloadIsCopied(t *testing.T) {
	d, _ := newTestDecoder()
	data := capturetest.UDP(macA, macB, "10.0.0.1", "10.0.0.2", 5353, 53, []byte("abc"))

	p := d.Decode(capturetest.Frame(data))
	require.NotNil(t, p)
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, []byte("abc"), p.Payload)
}

func TestDecodeUDPv6(t *testing.T) {
	d, r := newTestDecoder()
	p := d.Decode(capturetest.Frame(capturetest.UDP(macA, macB, "fe80::1", "fe80::2", 546, 547, []byte{1})))
	require.NotNil(t, p)
	assert.Equal(t, core.ProtocolUDP, p.Protocol())
	assert.Equal(t, "fe80::1", p.SrcIP)
	assert.Equal(t, "fe80::2", p.DstIP)
	assert.Equal(t, uint16(547), p.DstPort)
	assert.Len(t, r.got, 1)
}

func TestDecodeICMP(t *testing.T) {
	d, r := newTestDecoder()
	p := d.Decode(capturetest.Frame(capturetest.ICMPEcho(macA, macB, "10.0.0.1", "10.0.0.2", []byte("ping"))))
	require.NotNil(t, p)
	assert.Equal(t, core.ProtocolICMP, p.Protocol())
	assert.Equal(t, layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0).String(), p.ICMPType)
	assert.Equal(t, []byte("ping"), p.Payload)
	assert.Zero(t, p.SrcPort)
	assert.Len(t, r.got, 1)
}

func TestDecodeARPIsNotEnqueued(t *testing.T) {
	d, r := newTestDecoder()
	p := d.Decode(capturetest.Frame(capturetest.ARPReply(macA, macB, "10.0.0.1", "10.0.0.2")))
	require.NotNil(t, p)
	assert.Equal(t, core.ProtocolARP, p.Protocol())
	assert.Equal(t, macA, p.SrcMAC)
	assert.Equal(t, macB, p.DstMAC)
	assert.Empty(t, p.SrcIP)
	assert.NotEmpty(t, p.Payload)
	assert.Empty(t, r.got)
}

func TestDecodeDiscards(t *testing.T) {
	d, r := newTestDecoder()

	tests := []struct {
		name  string
		frame capture.Frame
	}{
		{"garbage", capturetest.Frame([]byte{0x01, 0x02, 0x03})},
		{"empty", capturetest.Frame(nil)},
		{"unknown link type", capture.Frame{LinkType: layers.LinkTypeIEEE802_11, Data: []byte{0, 0, 0, 0}}},
		{"lldp", capturetest.Frame(lldpFrame(t))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, d.Decode(tt.frame))
		})
	}
	assert.Empty(t, r.got)
}

func TestDecodeWithoutEnricher(t *testing.T) {
	d := New(nil, nil)
	p := d.Decode(capturetest.Frame(capturetest.TCP(macA, macB, "10.0.0.1", "10.0.0.2", 1, 2, nil)))
	require.NotNil(t, p)
	assert.WithinDuration(t, time.Now(), p.Timestamp, time.Minute)
}

func TestDecodeReusesStateSafely(t *testing.T) {
	d, _ := newTestDecoder()
	first := d.Decode(capturetest.Frame(capturetest.TCP(macA, macB, "10.0.0.1", "10.0.0.2", 1000, 80, nil)))
	second := d.Decode(capturetest.Frame(capturetest.TCP(macB, macA, "10.0.0.2", "10.0.0.1", 80, 1000, nil)))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, "10.0.0.1", first.SrcIP)
	assert.Equal(t, "10.0.0.2", second.SrcIP)
	assert.NotEqual(t, first.ID, second.ID)
}

func lldpFrame(t *testing.T) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	eth := &layers.Ethernet{
		SrcMAC:       []byte{0xaa, 0, 0, 0, 0, 1},
		DstMAC:       []byte{0x01, 0x80, 0xc2, 0, 0, 0x0e},
		EthernetType: layers.EthernetTypeLinkLayerDiscovery,
	}
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(make([]byte, 46))))
	return buf.Bytes()
}
