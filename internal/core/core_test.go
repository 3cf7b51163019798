package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolString(t *testing.T) {
	tests := []struct {
		proto Protocol
		want  string
	}{
		{ProtocolTCP, "tcp"},
		{ProtocolUDP, "udp"},
		{ProtocolARP, "arp"},
		{ProtocolICMP, "icmp"},
		{ProtocolUnknown, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.proto.String())
			assert.Equal(t, tt.proto, ParseProtocol(tt.want))
		})
	}
}

func TestPacketDomains(t *testing.T) {
	p := NewPacket(ProtocolTCP, time.Now())

	_, ok := p.SrcDomain()
	assert.False(t, ok)
	_, ok = p.DstDomain()
	assert.False(t, ok)

	p.SetSrcDomain("a.example")
	p.SetDstDomain("b.example")

	name, ok := p.SrcDomain()
	assert.True(t, ok)
	assert.Equal(t, "a.example", name)

	v := p.View()
	assert.Equal(t, "a.example", v.SrcDomain)
	assert.Equal(t, "b.example", v.DstDomain)
	assert.Equal(t, "tcp", v.Protocol)
}

func TestPacketLogged(t *testing.T) {
	p := NewPacket(ProtocolARP, time.Now())
	assert.False(t, p.Logged())
	p.MarkLogged()
	assert.True(t, p.Logged())
}

func TestSignature(t *testing.T) {
	det := DetectorInfo{ID: "det-1", Name: "test"}

	a := NewAttack(det, "aa:aa", "bb:bb", "ARP Spoof", nil)
	b := NewAttack(det, "aa:aa", "bb:bb", "ARP Spoof", []*Packet{NewPacket(ProtocolARP, time.Now())})

	assert.Equal(t, a.Signature(), b.Signature(), "packets must not affect the signature")
	assert.Len(t, a.Signature(), 32)
	assert.Regexp(t, "^[0-9A-F]{32}$", a.Signature())

	c := NewAttack(det, "aa:aa", "cc:cc", "ARP Spoof", nil)
	assert.NotEqual(t, a.Signature(), c.Signature())

	// md5("") is well known; check the concatenation rule against it.
	assert.Equal(t, "D41D8CD98F00B204E9800998ECF8427E", Signature("", "", "", ""))
}

func TestAttackMerge(t *testing.T) {
	now := time.Now()
	p1 := NewPacket(ProtocolTCP, now)
	p2 := NewPacket(ProtocolTCP, now.Add(time.Second))
	p3 := NewPacket(ProtocolTCP, now.Add(2*time.Second))

	a := NewAttack(DetectorInfo{ID: "d"}, "x", "y", "Port Scan", []*Packet{p1, p2})

	assert.Equal(t, 0, a.Merge([]*Packet{p2, p1}))
	assert.Len(t, a.Packets, 2)

	assert.Equal(t, 1, a.Merge([]*Packet{p1, p3, p3}))
	require.Len(t, a.Packets, 3)
	assert.Same(t, p3, a.Packets[2])

	assert.Equal(t, now, a.FirstSeen())
	assert.Equal(t, now.Add(2*time.Second), a.LastSeen())
}

func TestAttackView(t *testing.T) {
	a := NewAttack(DetectorInfo{ID: "d", Name: "Port Scan Detector"}, "x", "y", "Port Scan", nil)
	v := a.View()
	assert.Equal(t, a.Signature(), v.Signature)
	assert.Equal(t, 0, v.Packets)
	assert.True(t, v.FirstSeen.IsZero())
	assert.Contains(t, a.String(), "Port Scan x -> y")
}

func TestSentinelErrorsWrap(t *testing.T) {
	err := fmt.Errorf("register %q: %w", "abc", ErrModuleExists)
	assert.True(t, errors.Is(err, ErrModuleExists))
	assert.False(t, errors.Is(err, ErrModuleNotFound))
}
