package arpspoof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/wiresentry/internal/core"
)

const (
	attacker = "de:ad:be:ef:00:01"
	victim   = "00:11:22:33:44:55"
)

func arpPackets(n int, sender, target string, ts time.Time) []*core.Packet {
	out := make([]*core.Packet, n)
	for i := range out {
		p := core.NewPacket(core.ProtocolARP, ts)
		p.SrcMAC = sender
		p.DstMAC = target
		out[i] = p
	}
	return out
}

func TestScanThreshold(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		count int
		want  int
	}{
		{"below threshold", 19, 0},
		{"at threshold", 20, 1},
		{"above threshold", 50, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			got := d.Scan(now, arpPackets(tt.count, attacker, victim, now.Add(-10*time.Second)))
			require.Len(t, got, tt.want)
			if tt.want == 1 {
				assert.Equal(t, attacker, got[0].Attacker)
				assert.Equal(t, victim, got[0].Victim)
				assert.Equal(t, AttackType, got[0].Type)
				assert.Equal(t, ID, got[0].Detector.ID)
				assert.Len(t, got[0].Packets, tt.count)
			}
		})
	}
}

func TestScanIgnoresOldPacketsForThreshold(t *testing.T) {
	now := time.Now()
	d := New()

	old := arpPackets(30, attacker, victim, now.Add(-2*time.Minute))
	recent := arpPackets(19, attacker, victim, now.Add(-time.Second))
	assert.Empty(t, d.Scan(now, append(old, recent...)))

	// The evidence includes the out-of-horizon packets once the threshold trips.
	recent = append(recent, arpPackets(1, attacker, victim, now)...)
	got := d.Scan(now, append(old, recent...))
	require.Len(t, got, 1)
	assert.Len(t, got[0].Packets, 50)
}

func TestScanHorizonIsInclusive(t *testing.T) {
	now := time.Now()
	d := New()
	got := d.Scan(now, arpPackets(20, attacker, victim, now.Add(-90*time.Second)))
	assert.Len(t, got, 1)
}

func TestScanGroupsByPair(t *testing.T) {
	now := time.Now()
	d := New()

	var window []*core.Packet
	window = append(window, arpPackets(20, attacker, victim, now)...)
	window = append(window, arpPackets(10, attacker, "00:00:00:00:00:02", now)...)
	window = append(window, arpPackets(25, "aa:aa:aa:aa:aa:aa", "00:00:00:00:00:02", now)...)

	tcp := core.NewPacket(core.ProtocolTCP, now)
	tcp.SrcMAC = attacker
	tcp.DstMAC = victim
	window = append(window, tcp)

	got := d.Scan(now, window)
	require.Len(t, got, 2)
	assert.Equal(t, attacker, got[0].Attacker)
	assert.Equal(t, victim, got[0].Victim)
	assert.Len(t, got[0].Packets, 20, "non-ARP packets never count")
	assert.Equal(t, "aa:aa:aa:aa:aa:aa", got[1].Attacker)
}

func TestScanEmptyWindow(t *testing.T) {
	assert.Empty(t, New().Scan(time.Now(), nil))
}

func TestInitOptions(t *testing.T) {
	d := New().(*Detector)
	require.NoError(t, d.Init(map[string]any{"threshold": 3, "lookback": "10s", "frequency": 2}))
	assert.Equal(t, 2, d.Frequency())

	now := time.Now()
	assert.Len(t, d.Scan(now, arpPackets(3, attacker, victim, now.Add(-5*time.Second))), 1)
	assert.Empty(t, d.Scan(now, arpPackets(3, attacker, victim, now.Add(-15*time.Second))))
}

func TestInitRejectsBadOptions(t *testing.T) {
	assert.Error(t, New().(*Detector).Init(map[string]any{"threshold": 0}))
	assert.Error(t, New().(*Detector).Init(map[string]any{"frequency": 0}))
	assert.Error(t, New().(*Detector).Init(map[string]any{"unknown": 1}))
}

func TestMetadata(t *testing.T) {
	d := New()
	assert.Equal(t, ID, d.ID())
	assert.Equal(t, 5, d.Frequency())
	assert.Equal(t, "Arp Spoof Scanner", d.Metadata().Name)
}
