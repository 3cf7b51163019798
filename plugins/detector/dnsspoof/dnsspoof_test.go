package dnsspoof

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"firestige.xyz/wiresentry/internal/core"
)

func TestScanNeverReports(t *testing.T) {
	now := time.Now()
	var window []*core.Packet
	for i := 0; i < 500; i++ {
		p := core.NewPacket(core.ProtocolUDP, now)
		p.SrcPort = 53
		p.SrcMAC = "aa:bb:cc:dd:ee:ff"
		window = append(window, p)
	}

	d := New()
	assert.Empty(t, d.Scan(now, window))
	assert.Empty(t, d.Scan(now, nil))
}

func TestMetadata(t *testing.T) {
	d := New()
	assert.Equal(t, ID, d.ID())
	assert.Equal(t, 5, d.Frequency())
	assert.Equal(t, "DNS Spoof Scanner", d.Metadata().Name)
}
