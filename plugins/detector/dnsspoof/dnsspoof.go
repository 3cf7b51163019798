// Package dnsspoof groups DNS responses per responder. It schedules and
// scans like any detector but does not report attacks yet.
package dnsspoof

import (
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	// ID is the stable detector identifier.
	ID = "a30b4de2-84e4-4209-956f-d64376e1011"
	// AttackType is reserved for future results.
	AttackType = "DNS Spoof"

	dnsPort          = 53
	defaultLookback  = 90 * time.Second
	defaultFrequency = 5
)

type Detector struct {
	lookback  time.Duration
	frequency int
}

func New() plugin.Detector {
	return &Detector{lookback: defaultLookback, frequency: defaultFrequency}
}

func (d *Detector) ID() string { return ID }

func (d *Detector) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "DNS Spoof Scanner", Author: "Michael Landi", Version: "1.00.00.00"}
}

func (d *Detector) Frequency() int { return d.frequency }

// Scan collects in-horizon UDP packets from port 53 by responder hardware
// address.
// TODO: compare answers per query ID across responders and report conflicting ones.
func (d *Detector) Scan(now time.Time, window []*core.Packet) []*core.Attack {
	inHorizon := plugin.Since(now.Add(-d.lookback))
	responses := plugin.Filter(window, func(p *core.Packet) bool {
		return p.Protocol() == core.ProtocolUDP && p.SrcPort == dnsPort && inHorizon(p)
	})
	_ = plugin.GroupBy(responses, func(p *core.Packet) string { return p.SrcMAC })
	return nil
}
