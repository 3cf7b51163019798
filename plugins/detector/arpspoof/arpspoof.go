// Package arpspoof detects ARP cache poisoning by counting repeated
// sender/target ARP pairs.
package arpspoof

import (
	"fmt"
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	// ID is the stable detector identifier.
	ID = "930b4de2-8424-4209-956d-d64d176e1000"
	// AttackType is reported on every result.
	AttackType = "ARP Spoof"

	defaultThreshold = 20
	defaultLookback  = 90 * time.Second
	defaultFrequency = 5
)

// Config holds the tunable thresholds.
type Config struct {
	Threshold int           `mapstructure:"threshold"` // in-horizon packets per pair, inclusive
	Lookback  time.Duration `mapstructure:"lookback"`
	Frequency int           `mapstructure:"frequency"` // seconds
}

// Detector flags a sender/target hardware-address pair once it has sent at
// least Threshold ARP packets inside the look-back horizon.
type Detector struct {
	config Config
}

// New creates a detector with default thresholds.
func New() plugin.Detector {
	return &Detector{config: Config{
		Threshold: defaultThreshold,
		Lookback:  defaultLookback,
		Frequency: defaultFrequency,
	}}
}

func (d *Detector) ID() string { return ID }

func (d *Detector) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Arp Spoof Scanner", Author: "Michael Landi", Version: "1.00.00.38"}
}

func (d *Detector) Frequency() int { return d.config.Frequency }

// Init applies manifest options.
func (d *Detector) Init(options map[string]any) error {
	cfg := d.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if cfg.Threshold < 1 {
		return fmt.Errorf("arpspoof: threshold must be at least 1, got %d", cfg.Threshold)
	}
	if cfg.Lookback <= 0 {
		return fmt.Errorf("arpspoof: lookback must be positive, got %s", cfg.Lookback)
	}
	if cfg.Frequency < 1 {
		return fmt.Errorf("arpspoof: frequency must be at least 1, got %d", cfg.Frequency)
	}
	d.config = cfg
	return nil
}

// Scan groups ARP packets by sender then target hardware address. The
// threshold counts only in-horizon packets, but the reported evidence is the
// whole pair group.
func (d *Detector) Scan(now time.Time, window []*core.Packet) []*core.Attack {
	inHorizon := plugin.Since(now.Add(-d.config.Lookback))
	arp := plugin.Filter(window, func(p *core.Packet) bool {
		return p.Protocol() == core.ProtocolARP
	})

	var results []*core.Attack
	for _, bySender := range plugin.GroupBy(arp, func(p *core.Packet) string { return p.SrcMAC }) {
		for _, pair := range plugin.GroupBy(bySender.Packets, func(p *core.Packet) string { return p.DstMAC }) {
			if len(plugin.Filter(pair.Packets, inHorizon)) < d.config.Threshold {
				continue
			}
			first := pair.Packets[0]
			results = append(results, core.NewAttack(
				plugin.Describe(d), first.SrcMAC, first.DstMAC, AttackType, pair.Packets))
		}
	}
	return results
}
