// Package portscan detects sequential TCP port sweeps between two hosts.
package portscan

import (
	"fmt"
	"slices"
	"time"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/pkg/plugin"
)

const (
	// ID is the stable detector identifier.
	ID = "7fbaa4ca-be2c-4234-9ecc-e4b63c7d1d70"
	// AttackType is reported on every result.
	AttackType = "Port Scan"

	defaultMinSequence = 30
	defaultLookback    = 90 * time.Second
	defaultFrequency   = 5
)

// Config holds the tunable thresholds.
type Config struct {
	MinSequence int           `mapstructure:"min_sequence"` // report when LIS exceeds this
	Lookback    time.Duration `mapstructure:"lookback"`
	Frequency   int           `mapstructure:"frequency"`
}

// Detector reports a source/destination IP pair whose in-horizon TCP
// destination ports contain an increasing run longer than MinSequence.
type Detector struct {
	config Config
}

// New creates a detector with default thresholds.
func New() plugin.Detector {
	return &Detector{config: Config{
		MinSequence: defaultMinSequence,
		Lookback:    defaultLookback,
		Frequency:   defaultFrequency,
	}}
}

func (d *Detector) ID() string { return ID }

func (d *Detector) Metadata() plugin.Metadata {
	return plugin.Metadata{Name: "Port Scan Scanner", Author: "Michael Landi", Version: "0.0.9"}
}

func (d *Detector) Frequency() int { return d.config.Frequency }

// Init applies manifest options.
func (d *Detector) Init(options map[string]any) error {
	cfg := d.config
	if err := plugin.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	if cfg.MinSequence < 0 {
		return fmt.Errorf("portscan: min_sequence must not be negative, got %d", cfg.MinSequence)
	}
	if cfg.Lookback <= 0 {
		return fmt.Errorf("portscan: lookback must be positive, got %s", cfg.Lookback)
	}
	if cfg.Frequency < 1 {
		return fmt.Errorf("portscan: frequency must be at least 1, got %d", cfg.Frequency)
	}
	d.config = cfg
	return nil
}

// Scan groups in-horizon TCP packets by source then destination IP and
// orders each group by destination port. Attacker and victim are the
// hardware addresses of the lowest-port packet.
func (d *Detector) Scan(now time.Time, window []*core.Packet) []*core.Attack {
	inHorizon := plugin.Since(now.Add(-d.config.Lookback))
	tcp := plugin.Filter(window, func(p *core.Packet) bool {
		return p.Protocol() == core.ProtocolTCP && inHorizon(p)
	})

	var results []*core.Attack
	for _, bySource := range plugin.GroupBy(tcp, func(p *core.Packet) string { return p.SrcIP }) {
		for _, pair := range plugin.GroupBy(bySource.Packets, func(p *core.Packet) string { return p.DstIP }) {
			ordered := slices.Clone(pair.Packets)
			slices.SortStableFunc(ordered, func(a, b *core.Packet) int {
				return int(a.DstPort) - int(b.DstPort)
			})

			ports := make([]int, len(ordered))
			for i, p := range ordered {
				ports[i] = int(p.DstPort)
			}
			if LIS(ports) <= d.config.MinSequence {
				continue
			}

			first := ordered[0]
			results = append(results, core.NewAttack(
				plugin.Describe(d), first.SrcMAC, first.DstMAC, AttackType, ordered))
		}
	}
	return results
}

// LIS returns the length of the longest strictly increasing subsequence.
// Empty input yields 0; any non-empty input yields at least 1.
func LIS(seq []int) int {
	if len(seq) == 0 {
		return 0
	}
	best := 1
	l := make([]int, len(seq))
	for i := range seq {
		l[i] = 1
		for j := 0; j < i; j++ {
			if seq[j] < seq[i] && l[j]+1 > l[i] {
				l[i] = l[j] + 1
			}
		}
		best = max(best, l[i])
	}
	return best
}
