package plugin

import (
	"time"

	"firestige.xyz/wiresentry/internal/core"
)

// Group is the packets sharing one key, in input order.
type Group struct {
	Key     string
	Packets []*core.Packet
}

// GroupBy partitions packets by key. Groups come out in order of the key's
// first appearance.
func GroupBy(packets []*core.Packet, key func(*core.Packet) string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, p := range packets {
		k := key(p)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Packets = append(groups[i].Packets, p)
	}
	return groups
}

// Filter returns the packets for which keep is true.
func Filter(packets []*core.Packet, keep func(*core.Packet) bool) []*core.Packet {
	var out []*core.Packet
	for _, p := range packets {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Since reports whether p was decoded at or after horizon.
func Since(horizon time.Time) func(*core.Packet) bool {
	return func(p *core.Packet) bool { return !p.Timestamp.Before(horizon) }
}
