package core

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DetectorInfo identifies the detector that produced an attack.
type DetectorInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Author  string `json:"author,omitempty"`
	Version string `json:"version,omitempty"`
}

// Attack is one detection: who attacked whom, how, and the evidence.
//
// Two attacks with the same signature are the same ongoing incident; the
// tracker merges their packet sets instead of reporting twice.
type Attack struct {
	Attacker string
	Victim   string
	Type     string
	Detector DetectorInfo
	Packets  []*Packet

	signature string
}

// NewAttack builds an attack and computes its signature.
func NewAttack(det DetectorInfo, attacker, victim, attackType string, packets []*Packet) *Attack {
	return &Attack{
		Attacker:  attacker,
		Victim:    victim,
		Type:      attackType,
		Detector:  det,
		Packets:   packets,
		signature: Signature(det.ID, attacker, victim, attackType),
	}
}

// Signature is the uppercase hex MD5 of detectorID+attacker+victim+attackType.
// The packet set never contributes.
func Signature(detectorID, attacker, victim, attackType string) string {
	sum := md5.Sum([]byte(detectorID + attacker + victim + attackType))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (a *Attack) Signature() string { return a.signature }

// Merge adds every packet not already present (by ID) and returns how many
// were added. Existing order is kept; new packets are appended in input order.
func (a *Attack) Merge(packets []*Packet) int {
	seen := make(map[uuid.UUID]struct{}, len(a.Packets))
	for _, p := range a.Packets {
		seen[p.ID] = struct{}{}
	}
	added := 0
	for _, p := range packets {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		a.Packets = append(a.Packets, p)
		added++
	}
	return added
}

// FirstSeen returns the earliest packet timestamp.
func (a *Attack) FirstSeen() time.Time {
	var t time.Time
	for _, p := range a.Packets {
		if t.IsZero() || p.Timestamp.Before(t) {
			t = p.Timestamp
		}
	}
	return t
}

// LastSeen returns the latest packet timestamp.
func (a *Attack) LastSeen() time.Time {
	var t time.Time
	for _, p := range a.Packets {
		if p.Timestamp.After(t) {
			t = p.Timestamp
		}
	}
	return t
}

func (a *Attack) String() string {
	return fmt.Sprintf("%s %s -> %s (%d packets, %s)", a.Type, a.Attacker, a.Victim, len(a.Packets), a.Detector.Name)
}

// AttackView is a serialisable summary of an attack.
type AttackView struct {
	Signature string       `json:"signature"`
	Type      string       `json:"type"`
	Attacker  string       `json:"attacker"`
	Victim    string       `json:"victim"`
	Detector  DetectorInfo `json:"detector"`
	Packets   int          `json:"packets"`
	FirstSeen time.Time    `json:"first_seen"`
	LastSeen  time.Time    `json:"last_seen"`
}

func (a *Attack) View() AttackView {
	return AttackView{
		Signature: a.signature,
		Type:      a.Type,
		Attacker:  a.Attacker,
		Victim:    a.Victim,
		Detector:  a.Detector,
		Packets:   len(a.Packets),
		FirstSeen: a.FirstSeen(),
		LastSeen:  a.LastSeen(),
	}
}
