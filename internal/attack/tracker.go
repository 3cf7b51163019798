// Package attack deduplicates detections by signature.
package attack

import (
	"sync"

	"firestige.xyz/wiresentry/internal/core"
)

// Outcome is what a merge did to the tracked set.
type Outcome int

const (
	// Unchanged means the signature was known and no packet was new.
	Unchanged Outcome = iota
	// Created means the signature was seen for the first time.
	Created
	// Updated means new packets were merged into a known attack.
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

// Tracker holds every attack seen since startup, keyed by signature.
// Entries are never removed.
//
// Merge is called from the scheduler goroutine only; the lock exists so
// the control plane can list attacks concurrently.
type Tracker struct {
	mu      sync.RWMutex
	attacks map[string]*core.Attack
	order   []string
}

func NewTracker() *Tracker {
	return &Tracker{attacks: make(map[string]*core.Attack)}
}

// Merge folds a into the tracked set and returns the tracked attack.
// On Created the returned value is a itself.
func (t *Tracker) Merge(a *core.Attack) (*core.Attack, Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sig := a.Signature()
	existing, ok := t.attacks[sig]
	if !ok {
		t.attacks[sig] = a
		t.order = append(t.order, sig)
		return a, Created
	}

	if existing.Merge(a.Packets) == 0 {
		return existing, Unchanged
	}
	return existing, Updated
}

// Get returns the attack with the given signature.
func (t *Tracker) Get(signature string) (*core.Attack, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.attacks[signature]
	return a, ok
}

// List returns a summary of every tracked attack in first-seen order.
func (t *Tracker) List() []core.AttackView {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]core.AttackView, 0, len(t.order))
	for _, sig := range t.order {
		out = append(out, t.attacks[sig].View())
	}
	return out
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
