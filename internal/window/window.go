// Package window holds the bounded history of recently decoded packets.
package window

import (
	"sync"

	"firestige.xyz/wiresentry/internal/core"
	"firestige.xyz/wiresentry/internal/metrics"
)

// DefaultCapacity is the number of packets kept when no capacity is configured.
const DefaultCapacity = 65535

// Window is a fixed-capacity FIFO of packets. One goroutine appends while
// any number take snapshots. Once full, every append evicts exactly the
// oldest packet.
//
// sync.RWMutex blocks new readers while a writer is waiting, so a steady
// stream of snapshots cannot starve the capture path.
type Window struct {
	mu   sync.RWMutex
	buf  []*core.Packet
	head int // index of the oldest packet
	size int
}

// New creates a window. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]*core.Packet, capacity)}
}

// Append adds p as the newest packet, evicting the oldest when full.
func (w *Window) Append(p *core.Packet) {
	w.mu.Lock()
	if w.size < len(w.buf) {
		w.buf[(w.head+w.size)%len(w.buf)] = p
		w.size++
	} else {
		w.buf[w.head] = p
		w.head = (w.head + 1) % len(w.buf)
	}
	size := w.size
	w.mu.Unlock()

	metrics.WindowSize.Set(float64(size))
}

// Snapshot returns the current contents, oldest first, in a new slice.
func (w *Window) Snapshot() []*core.Packet {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]*core.Packet, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}

// Range calls fn for each packet, oldest first, under the read lock.
// fn must not call back into the window. Returning false stops the walk.
func (w *Window) Range(fn func(*core.Packet) bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for i := 0; i < w.size; i++ {
		if !fn(w.buf[(w.head+i)%len(w.buf)]) {
			return
		}
	}
}

// Count returns the number of packets held.
func (w *Window) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Capacity returns the maximum number of packets held.
func (w *Window) Capacity() int {
	return len(w.buf)
}
