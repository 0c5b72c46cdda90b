// Package display carries volume readouts from the control loop to the UI.
//
// The bridge is a single-slot mailbox: the loop publishes without blocking,
// a newer snapshot overwrites an unconsumed one, and the UI drains only the
// newest.
package display

import (
	"fmt"
	"sync"

	"github.com/ayusman/pinchvol/internal/gesture"
)

// Snapshot is what a surface needs to render the current volume.
type Snapshot struct {
	Percentage int    `json:"percentage"`
	Mute       bool   `json:"mute"`
	Seq        uint64 `json:"seq"`
}

// FromCommand builds the snapshot for cmd, applied as sequence number seq.
func FromCommand(cmd gesture.Command, seq uint64) Snapshot {
	pct := cmd.Percentage()
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	return Snapshot{Percentage: pct, Mute: cmd.Mute, Seq: seq}
}

// Label is the text shown next to the volume bar.
func (s Snapshot) Label() string {
	if s.Mute {
		return "Volume: Muted"
	}
	return fmt.Sprintf("Volume: %d%%", s.Percentage)
}

// Stats are bridge counters.
type Stats struct {
	Published uint64 `json:"published"`
	Dropped   uint64 `json:"dropped"`
	Drained   uint64 `json:"drained"`
}

// Bridge delivers snapshots from one publisher to one draining surface.
// Other surfaces may observe the newest value through Latest.
type Bridge struct {
	mu      sync.Mutex
	pending *Snapshot
	latest  *Snapshot
	stats   Stats
	ready   chan struct{}
}

// NewBridge creates an empty Bridge.
func NewBridge() *Bridge {
	return &Bridge{ready: make(chan struct{}, 1)}
}

// Publish stores s, replacing any snapshot not yet drained. It never blocks.
func (b *Bridge) Publish(s Snapshot) {
	b.mu.Lock()
	if b.pending != nil {
		b.stats.Dropped++
	}
	b.pending = &s
	b.latest = &s
	b.stats.Published++
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Ready is signalled after Publish. A receive means Drain is likely to
// return a snapshot; it may also have been consumed already.
func (b *Bridge) Ready() <-chan struct{} {
	return b.ready
}

// Drain takes the newest pending snapshot. It returns false when nothing was
// published since the previous Drain.
func (b *Bridge) Drain() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		return Snapshot{}, false
	}
	s := *b.pending
	b.pending = nil
	b.stats.Drained++
	return s, true
}

// Latest returns the most recently published snapshot without consuming it.
func (b *Bridge) Latest() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.latest == nil {
		return Snapshot{}, false
	}
	return *b.latest, true
}

// Stats returns a copy of the counters.
func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
