package client

import (
	"time"

	"netrush/internal/grid"
	"netrush/internal/wire"
)

// appliedIDRingSize bounds the reassembler's duplicate-rejection set
// (§4.6: "a ring of the last 256 ids suffices").
const appliedIDRingSize = 256

// Reassembler is the client-side snapshot reassembler (§4.6). It owns the
// local grid replica and is driven exclusively by the client's receive
// task; callers observe it through ChangedAt and the grid it returns from
// Grid() without mutating it.
type Reassembler struct {
	grid         *grid.Grid
	hasFull      bool
	latestFullID uint32
	applied      *idRing
	changedAt    map[uint32]time.Time
	renderDelay  time.Duration
}

// NewReassembler creates a reassembler for an n x n grid.
func NewReassembler(n int32, renderDelay time.Duration) *Reassembler {
	return &Reassembler{
		grid:        grid.New(n),
		applied:     newIDRing(appliedIDRingSize),
		changedAt:   make(map[uint32]time.Time),
		renderDelay: renderDelay,
	}
}

// Grid returns the current local replica. Callers must not mutate it.
func (r *Reassembler) Grid() *grid.Grid { return r.grid }

// ChangedAt reports when (row, col) was last observed to change, for the
// renderer's 200 ms color-interpolation window (§4.6 "Rendering
// hand-off"). The zero Time means never observed.
func (r *Reassembler) ChangedAt(row, col int32) time.Time {
	return r.changedAt[r.grid.CellIndex(row, col)]
}

// RenderDelay is the configured playback delay: an external renderer MAY
// sample state as of now-RenderDelay to smooth over jitter. It never
// affects what Apply does to the replica itself.
func (r *Reassembler) RenderDelay() time.Duration { return r.renderDelay }

// Apply runs the §4.6 algorithm for one received SNAPSHOT. now stamps any
// cell actually changed, for the render hand-off.
func (r *Reassembler) Apply(rec wire.SnapshotRecord, snapshotID uint32, now time.Time) {
	if r.applied.has(snapshotID) {
		return // duplicate, drop
	}

	if rec.Full {
		r.grid.Replace(rec.Grid)
		r.latestFullID = snapshotID
		r.hasFull = true
		r.stampAll(rec.Grid, now)
		r.applied.add(snapshotID)

		for _, red := range rec.Redundant {
			if red.SnapshotID > snapshotID {
				r.applyChanges(red.Changes, now)
			}
		}
		return
	}

	if !r.hasFull || snapshotID > r.latestFullID {
		r.applyChanges(rec.Changes, now)
	}

	for _, red := range rec.Redundant {
		if !r.applied.has(red.SnapshotID) && red.SnapshotID > r.latestFullID {
			r.applyChanges(red.Changes, now)
			r.applied.add(red.SnapshotID)
		}
	}

	r.applied.add(snapshotID)
}

func (r *Reassembler) applyChanges(changes []wire.Change, now time.Time) {
	for _, ch := range changes {
		if !r.grid.InBounds(ch.Row, ch.Col) {
			continue
		}
		before := r.grid.Owner(ch.Row, ch.Col)
		r.grid.ApplyFirstClaimWins(ch)
		if r.grid.Owner(ch.Row, ch.Col) != before {
			r.changedAt[r.grid.CellIndex(ch.Row, ch.Col)] = now
		}
	}
}

func (r *Reassembler) stampAll(nonEmpty []wire.Change, now time.Time) {
	for _, ch := range nonEmpty {
		if r.grid.InBounds(ch.Row, ch.Col) {
			r.changedAt[r.grid.CellIndex(ch.Row, ch.Col)] = now
		}
	}
}
