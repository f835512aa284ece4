package client

import (
	"testing"
	"time"

	"netrush/internal/wire"
)

func TestReassemblerFullThenDelta(t *testing.T) {
	r := NewReassembler(5, 100*time.Millisecond)

	full := wire.SnapshotRecord{
		Full: true,
		Grid: []wire.Change{{Row: 1, Col: 1, Owner: 1}},
	}
	r.Apply(full, 0, time.Now())

	if owner := r.Grid().Owner(1, 1); owner != 1 {
		t.Fatalf("expected owner 1 after full snapshot, got %d", owner)
	}

	delta := wire.SnapshotRecord{
		Changes: []wire.Change{{Row: 2, Col: 2, Owner: 2}},
	}
	r.Apply(delta, 1, time.Now())

	if owner := r.Grid().Owner(2, 2); owner != 2 {
		t.Fatalf("expected owner 2 after delta, got %d", owner)
	}
	if owner := r.Grid().Owner(1, 1); owner != 1 {
		t.Fatalf("delta must not disturb cells untouched by it, got %d", owner)
	}
}

func TestReassemblerDuplicateDropped(t *testing.T) {
	r := NewReassembler(5, 100*time.Millisecond)
	r.Apply(wire.SnapshotRecord{Full: true}, 0, time.Now())
	r.Apply(wire.SnapshotRecord{Changes: []wire.Change{{Row: 0, Col: 0, Owner: 3}}}, 1, time.Now())

	// Replaying snapshot id 1 must not re-apply — but since first-claim-wins
	// is idempotent anyway, verify via the applied ring directly.
	if !r.applied.has(1) {
		t.Fatalf("expected snapshot 1 marked applied")
	}

	before := r.Grid().Owner(0, 0)
	r.Apply(wire.SnapshotRecord{Changes: []wire.Change{{Row: 0, Col: 0, Owner: 9}}}, 1, time.Now())
	if after := r.Grid().Owner(0, 0); after != before {
		t.Fatalf("duplicate snapshot id must be dropped, owner changed from %d to %d", before, after)
	}
}

func TestReassemblerFirstClaimWinsNeverOverwrites(t *testing.T) {
	r := NewReassembler(5, 100*time.Millisecond)
	r.Apply(wire.SnapshotRecord{Full: true, Grid: []wire.Change{{Row: 0, Col: 0, Owner: 1}}}, 0, time.Now())
	r.Apply(wire.SnapshotRecord{Changes: []wire.Change{{Row: 0, Col: 0, Owner: 2}}}, 1, time.Now())

	if owner := r.Grid().Owner(0, 0); owner != 1 {
		t.Fatalf("first-claim-wins: expected owner to stay 1, got %d", owner)
	}
}

func TestReassemblerRedundantTailRecoversLostDeltas(t *testing.T) {
	r := NewReassembler(5, 100*time.Millisecond)
	r.Apply(wire.SnapshotRecord{Full: true}, 0, time.Now())

	// Deltas for snapshots 1, 2, 3 are lost; snapshot 4 carries a redundant
	// tail covering 2 and 3 (§4.6 scenario 4, K=2).
	rec := wire.SnapshotRecord{
		Changes: []wire.Change{{Row: 3, Col: 3, Owner: 4}},
		Redundant: []wire.RedundantEntry{
			{SnapshotID: 2, Changes: []wire.Change{{Row: 1, Col: 1, Owner: 2}}},
			{SnapshotID: 3, Changes: []wire.Change{{Row: 2, Col: 2, Owner: 3}}},
		},
	}
	r.Apply(rec, 4, time.Now())

	if owner := r.Grid().Owner(1, 1); owner != 2 {
		t.Fatalf("expected redundant entry for snapshot 2 applied, got owner %d", owner)
	}
	if owner := r.Grid().Owner(2, 2); owner != 3 {
		t.Fatalf("expected redundant entry for snapshot 3 applied, got owner %d", owner)
	}
	if owner := r.Grid().Owner(3, 3); owner != 4 {
		t.Fatalf("expected current_changes applied, got owner %d", owner)
	}
}

func TestReassemblerOutOfOrderConvergence(t *testing.T) {
	a := NewReassembler(5, 100*time.Millisecond)
	b := NewReassembler(5, 100*time.Millisecond)

	full := wire.SnapshotRecord{Full: true}
	delta1 := wire.SnapshotRecord{Changes: []wire.Change{{Row: 0, Col: 0, Owner: 1}}}
	delta2 := wire.SnapshotRecord{Changes: []wire.Change{{Row: 1, Col: 1, Owner: 2}}}

	a.Apply(full, 0, time.Now())
	a.Apply(delta1, 1, time.Now())
	a.Apply(delta2, 2, time.Now())

	b.Apply(full, 0, time.Now())
	b.Apply(delta2, 2, time.Now())
	b.Apply(delta1, 1, time.Now())

	for row := int32(0); row < 5; row++ {
		for col := int32(0); col < 5; col++ {
			if a.Grid().Owner(row, col) != b.Grid().Owner(row, col) {
				t.Fatalf("reassemblers diverged at (%d,%d): %d != %d", row, col, a.Grid().Owner(row, col), b.Grid().Owner(row, col))
			}
		}
	}
}
