package grid

import "netrush/internal/wire"

// Entry is one tick's worth of changes, keyed by the snapshot id that
// first carried them as its "primary" changes.
type Entry struct {
	SnapshotID uint32
	Changes    []wire.Change
}

// ChangeLog is the server's append-only log of changes, keyed by snapshot
// id. It retains only the last K+1 entries the redundancy tail needs;
// older entries are dropped once the scheduler has moved past them, so
// memory does not grow unbounded (§9 "Change-log memory").
type ChangeLog struct {
	retain  int
	entries []Entry
	pending []wire.Change
}

// NewChangeLog creates a log that retains the last `retain` snapshot
// entries (retain should be K+1 so the redundancy tail can be built).
func NewChangeLog(retain int) *ChangeLog {
	if retain < 1 {
		retain = 1
	}
	return &ChangeLog{retain: retain}
}

// Record appends a change to the pending buffer, to be drained into the
// next tick's primary entry.
func (c *ChangeLog) Record(ch wire.Change) {
	c.pending = append(c.pending, ch)
}

// DrainTick moves the pending changes into a new entry for snapshotID and
// returns them as that tick's "current_changes". Older entries beyond the
// retention window are dropped.
func (c *ChangeLog) DrainTick(snapshotID uint32) []wire.Change {
	changes := c.pending
	c.pending = nil

	c.entries = append(c.entries, Entry{SnapshotID: snapshotID, Changes: changes})
	if len(c.entries) > c.retain {
		c.entries = c.entries[len(c.entries)-c.retain:]
	}
	return changes
}

// RedundantTail returns the previous K entries (excluding the current
// tick's own entry), oldest first, for attaching to the current snapshot.
func (c *ChangeLog) RedundantTail(k int) []Entry {
	// c.entries currently includes the just-drained current tick as its
	// last element; the tail is everything before that, most recent K.
	if len(c.entries) <= 1 {
		return nil
	}
	prior := c.entries[:len(c.entries)-1]
	if len(prior) > k {
		prior = prior[len(prior)-k:]
	}
	out := make([]Entry, len(prior))
	copy(out, prior)
	return out
}
