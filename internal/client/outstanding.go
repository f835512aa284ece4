package client

import "time"

// outstandingEntry is a client-side pending EVENT awaiting an ACK (§3
// "Client-side outstanding-event entry").
type outstandingEntry struct {
	seqNum     uint32
	row, col   int32
	sendTs     time.Time
	retryCount int
}

// outstandingTable is the client's outstanding-event table. It has no
// locking of its own; every caller holds Client.mu.
type outstandingTable struct {
	entries map[uint32]*outstandingEntry
}

func newOutstandingTable() *outstandingTable {
	return &outstandingTable{entries: make(map[uint32]*outstandingEntry)}
}

func (t *outstandingTable) insert(e *outstandingEntry) {
	t.entries[e.seqNum] = e
}

func (t *outstandingTable) remove(seq uint32) (*outstandingEntry, bool) {
	e, ok := t.entries[seq]
	if ok {
		delete(t.entries, seq)
	}
	return e, ok
}

func (t *outstandingTable) all() []*outstandingEntry {
	out := make([]*outstandingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
