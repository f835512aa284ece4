package server

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// ClientSession is the server-side per-client record (§3 "Client session
// record"). SessionToken is an internal correlation id (not the wire
// client id), generated once per session; the server does not write it to
// its log lines or its metrics rows.
type ClientSession struct {
	ClientID     uint32
	Addr         net.Addr
	LastSeen     time.Time
	SessionToken string

	// ackedSeqs lets a retransmitted EVENT be answered identically
	// without re-resolving ownership (ACK idempotence, §8).
	ackedSeqs map[uint32]uint32 // seq_num -> resolved owner

	// cachedInitAck is replayed verbatim when INIT arrives again from a
	// known address (INIT idempotence, §8).
	cachedInitAck []byte
}

func newClientSession(id uint32, addr net.Addr) *ClientSession {
	return &ClientSession{
		ClientID:     id,
		Addr:         addr,
		LastSeen:     time.Now(),
		SessionToken: uuid.NewString(),
		ackedSeqs:    make(map[uint32]uint32),
	}
}

func (s *ClientSession) touch() {
	s.LastSeen = time.Now()
}

func (s *ClientSession) recordAck(seq uint32, owner uint32) {
	s.ackedSeqs[seq] = owner
	// Bound the idempotence table; a client will not usefully retransmit
	// something this old (MAX_RETRIES is tiny relative to this window).
	if len(s.ackedSeqs) > 4096 {
		for k := range s.ackedSeqs {
			delete(s.ackedSeqs, k)
			if len(s.ackedSeqs) <= 2048 {
				break
			}
		}
	}
}

func (s *ClientSession) lookupAck(seq uint32) (owner uint32, ok bool) {
	owner, ok = s.ackedSeqs[seq]
	return
}
