package server

import (
	"net"

	"netrush/internal/wire"
)

// handleInit implements accept_init (§4.3): idempotent re-registration
// for a known address, fresh allocation otherwise, CAPACITY_EXCEEDED
// rejection beyond the configured bound.
func (s *Server) handleInit(addr net.Addr) {
	key := addr.String()

	s.mu.Lock()
	sess, known := s.sessions[key]
	if known {
		sess.touch()
		pkt := sess.cachedInitAck
		wasIdle := s.state == Idle
		if wasIdle {
			s.state = Running
		}
		s.mu.Unlock()
		_ = s.endpoint.Send(pkt, addr)
		return
	}

	if len(s.sessions) >= s.cfg.MaxClients {
		s.mu.Unlock()
		s.logger.Printf("server: CapacityExceeded, dropping INIT from %v", addr)
		return
	}

	id := s.nextClientID
	s.nextClientID++
	sess = newClientSession(id, addr)

	rec := wire.EncodeInitAck(wire.InitAckRecord{ClientID: id})
	pkt, err := wire.BuildPacket(wire.MsgInitAck, 0, s.nextSeq(), nowMs(), rec, false)
	if err != nil {
		s.mu.Unlock()
		s.logger.Printf("server: failed to build INIT_ACK: %v", err)
		return
	}
	sess.cachedInitAck = pkt
	s.sessions[key] = sess

	if s.state == Idle {
		s.state = Running
	}
	s.mu.Unlock()

	_ = s.endpoint.Send(pkt, addr)
}

// handleEvent implements ingest_event (§4.3): validates the sender,
// resolves ownership (first-claim-wins), and emits an idempotent ACK
// naming the resolved owner under the event's original seq_num.
func (s *Server) handleEvent(pkt wire.Packet, addr net.Addr) {
	rec, err := wire.DecodeEvent(pkt.Payload)
	if err != nil {
		s.logger.Printf("server: malformed EVENT from %v: %v", addr, err)
		return
	}

	s.mu.Lock()
	sess, known := s.sessions[addr.String()]
	if !known || sess.ClientID != rec.ClientID {
		s.mu.Unlock()
		s.logger.Printf("server: UnknownSender for EVENT from %v", addr)
		return
	}
	sess.touch()

	if owner, ok := sess.lookupAck(pkt.Header.SeqNum); ok {
		// ACK idempotence: replaying an already-ACKed EVENT produces the
		// same resolved owner without touching the grid.
		s.mu.Unlock()
		s.sendAck(rec.CellIndex, owner, pkt.Header.SeqNum, addr)
		return
	}

	row, col := s.grid.RowColFromIndex(rec.CellIndex)
	if !s.grid.InBounds(row, col) {
		s.mu.Unlock()
		s.logger.Printf("server: EVENT cell index %d out of bounds from %v", rec.CellIndex, addr)
		return
	}

	resolved, changed := s.grid.TryClaim(row, col, rec.ClientID)
	if changed {
		s.changeLog.Record(wire.Change{Row: row, Col: col, Owner: resolved})
	}
	sess.recordAck(pkt.Header.SeqNum, resolved)
	s.mu.Unlock()

	s.sendAck(rec.CellIndex, resolved, pkt.Header.SeqNum, addr)
}

func (s *Server) sendAck(cellIndex, owner, seq uint32, addr net.Addr) {
	body := wire.EncodeAck(wire.AckRecord{CellIndex: cellIndex, Owner: owner})
	pkt, err := wire.BuildPacket(wire.MsgAck, 0, seq, nowMs(), body, false)
	if err != nil {
		s.logger.Printf("server: failed to build ACK: %v", err)
		return
	}
	if err := s.endpoint.Send(pkt, addr); err != nil {
		s.logger.Printf("server: ACK send to %v failed: %v", addr, err)
		return
	}
	s.mu.Lock()
	s.packetsSent++
	s.bytesSentTotal += int64(len(pkt))
	s.mu.Unlock()
}
