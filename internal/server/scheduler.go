package server

import (
	"net"

	"netrush/internal/wire"
)

// scheduler produces the snapshot stream at the configured cadence,
// choosing between full and delta frames and attaching the K-redundancy
// tail (§4.5). Every method here assumes the caller already holds
// Server.mu — it is not independently synchronized.
type scheduler struct {
	s         *Server
	currentID uint32
}

func newScheduler(s *Server) *scheduler {
	return &scheduler{s: s, currentID: 0}
}

// buildTick drains the change log, decides full vs delta, and encodes the
// SNAPSHOT packet. It returns the wire bytes and the current client
// address list to broadcast to.
func (sch *scheduler) buildTick() (pkt []byte, clients []net.Addr) {
	s := sch.s
	snapshotID := sch.currentID
	sch.currentID++

	full := snapshotID == 0 || snapshotID%s.cfg.FullEvery == 0

	changes := s.changeLog.DrainTick(snapshotID)
	tail := s.changeLog.RedundantTail(s.cfg.RedundancyK)

	rec := wire.SnapshotRecord{
		Full:    full,
		Changes: changes,
	}
	if full {
		rec.Grid = s.grid.NonEmptyCells()
	}
	for _, e := range tail {
		rec.Redundant = append(rec.Redundant, wire.RedundantEntry{
			SnapshotID: e.SnapshotID,
			Changes:    e.Changes,
		})
	}

	body := wire.EncodeSnapshot(rec)
	seq := s.nextSeq()
	built, err := wire.BuildPacket(wire.MsgSnapshot, snapshotID, seq, nowMs(), body, full)
	if err != nil {
		// A correctly configured grid side can never produce a payload
		// exceeding MaxDatagram; surfacing this would be a fatal
		// construction error on the sender side per §6.
		s.logger.Printf("server: snapshot %d exceeds max datagram: %v", snapshotID, err)
		return nil, nil
	}

	return built, s.clientAddrs()
}
