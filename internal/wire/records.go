package wire

import "encoding/binary"

// Tagged small records for INIT_ACK, EVENT, ACK, GAME_OVER, and the
// SNAPSHOT body. The concrete framing is a deterministic length-prefixed
// binary layout; the only contract is round-trip equality (§4.2).

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) u32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, newErr(ErrMalformedPayload, "truncated uint32")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, newErr(ErrMalformedPayload, "truncated uint64")
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *byteReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", newErr(ErrMalformedPayload, "truncated string")
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *byteReader) byte() (byte, error) {
	if r.pos+1 > len(r.data) {
		return 0, newErr(ErrMalformedPayload, "truncated byte")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// InitAckRecord carries the assigned client id.
type InitAckRecord struct {
	ClientID uint32
}

func EncodeInitAck(rec InitAckRecord) []byte {
	return appendUint32(nil, rec.ClientID)
}

func DecodeInitAck(data []byte) (InitAckRecord, error) {
	r := &byteReader{data: data}
	cid, err := r.u32()
	if err != nil {
		return InitAckRecord{}, err
	}
	return InitAckRecord{ClientID: cid}, nil
}

// EventRecord is a client-originated cell claim request.
type EventRecord struct {
	CellIndex uint32
	ClientID  uint32
	TsMs      uint64
}

func EncodeEvent(rec EventRecord) []byte {
	buf := appendUint32(nil, rec.CellIndex)
	buf = appendUint32(buf, rec.ClientID)
	buf = appendUint64(buf, rec.TsMs)
	return buf
}

func DecodeEvent(data []byte) (EventRecord, error) {
	r := &byteReader{data: data}
	cell, err := r.u32()
	if err != nil {
		return EventRecord{}, err
	}
	cid, err := r.u32()
	if err != nil {
		return EventRecord{}, err
	}
	ts, err := r.u64()
	if err != nil {
		return EventRecord{}, err
	}
	return EventRecord{CellIndex: cell, ClientID: cid, TsMs: ts}, nil
}

// AckRecord carries the resolved owner for an EVENT's cell.
type AckRecord struct {
	CellIndex uint32
	Owner     uint32
}

func EncodeAck(rec AckRecord) []byte {
	buf := appendUint32(nil, rec.CellIndex)
	buf = appendUint32(buf, rec.Owner)
	return buf
}

func DecodeAck(data []byte) (AckRecord, error) {
	r := &byteReader{data: data}
	cell, err := r.u32()
	if err != nil {
		return AckRecord{}, err
	}
	owner, err := r.u32()
	if err != nil {
		return AckRecord{}, err
	}
	return AckRecord{CellIndex: cell, Owner: owner}, nil
}

// GameOverRecord carries the winner list and the final grid.
type GameOverRecord struct {
	Winners   []uint32
	FinalGrid []Change
}

func EncodeGameOver(rec GameOverRecord) []byte {
	buf := appendUint32(nil, uint32(len(rec.Winners)))
	for _, w := range rec.Winners {
		buf = appendUint32(buf, w)
	}
	buf = appendString(buf, EncodeCellList(rec.FinalGrid))
	return buf
}

func DecodeGameOver(data []byte) (GameOverRecord, error) {
	r := &byteReader{data: data}
	n, err := r.u32()
	if err != nil {
		return GameOverRecord{}, err
	}
	winners := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		w, err := r.u32()
		if err != nil {
			return GameOverRecord{}, err
		}
		winners = append(winners, w)
	}
	gridStr, err := r.str()
	if err != nil {
		return GameOverRecord{}, err
	}
	grid, err := DecodeCellList(gridStr)
	if err != nil {
		return GameOverRecord{}, err
	}
	return GameOverRecord{Winners: winners, FinalGrid: grid}, nil
}

// RedundantEntry is one (snapshot_id, changes) pair in a SNAPSHOT's tail.
type RedundantEntry struct {
	SnapshotID uint32
	Changes    []Change
}

// SnapshotRecord is the full tagged body of a SNAPSHOT packet.
type SnapshotRecord struct {
	Full      bool
	Grid      []Change // present iff Full
	Changes   []Change
	Redundant []RedundantEntry
}

func EncodeSnapshot(rec SnapshotRecord) []byte {
	flags := byte(0)
	if rec.Full {
		flags |= 1
	}
	buf := append([]byte{}, flags)
	buf = appendString(buf, EncodeCellList(rec.Changes))

	if rec.Full {
		buf = appendString(buf, EncodeCellList(rec.Grid))
	}

	buf = appendUint32(buf, uint32(len(rec.Redundant)))
	for _, re := range rec.Redundant {
		buf = appendUint32(buf, re.SnapshotID)
		buf = appendString(buf, EncodeCellList(re.Changes))
	}
	return buf
}

func DecodeSnapshot(data []byte) (SnapshotRecord, error) {
	r := &byteReader{data: data}
	flags, err := r.byte()
	if err != nil {
		return SnapshotRecord{}, err
	}
	full := flags&1 != 0

	changesStr, err := r.str()
	if err != nil {
		return SnapshotRecord{}, err
	}
	changes, err := DecodeCellList(changesStr)
	if err != nil {
		return SnapshotRecord{}, err
	}

	var grid []Change
	if full {
		gridStr, err := r.str()
		if err != nil {
			return SnapshotRecord{}, err
		}
		grid, err = DecodeCellList(gridStr)
		if err != nil {
			return SnapshotRecord{}, err
		}
	}

	n, err := r.u32()
	if err != nil {
		return SnapshotRecord{}, err
	}
	redundant := make([]RedundantEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		sid, err := r.u32()
		if err != nil {
			return SnapshotRecord{}, err
		}
		s, err := r.str()
		if err != nil {
			return SnapshotRecord{}, err
		}
		ch, err := DecodeCellList(s)
		if err != nil {
			return SnapshotRecord{}, err
		}
		redundant = append(redundant, RedundantEntry{SnapshotID: sid, Changes: ch})
	}

	return SnapshotRecord{Full: full, Grid: grid, Changes: changes, Redundant: redundant}, nil
}
