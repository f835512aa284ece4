package wire

import (
	"encoding/binary"
	"hash/crc32"
)

// MsgType is the on-wire message type enumeration (§3 of the spec).
type MsgType uint8

const (
	MsgInit     MsgType = 0
	MsgInitAck  MsgType = 1
	MsgSnapshot MsgType = 2
	MsgEvent    MsgType = 3
	MsgAck      MsgType = 4
	MsgGameOver MsgType = 5
)

func (t MsgType) Valid() bool {
	return t <= MsgGameOver
}

func (t MsgType) String() string {
	switch t {
	case MsgInit:
		return "INIT"
	case MsgInitAck:
		return "INIT_ACK"
	case MsgSnapshot:
		return "SNAPSHOT"
	case MsgEvent:
		return "EVENT"
	case MsgAck:
		return "ACK"
	case MsgGameOver:
		return "GAME_OVER"
	default:
		return "UNKNOWN"
	}
}

const (
	// HeaderSize is the fixed on-wire header length in bytes.
	HeaderSize = 28
	// ProtocolVersion is the only version this codec understands.
	ProtocolVersion uint8 = 1
	// MaxDatagram is the construction ceiling for an encoded packet.
	MaxDatagram = 1200
)

var protocolID = [4]byte{'N', 'R', 'S', 'H'}

// Header is the parsed fixed 28-byte NRSH header.
type Header struct {
	MsgType     MsgType
	SnapshotID  uint32
	SeqNum      uint32
	TimestampMs uint64
	PayloadLen  uint16
	Checksum    uint32
}

// Encode packs header fields and a payload into a full NRSH packet,
// computing the CRC32 over the zero-checksum header image plus payload.
func Encode(h Header, payload []byte) ([]byte, error) {
	if len(payload) > MaxDatagram-HeaderSize {
		return nil, newErr(ErrLengthMismatch, "payload exceeds max datagram")
	}

	buf := make([]byte, HeaderSize+len(payload))
	writeHeader(buf, h, uint16(len(payload)), 0)
	copy(buf[HeaderSize:], payload)

	csum := crc32.ChecksumIEEE(buf)
	binary.BigEndian.PutUint32(buf[24:28], csum)

	return buf, nil
}

func writeHeader(buf []byte, h Header, payloadLen uint16, checksum uint32) {
	copy(buf[0:4], protocolID[:])
	buf[4] = ProtocolVersion
	buf[5] = byte(h.MsgType)
	binary.BigEndian.PutUint32(buf[6:10], h.SnapshotID)
	binary.BigEndian.PutUint32(buf[10:14], h.SeqNum)
	binary.BigEndian.PutUint64(buf[14:22], h.TimestampMs)
	binary.BigEndian.PutUint16(buf[22:24], payloadLen)
	binary.BigEndian.PutUint32(buf[24:28], checksum)
}

// Decode rejects, in order: too-short input, wrong protocol id, unsupported
// version, unknown message type, payload_len mismatch, CRC mismatch.
func Decode(data []byte) (Header, []byte, error) {
	if len(data) < HeaderSize {
		return Header{}, nil, newErr(ErrShortPacket, "")
	}

	if string(data[0:4]) != string(protocolID[:]) {
		return Header{}, nil, newErr(ErrBadMagic, "")
	}

	version := data[4]
	if version != ProtocolVersion {
		return Header{}, nil, newErr(ErrBadVersion, "")
	}

	mtype := MsgType(data[5])
	if !mtype.Valid() {
		return Header{}, nil, newErr(ErrUnknownMsgType, "")
	}

	h := Header{
		MsgType:     mtype,
		SnapshotID:  binary.BigEndian.Uint32(data[6:10]),
		SeqNum:      binary.BigEndian.Uint32(data[10:14]),
		TimestampMs: binary.BigEndian.Uint64(data[14:22]),
		PayloadLen:  binary.BigEndian.Uint16(data[22:24]),
		Checksum:    binary.BigEndian.Uint32(data[24:28]),
	}

	if int(h.PayloadLen) != len(data)-HeaderSize {
		return Header{}, nil, newErr(ErrLengthMismatch, "")
	}

	payload := data[HeaderSize:]

	zeroed := make([]byte, len(data))
	copy(zeroed, data)
	zeroed[24], zeroed[25], zeroed[26], zeroed[27] = 0, 0, 0, 0

	if crc32.ChecksumIEEE(zeroed) != h.Checksum {
		return Header{}, nil, newErr(ErrChecksumMismatch, "")
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return h, out, nil
}
