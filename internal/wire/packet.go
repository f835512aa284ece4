package wire

// Packet is the fully decoded representation of an NRSH datagram: header
// fields plus the raw (already decompressed) payload body.
type Packet struct {
	Header  Header
	Payload []byte
}

// BuildPacket encodes a header and a decoded record body into the bytes to
// put on the wire: it frames the payload (compression flag + optional
// deflate) and fills in the header's payload length and checksum.
func BuildPacket(msgType MsgType, snapshotID, seqNum uint32, tsMs uint64, body []byte, forceCompress bool) ([]byte, error) {
	framed := FramePayload(body, forceCompress)
	h := Header{
		MsgType:     msgType,
		SnapshotID:  snapshotID,
		SeqNum:      seqNum,
		TimestampMs: tsMs,
	}
	return Encode(h, framed)
}

// ParsePacket decodes a wire datagram, verifying the header and checksum,
// and returns the header plus the decompressed payload body. Framing
// errors are the caller's signal to silently drop the packet.
func ParsePacket(data []byte) (Packet, error) {
	h, framed, err := Decode(data)
	if err != nil {
		return Packet{}, err
	}
	body, err := UnframePayload(framed)
	if err != nil {
		return Packet{}, err
	}
	return Packet{Header: h, Payload: body}, nil
}
