// Package metrics defines the CSV metrics sink interfaces. The sinks are
// external collaborators per the spec (§6 "Persisted state") — the
// protocol core only emits records through these interfaces; nothing in
// internal/server or internal/client depends on the concrete CSV writer.
package metrics

// ServerTick is one snapshot scheduler tick's worth of server metrics,
// grounded on original_source/Server.py's server_log.csv schema.
type ServerTick struct {
	LogTimeMs        int64
	SnapshotID       uint32
	Seq              uint32
	ClientsCount     int
	BytesSentTotal   int64
	PacketsSent      int64
	PacketsReceived  int64
	CPUPercent       float64 // optional; supplied by an external probe, §1 non-goal
	UpdateFreqHz     float64
	MemoryMB         float64 // optional; supplied by an external probe
}

// ServerSink receives one record per scheduler tick.
type ServerSink interface {
	RecordTick(ServerTick) error
	Close() error
}

// ClientPacket is one received-packet's worth of client metrics, grounded
// on original_source/client.py's per-client CSV schema.
type ClientPacket struct {
	ClientID        uint32
	SnapshotID      uint32
	ServerTsMs      uint64
	RecvTimeMs      int64
	LatencyMs       int64
	InterArrivalMs  int64 // -1 when this is the first packet received
	JitterMs        float64
	Bytes           int
	SessionToken    string // correlation id, see DESIGN.md
}

// ClientSink receives one record per received packet.
type ClientSink interface {
	RecordPacket(ClientPacket) error
	Close() error
}

// NopServerSink and NopClientSink discard everything; used when the
// caller doesn't want metrics persisted at all.
type NopServerSink struct{}

func (NopServerSink) RecordTick(ServerTick) error { return nil }
func (NopServerSink) Close() error                { return nil }

type NopClientSink struct{}

func (NopClientSink) RecordPacket(ClientPacket) error { return nil }
func (NopClientSink) Close() error                    { return nil }
