package metrics

import (
	"encoding/csv"
	"os"
	"strconv"
)

// CSVServerSink writes one row per scheduler tick, column order matching
// original_source/Server.py's server_log.csv exactly.
type CSVServerSink struct {
	f *os.File
	w *csv.Writer
}

func NewCSVServerSink(path string) (*CSVServerSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	header := []string{
		"log_time_ms", "snapshot_id", "seq", "clients_count",
		"bytes_sent_total", "packets_sent", "packets_received",
		"cpu_percent", "update_frequency_hz", "memory_mb",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVServerSink{f: f, w: w}, nil
}

func (s *CSVServerSink) RecordTick(t ServerTick) error {
	row := []string{
		strconv.FormatInt(t.LogTimeMs, 10),
		strconv.FormatUint(uint64(t.SnapshotID), 10),
		strconv.FormatUint(uint64(t.Seq), 10),
		strconv.Itoa(t.ClientsCount),
		strconv.FormatInt(t.BytesSentTotal, 10),
		strconv.FormatInt(t.PacketsSent, 10),
		strconv.FormatInt(t.PacketsReceived, 10),
		strconv.FormatFloat(t.CPUPercent, 'f', 2, 64),
		strconv.FormatFloat(t.UpdateFreqHz, 'f', 2, 64),
		strconv.FormatFloat(t.MemoryMB, 'f', 2, 64),
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVServerSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}

// CSVClientSink writes one row per received packet, column order matching
// original_source/client.py's per-client log, followed by a session_token
// column.
type CSVClientSink struct {
	f *os.File
	w *csv.Writer
}

func NewCSVClientSink(path string) (*CSVClientSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	header := []string{
		"client_id", "snapshot_id", "server_timestamp_ms", "recv_time_ms",
		"latency_ms", "inter_arrival_ms", "jitter_ms", "bytes", "session_token",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVClientSink{f: f, w: w}, nil
}

func (s *CSVClientSink) RecordPacket(p ClientPacket) error {
	interArrival := ""
	if p.InterArrivalMs >= 0 {
		interArrival = strconv.FormatInt(p.InterArrivalMs, 10)
	}
	row := []string{
		strconv.FormatUint(uint64(p.ClientID), 10),
		strconv.FormatUint(uint64(p.SnapshotID), 10),
		strconv.FormatUint(p.ServerTsMs, 10),
		strconv.FormatInt(p.RecvTimeMs, 10),
		strconv.FormatInt(p.LatencyMs, 10),
		interArrival,
		strconv.FormatFloat(p.JitterMs, 'f', 4, 64),
		strconv.Itoa(p.Bytes),
		p.SessionToken,
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *CSVClientSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}
