// Package server implements the authoritative NetRush server session:
// per-client records, the grid, the conflict resolver, the snapshot
// scheduler, and the game lifecycle state machine (§4.3, §4.5, §4.7).
package server

import (
	"log"
	"net"
	"sync"
	"time"

	"netrush/internal/config"
	"netrush/internal/grid"
	"netrush/internal/metrics"
	"netrush/internal/transport"
	"netrush/internal/wire"
)

// Server owns the single logical atom of grid + session table (§5): all
// mutation happens under mu, and readers (the scheduler) and writers
// (ingest, prune) observe a consistent view.
type Server struct {
	cfg      config.Config
	endpoint transport.Endpoint
	sink     metrics.ServerSink
	logger   *log.Logger

	mu           sync.Mutex
	state        State
	grid         *grid.Grid
	changeLog    *grid.ChangeLog
	nextClientID uint32
	sessions     map[string]*ClientSession // keyed by addr.String()

	scheduler *scheduler

	seqNum uint32 // server's own outbound seq_num (per-sender, strictly increasing)

	packetsSent     int64
	packetsReceived int64
	bytesSentTotal  int64

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Server bound to the given endpoint. cfg.GridSide
// determines the grid dimension; cfg.FullEvery/RedundancyK drive the
// snapshot scheduler.
func New(cfg config.Config, endpoint transport.Endpoint, sink metrics.ServerSink, logger *log.Logger) *Server {
	if sink == nil {
		sink = metrics.NopServerSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		cfg:          cfg,
		endpoint:     endpoint,
		sink:         sink,
		logger:       logger,
		state:        Idle,
		grid:         grid.New(cfg.GridSide),
		changeLog:    grid.NewChangeLog(cfg.RedundancyK + 1),
		nextClientID: 1,
		sessions:     make(map[string]*ClientSession),
		stopCh:       make(chan struct{}),
	}
	s.scheduler = newScheduler(s)
	return s
}

func (s *Server) nextSeq() uint32 {
	s.seqNum++
	return s.seqNum
}

func nowMs() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Start launches the receive loop, the scheduler ticker, and the stale
// session pruner — one goroutine each, matching the teacher's
// receiveUnicast/retryMessages/checkTimeouts shape (§5).
func (s *Server) Start() error {
	s.wg.Add(3)
	go s.receiveLoop()
	go s.schedulerLoop()
	go s.pruneLoop()
	return nil
}

// Stop signals every goroutine and waits for them to exit.
func (s *Server) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Server) receiveLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		data, addr, err := s.endpoint.Receive(100 * time.Millisecond)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			s.logger.Printf("server: fatal receive error: %v", err)
			return
		}

		s.mu.Lock()
		s.packetsReceived++
		s.mu.Unlock()

		s.handleDatagram(data, addr)
	}
}

func (s *Server) handleDatagram(data []byte, addr net.Addr) {
	pkt, err := wire.ParsePacket(data)
	if err != nil {
		s.logger.Printf("server: dropping packet from %v: %v", addr, err)
		return
	}

	switch pkt.Header.MsgType {
	case wire.MsgInit:
		s.handleInit(addr)
	case wire.MsgEvent:
		s.handleEvent(pkt, addr)
	default:
		// SNAPSHOT/INIT_ACK/ACK/GAME_OVER are server-originated; a
		// client should never send them.
		s.logger.Printf("server: unexpected msg type %v from %v", pkt.Header.MsgType, addr)
	}
}

func (s *Server) schedulerLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SnapshotPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Server) pruneLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.PruneStale()
		}
	}
}

// Tick advances the snapshot scheduler and fires GAME_OVER broadcasts
// when the grid becomes fully claimed (§4.3 "tick()").
func (s *Server) Tick() {
	s.mu.Lock()
	if s.state == GameOver {
		s.mu.Unlock()
		return
	}
	if s.state == Idle {
		s.mu.Unlock()
		return
	}

	pkt, clients := s.scheduler.buildTick()
	cpuPercent, memoryMB := 0.0, 0.0 // external probes; see DOMAIN STACK notes
	snapID := s.scheduler.currentID - 1
	s.mu.Unlock()

	s.broadcast(pkt, clients)

	s.mu.Lock()
	allClaimed := s.grid.AllClaimed()
	bytesSentTotal := s.bytesSentTotal
	s.mu.Unlock()

	s.sink.RecordTick(metrics.ServerTick{
		LogTimeMs:       int64(nowMs()),
		SnapshotID:      snapID,
		Seq:             snapID,
		ClientsCount:    len(clients),
		BytesSentTotal:  bytesSentTotal,
		PacketsSent:     s.readPacketsSent(),
		PacketsReceived: s.readPacketsReceived(),
		CPUPercent:      cpuPercent,
		UpdateFreqHz:    float64(s.cfg.UpdateRateHz),
		MemoryMB:        memoryMB,
	})

	if allClaimed {
		s.enterGameOver()
	}
}

func (s *Server) readPacketsSent() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packetsSent
}

func (s *Server) readPacketsReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packetsReceived
}

func (s *Server) broadcast(pkt []byte, targets []net.Addr) int64 {
	var sent int64
	for _, addr := range targets {
		if err := s.endpoint.Send(pkt, addr); err != nil {
			s.logger.Printf("server: send to %v failed: %v", addr, err)
			continue
		}
		sent += int64(len(pkt))
	}
	s.mu.Lock()
	s.packetsSent += int64(len(targets))
	s.bytesSentTotal += sent
	s.mu.Unlock()
	return sent
}

// PruneStale removes sessions with no packet seen for CLIENT_TIMEOUT.
// Ownership is immutable once set, so pruning never touches the grid.
func (s *Server) PruneStale() {
	cutoff := time.Now().Add(-s.cfg.ClientTimeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, key)
		}
	}
}

func (s *Server) clientAddrs() []net.Addr {
	out := make([]net.Addr, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Addr)
	}
	return out
}
