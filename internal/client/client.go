// Package client implements the NetRush client session: the connection
// state machine, the outbound event reliability table, the inbound
// snapshot reassembler, and a render hand-off interface (§4.4, §4.6).
package client

import (
	"log"
	"math"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"netrush/internal/config"
	"netrush/internal/metrics"
	"netrush/internal/transport"
	"netrush/internal/wire"
)

// keepAlivePeriod is how often a PLAYING client re-sends INIT as a
// heartbeat (§4.8 "keep-alive overloading of INIT").
const keepAlivePeriod = 3 * time.Second

// tickPeriod drives both the RDT retransmit check and the keep-alive
// check; 50 ms keeps retransmit latency well under RDT_TIMEOUT.
const tickPeriod = 50 * time.Millisecond

// Client owns one endpoint's view of a NetRush game: the state machine,
// the outstanding-event table, and the snapshot reassembler. All of it is
// mutated by the receive task, the tick task, and SendClaim on the
// caller's goroutine, always under mu; mu also lets an external renderer
// safely read through the exported accessors concurrently.
type Client struct {
	cfg          config.Config
	endpoint     transport.Endpoint
	serverAddr   net.Addr
	sink         metrics.ClientSink
	logger       *log.Logger
	sessionToken string

	mu               sync.Mutex
	state            State
	clientID         uint32
	seqNum           uint32
	lastInitSend     time.Time
	lastKeepAlive    time.Time
	outstanding      *outstandingTable
	pending          map[uint32]bool // cell_index -> true while awaiting ACK
	reassembler      *Reassembler
	winners          []uint32
	gameOverNotified bool

	haveLastRecv bool
	lastRecvMs   int64
	jitterMs     float64

	stateListeners    []func(State)
	gameOverListeners []func(winners []uint32)
	listenerMu        sync.RWMutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Client bound to endpoint, targeting serverAddr.
func New(cfg config.Config, endpoint transport.Endpoint, serverAddr net.Addr, sink metrics.ClientSink, logger *log.Logger) *Client {
	if sink == nil {
		sink = metrics.NopClientSink{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:          cfg,
		endpoint:     endpoint,
		serverAddr:   serverAddr,
		sink:         sink,
		logger:       logger,
		sessionToken: uuid.NewString(),
		state:        Disconnected,
		outstanding:  newOutstandingTable(),
		pending:      make(map[uint32]bool),
		reassembler:  NewReassembler(cfg.GridSide, time.Duration(cfg.RenderDelayMs)*time.Millisecond),
		stopCh:       make(chan struct{}),
	}
}

func (c *Client) nextSeq() uint32 {
	c.seqNum++
	return c.seqNum
}

func nowMs() uint64 {
	return uint64(time.Now().UnixNano() / int64(time.Millisecond))
}

// Start launches the receive and tick tasks and sends the first INIT,
// entering CONNECTING.
func (c *Client) Start() error {
	c.mu.Lock()
	c.state = Connecting
	c.lastInitSend = time.Now()
	c.mu.Unlock()
	c.setState(Connecting)

	if err := c.sendInit(); err != nil {
		return err
	}

	c.wg.Add(2)
	go c.receiveLoop()
	go c.tickLoop()
	return nil
}

// Stop signals both tasks and waits for them to exit.
func (c *Client) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ClientID returns the id assigned by INIT_ACK (0 before PLAYING).
func (c *Client) ClientID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// Reassembler exposes the snapshot reassembler for render hand-off.
func (c *Client) Reassembler() *Reassembler { return c.reassembler }

// IsPending reports whether (row, col) has an EVENT in flight awaiting
// an ACK, for the renderer's distinct pending color (§4.4 "send_claim").
func (c *Client) IsPending(row, col int32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[c.reassembler.Grid().CellIndex(row, col)]
}

// Winners returns the final GAME_OVER winner set (nil before GAME_OVER).
func (c *Client) Winners() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winners
}

// AddStateListener registers a callback fired on every state transition.
func (c *Client) AddStateListener(fn func(State)) {
	c.listenerMu.Lock()
	c.stateListeners = append(c.stateListeners, fn)
	c.listenerMu.Unlock()
}

// AddGameOverListener registers a callback fired exactly once when the
// client reaches GAME_OVER.
func (c *Client) AddGameOverListener(fn func(winners []uint32)) {
	c.listenerMu.Lock()
	c.gameOverListeners = append(c.gameOverListeners, fn)
	c.listenerMu.Unlock()
}

func (c *Client) setState(s State) {
	c.listenerMu.RLock()
	listeners := make([]func(State), len(c.stateListeners))
	copy(listeners, c.stateListeners)
	c.listenerMu.RUnlock()
	for _, l := range listeners {
		l(s)
	}
}

func (c *Client) notifyGameOver(winners []uint32) {
	c.listenerMu.RLock()
	listeners := make([]func([]uint32), len(c.gameOverListeners))
	copy(listeners, c.gameOverListeners)
	c.listenerMu.RUnlock()
	for _, l := range listeners {
		l(winners)
	}
}

// SendClaim implements send_claim(cell) (§4.4): assigns the next seq_num,
// sends an EVENT, and marks the cell pending in the local view.
func (c *Client) SendClaim(row, col int32) error {
	c.mu.Lock()
	g := c.reassembler.Grid()
	if !g.InBounds(row, col) {
		c.mu.Unlock()
		return &wire.Error{Kind: wire.ErrMalformedPayload, Msg: "cell out of bounds"}
	}
	clientID := c.clientID
	seq := c.nextSeq()
	ts := nowMs()
	idx := g.CellIndex(row, col)
	c.mu.Unlock()

	body := wire.EncodeEvent(wire.EventRecord{CellIndex: idx, ClientID: clientID, TsMs: ts})
	pkt, err := wire.BuildPacket(wire.MsgEvent, 0, seq, ts, body, false)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.outstanding.insert(&outstandingEntry{
		seqNum: seq,
		row:    row,
		col:    col,
		sendTs: time.Now(),
	})
	c.pending[idx] = true
	c.mu.Unlock()

	return c.endpoint.Send(pkt, c.serverAddr)
}

func (c *Client) sendInit() error {
	seq := c.nextSeq()
	pkt, err := wire.BuildPacket(wire.MsgInit, 0, seq, nowMs(), nil, false)
	if err != nil {
		return err
	}
	return c.endpoint.Send(pkt, c.serverAddr)
}

func (c *Client) receiveLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		data, _, err := c.endpoint.Receive(100 * time.Millisecond)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			c.logger.Printf("client: fatal receive error: %v", err)
			return
		}

		c.handleDatagram(data)
	}
}

func (c *Client) handleDatagram(data []byte) {
	pkt, err := wire.ParsePacket(data)
	if err != nil {
		c.logger.Printf("client: dropping packet: %v", err)
		return
	}

	c.recordMetrics(pkt, len(data))

	switch pkt.Header.MsgType {
	case wire.MsgInitAck:
		c.handleInitAck(pkt)
	case wire.MsgAck:
		c.handleAck(pkt)
	case wire.MsgSnapshot:
		c.handleSnapshot(pkt)
	case wire.MsgGameOver:
		c.handleGameOver(pkt)
	default:
		c.logger.Printf("client: unexpected msg type %v from server", pkt.Header.MsgType)
	}
}

func (c *Client) handleInitAck(pkt wire.Packet) {
	rec, err := wire.DecodeInitAck(pkt.Payload)
	if err != nil {
		c.logger.Printf("client: malformed INIT_ACK: %v", err)
		return
	}

	c.mu.Lock()
	wasConnecting := c.state == Connecting
	c.clientID = rec.ClientID
	if wasConnecting {
		c.state = Playing
		c.lastKeepAlive = time.Now()
	}
	c.mu.Unlock()

	if wasConnecting {
		c.setState(Playing)
	}
}

func (c *Client) handleAck(pkt wire.Packet) {
	rec, err := wire.DecodeAck(pkt.Payload)
	if err != nil {
		c.logger.Printf("client: malformed ACK: %v", err)
		return
	}

	c.mu.Lock()
	if _, ok := c.outstanding.remove(pkt.Header.SeqNum); ok {
		delete(c.pending, rec.CellIndex)
	}
	g := c.reassembler.Grid()
	row, col := g.RowColFromIndex(rec.CellIndex)
	before := g.Owner(row, col)
	g.ApplyFirstClaimWins(wire.Change{Row: row, Col: col, Owner: rec.Owner})
	if g.Owner(row, col) != before {
		c.reassembler.changedAt[rec.CellIndex] = time.Now()
	}
	c.mu.Unlock()
}

func (c *Client) handleSnapshot(pkt wire.Packet) {
	rec, err := wire.DecodeSnapshot(pkt.Payload)
	if err != nil {
		c.logger.Printf("client: malformed SNAPSHOT: %v", err)
		return
	}

	c.mu.Lock()
	c.reassembler.Apply(rec, pkt.Header.SnapshotID, time.Now())
	c.mu.Unlock()
}

func (c *Client) handleGameOver(pkt wire.Packet) {
	c.mu.Lock()
	if c.gameOverNotified {
		c.mu.Unlock()
		return
	}
	rec, err := wire.DecodeGameOver(pkt.Payload)
	if err != nil {
		c.mu.Unlock()
		c.logger.Printf("client: malformed GAME_OVER: %v", err)
		return
	}
	c.reassembler.Grid().Replace(rec.FinalGrid)
	c.winners = rec.Winners
	c.gameOverNotified = true
	c.state = GameOver
	c.mu.Unlock()

	c.setState(GameOver)
	c.notifyGameOver(rec.Winners)
}

// tickLoop drives INIT retransmit/keep-alive and EVENT retransmit timers
// (§4.4 "tick()").
func (c *Client) tickLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Client) tick() {
	c.mu.Lock()
	state := c.state
	now := time.Now()

	var resendInit bool
	if state == Connecting && now.Sub(c.lastInitSend) > c.cfg.RDTTimeout {
		resendInit = true
		c.lastInitSend = now
	} else if state == Playing && now.Sub(c.lastKeepAlive) > keepAlivePeriod {
		resendInit = true
		c.lastKeepAlive = now
	}

	var toRetransmit []*outstandingEntry
	var toAbandon []*outstandingEntry
	if state == Playing {
		for _, e := range c.outstanding.all() {
			if now.Sub(e.sendTs) <= c.cfg.RDTTimeout {
				continue
			}
			if e.retryCount >= c.cfg.MaxRetries {
				toAbandon = append(toAbandon, e)
				continue
			}
			e.retryCount++
			e.sendTs = now
			toRetransmit = append(toRetransmit, e)
		}
		for _, e := range toAbandon {
			c.outstanding.remove(e.seqNum)
			delete(c.pending, c.reassembler.Grid().CellIndex(e.row, e.col))
		}
	}
	c.mu.Unlock()

	if resendInit {
		if err := c.sendInit(); err != nil {
			c.logger.Printf("client: INIT send failed: %v", err)
		}
	}

	for _, e := range toRetransmit {
		c.mu.Lock()
		clientID := c.clientID
		idx := c.reassembler.Grid().CellIndex(e.row, e.col)
		c.mu.Unlock()

		body := wire.EncodeEvent(wire.EventRecord{CellIndex: idx, ClientID: clientID, TsMs: nowMs()})
		pkt, err := wire.BuildPacket(wire.MsgEvent, 0, e.seqNum, nowMs(), body, false)
		if err != nil {
			c.logger.Printf("client: failed to rebuild EVENT seq=%d: %v", e.seqNum, err)
			continue
		}
		if err := c.endpoint.Send(pkt, c.serverAddr); err != nil {
			c.logger.Printf("client: EVENT retransmit failed: %v", err)
		}
	}
}

func (c *Client) recordMetrics(pkt wire.Packet, byteLen int) {
	recvMs := int64(nowMs())

	c.mu.Lock()
	interArrival := int64(-1)
	if c.haveLastRecv {
		interArrival = recvMs - c.lastRecvMs
		diff := math.Abs(float64(interArrival) - c.jitterMs)
		c.jitterMs = 0.9*c.jitterMs + 0.1*diff
	}
	c.lastRecvMs = recvMs
	c.haveLastRecv = true
	jitter := c.jitterMs
	clientID := c.clientID
	token := c.sessionToken
	c.mu.Unlock()

	_ = c.sink.RecordPacket(metrics.ClientPacket{
		ClientID:       clientID,
		SnapshotID:     pkt.Header.SnapshotID,
		ServerTsMs:     pkt.Header.TimestampMs,
		RecvTimeMs:     recvMs,
		LatencyMs:      recvMs - int64(pkt.Header.TimestampMs),
		InterArrivalMs: interArrival,
		JitterMs:       jitter,
		Bytes:          byteLen,
		SessionToken:   token,
	})
}
