package client

import (
	"log"
	"net"
	"testing"
	"time"

	"netrush/internal/config"
	"netrush/internal/wire"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testClient(t *testing.T) (*Client, *fakeEndpoint) {
	t.Helper()
	cfg := config.Default()
	cfg.GridSide = 5
	ep := newFakeEndpoint()
	serverAddr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000}
	c := New(cfg, ep, serverAddr, nil, log.New(nopWriter{}, "", 0))
	return c, ep
}

func initAckPacket(t *testing.T, clientID uint32) wire.Packet {
	t.Helper()
	body := wire.EncodeInitAck(wire.InitAckRecord{ClientID: clientID})
	raw, err := wire.BuildPacket(wire.MsgInitAck, 0, 1, 0, body, false)
	if err != nil {
		t.Fatalf("build init_ack: %v", err)
	}
	pkt, err := wire.ParsePacket(raw)
	if err != nil {
		t.Fatalf("parse init_ack: %v", err)
	}
	return pkt
}

func ackPacket(t *testing.T, seq, cellIdx, owner uint32) wire.Packet {
	t.Helper()
	body := wire.EncodeAck(wire.AckRecord{CellIndex: cellIdx, Owner: owner})
	raw, err := wire.BuildPacket(wire.MsgAck, 0, seq, 0, body, false)
	if err != nil {
		t.Fatalf("build ack: %v", err)
	}
	pkt, err := wire.ParsePacket(raw)
	if err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	return pkt
}

func TestHandshakeTransitionsToPlaying(t *testing.T) {
	c, _ := testClient(t)
	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()

	c.handleInitAck(initAckPacket(t, 1))

	if c.State() != Playing {
		t.Fatalf("expected PLAYING, got %v", c.State())
	}
	if c.ClientID() != 1 {
		t.Fatalf("expected client id 1, got %d", c.ClientID())
	}
}

func TestInitAckIdempotentWhileAlreadyPlaying(t *testing.T) {
	c, _ := testClient(t)
	c.mu.Lock()
	c.state = Connecting
	c.mu.Unlock()
	c.handleInitAck(initAckPacket(t, 1))
	c.handleInitAck(initAckPacket(t, 1)) // server's idempotent keep-alive reply

	if c.State() != Playing {
		t.Fatalf("expected PLAYING, got %v", c.State())
	}
}

func TestSendClaimMarksPendingAndSendsEvent(t *testing.T) {
	c, ep := testClient(t)
	c.mu.Lock()
	c.state = Playing
	c.clientID = 1
	c.mu.Unlock()

	if err := c.SendClaim(2, 2); err != nil {
		t.Fatalf("send claim: %v", err)
	}

	if !c.IsPending(2, 2) {
		t.Fatalf("expected (2,2) marked pending")
	}
	sent := ep.allSent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 EVENT sent, got %d", len(sent))
	}
	p, err := wire.ParsePacket(sent[0].data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Header.MsgType != wire.MsgEvent {
		t.Fatalf("expected EVENT, got %v", p.Header.MsgType)
	}
}

func TestOnAckClearsPendingAndUpdatesGrid(t *testing.T) {
	c, ep := testClient(t)
	c.mu.Lock()
	c.state = Playing
	c.clientID = 1
	c.mu.Unlock()

	if err := c.SendClaim(2, 2); err != nil {
		t.Fatalf("send claim: %v", err)
	}
	sent, _ := ep.lastSent()
	p, _ := wire.ParsePacket(sent.data)
	seq := p.Header.SeqNum

	cellIdx := c.reassembler.Grid().CellIndex(2, 2)
	c.handleAck(ackPacket(t, seq, cellIdx, 1))

	if c.IsPending(2, 2) {
		t.Fatalf("expected pending cleared after ACK")
	}
	if owner := c.reassembler.Grid().Owner(2, 2); owner != 1 {
		t.Fatalf("expected grid owner 1, got %d", owner)
	}
	if len(c.outstanding.all()) != 0 {
		t.Fatalf("expected outstanding table empty")
	}
}

func TestTickRetransmitsThenAbandonsOnRetryExhaustion(t *testing.T) {
	c, ep := testClient(t)
	cfg := config.Default()
	cfg.MaxRetries = 3
	c.mu.Lock()
	c.cfg = cfg
	c.state = Playing
	c.clientID = 1
	c.lastKeepAlive = time.Now() // as handleInitAck leaves it; no keep-alive due
	c.outstanding.insert(&outstandingEntry{
		seqNum: 7,
		row:    1,
		col:    1,
		sendTs: time.Now().Add(-time.Second),
	})
	c.pending[c.reassembler.Grid().CellIndex(1, 1)] = true
	c.mu.Unlock()

	c.tick()

	c.mu.Lock()
	entry, ok := c.outstanding.entries[7]
	c.mu.Unlock()
	if !ok {
		t.Fatalf("expected entry still outstanding after first retransmit")
	}
	if entry.retryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", entry.retryCount)
	}
	if len(ep.allSent()) != 1 {
		t.Fatalf("expected 1 retransmit sent, got %d", len(ep.allSent()))
	}

	// Push past the retry budget and tick again.
	c.mu.Lock()
	c.outstanding.entries[7].sendTs = time.Now().Add(-time.Second)
	c.outstanding.entries[7].retryCount = 3
	c.mu.Unlock()

	c.tick()

	c.mu.Lock()
	_, stillThere := c.outstanding.entries[7]
	pendingStill := c.pending[c.reassembler.Grid().CellIndex(1, 1)]
	c.mu.Unlock()
	if stillThere {
		t.Fatalf("expected entry abandoned after exhausting retry budget")
	}
	if pendingStill {
		t.Fatalf("expected pending cell reverted after abandonment")
	}
}

func TestTickResendsInitWhileConnecting(t *testing.T) {
	c, ep := testClient(t)
	c.mu.Lock()
	c.state = Connecting
	c.lastInitSend = time.Now().Add(-time.Second)
	c.mu.Unlock()

	c.tick()

	sent := ep.allSent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 INIT resend, got %d", len(sent))
	}
	p, _ := wire.ParsePacket(sent[0].data)
	if p.Header.MsgType != wire.MsgInit {
		t.Fatalf("expected INIT, got %v", p.Header.MsgType)
	}
}

func TestTickSendsKeepAliveWhilePlaying(t *testing.T) {
	c, ep := testClient(t)
	c.mu.Lock()
	c.state = Playing
	c.clientID = 1
	c.lastKeepAlive = time.Now().Add(-10 * time.Second)
	c.mu.Unlock()

	c.tick()

	sent := ep.allSent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 keep-alive INIT, got %d", len(sent))
	}
	p, _ := wire.ParsePacket(sent[0].data)
	if p.Header.MsgType != wire.MsgInit {
		t.Fatalf("expected INIT, got %v", p.Header.MsgType)
	}
}

func gameOverPacket(t *testing.T, winners []uint32, final []wire.Change) wire.Packet {
	t.Helper()
	body := wire.EncodeGameOver(wire.GameOverRecord{Winners: winners, FinalGrid: final})
	raw, err := wire.BuildPacket(wire.MsgGameOver, 9, 1, 0, body, true)
	if err != nil {
		t.Fatalf("build game_over: %v", err)
	}
	pkt, err := wire.ParsePacket(raw)
	if err != nil {
		t.Fatalf("parse game_over: %v", err)
	}
	return pkt
}

func TestGameOverIdempotentTransition(t *testing.T) {
	c, _ := testClient(t)
	c.mu.Lock()
	c.state = Playing
	c.mu.Unlock()

	pkt := gameOverPacket(t, []uint32{1}, []wire.Change{{Row: 0, Col: 0, Owner: 1}})
	c.handleGameOver(pkt)
	c.handleGameOver(pkt) // triplicate resend

	if c.State() != GameOver {
		t.Fatalf("expected GAME_OVER, got %v", c.State())
	}
	winners := c.Winners()
	if len(winners) != 1 || winners[0] != 1 {
		t.Fatalf("expected winners [1], got %v", winners)
	}
}
