package client

import (
	"net"
	"sync"
	"time"
)

type sentPacket struct {
	data []byte
	addr net.Addr
}

// fakeEndpoint is an in-memory transport.Endpoint double for driving the
// client without a real UDP socket.
type fakeEndpoint struct {
	mu      sync.Mutex
	inbound []sentPacket
	sent    []sentPacket
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{}
}

func (f *fakeEndpoint) inject(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, sentPacket{data: data})
}

func (f *fakeEndpoint) Send(data []byte, addr net.Addr) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, sentPacket{data: cp, addr: addr})
	return nil
}

func (f *fakeEndpoint) Receive(timeout time.Duration) ([]byte, net.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		return nil, nil, &timeoutErr{}
	}
	p := f.inbound[0]
	f.inbound = f.inbound[1:]
	return p.data, nil, nil
}

func (f *fakeEndpoint) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6000} }

func (f *fakeEndpoint) Close() error { return nil }

func (f *fakeEndpoint) allSent() []sentPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentPacket, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeEndpoint) lastSent() (sentPacket, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentPacket{}, false
	}
	return f.sent[len(f.sent)-1], true
}

type timeoutErr struct{}

func (e *timeoutErr) Error() string   { return "timeout" }
func (e *timeoutErr) Timeout() bool   { return true }
func (e *timeoutErr) Temporary() bool { return true }
