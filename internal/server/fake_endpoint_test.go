package server

import (
	"net"
	"sync"
	"time"
)

type sentPacket struct {
	data []byte
	addr net.Addr
}

// fakeEndpoint is an in-memory transport.Endpoint double: Receive drains
// an injected queue, Send records what would have gone on the wire.
type fakeEndpoint struct {
	mu      sync.Mutex
	inbound []sentPacket
	sent    []sentPacket
	closed  bool
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{}
}

func (f *fakeEndpoint) inject(data []byte, addr net.Addr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, sentPacket{data: data, addr: addr})
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
	return p.data, p.addr, nil
}

func (f *fakeEndpoint) LocalAddr() net.Addr { return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5000} }

func (f *fakeEndpoint) Close() error {
	f.closed = true
	return nil
}

func (f *fakeEndpoint) sentTo(addr net.Addr) []sentPacket {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentPacket
	for _, p := range f.sent {
		if p.addr.String() == addr.String() {
			out = append(out, p)
		}
	}
	return out
}

type timeoutErr struct{}

func (e *timeoutErr) Error() string   { return "timeout" }
func (e *timeoutErr) Timeout() bool   { return true }
func (e *timeoutErr) Temporary() bool { return true }
