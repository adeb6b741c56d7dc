package blip

import "sync"

// fakeTransport records every frame sent through it. onSend, if set, is
// invoked synchronously from Send (useful for wiring a loopback pair).
type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	onSend func(frame []byte)
}

func (f *fakeTransport) Send(frame []byte) error {
	cp := append([]byte(nil), frame...)
	f.mu.Lock()
	f.sent = append(f.sent, cp)
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend(cp)
	}
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.sent...)
}

// newLoopback wires two connections' transports directly into each
// other's HandleBinary, simulating a live WebSocket between them.
func newLoopback(la, lb ConnectionListener) (a, b *Connection) {
	ta := &fakeTransport{}
	tb := &fakeTransport{}
	a = NewConnection(ta, WithListener(la))
	b = NewConnection(tb, WithListener(lb))
	ta.onSend = func(frame []byte) { b.HandleBinary(frame) }
	tb.onSend = func(frame []byte) { a.HandleBinary(frame) }
	return a, b
}
