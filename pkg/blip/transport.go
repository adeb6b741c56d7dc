package blip

// Transport is the boundary a Connection sends frames through and
// receives frames from. wstransport.Dial and wstransport.Server produce
// implementations backed by a WebSocket; tests can fake it directly.
//
// A Transport delivers inbound binary messages to the Connection by
// calling its HandleBinary method from whatever goroutine the underlying
// socket read loop runs on — Connection itself serializes that onto its
// single worker goroutine, so Transport implementations need no locking
// of their own around delivery.
type Transport interface {
	// Send writes one complete frame as a binary WebSocket message.
	Send(frame []byte) error
	// Close closes the underlying socket.
	Close() error
}
