package blip

import (
	"sync"
	"sync/atomic"

	"github.com/blipkit/blip/pkg/bliplog"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func zapErr(err error) zap.Field             { return zap.Error(err) }
func zapUint32(k string, v uint32) zap.Field { return zap.Uint32(k, v) }

// State is a Connection's position in its Open -> Closing -> Closed
// lifecycle. Once Closed a connection never reopens.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection multiplexes BLIP requests and replies over a single
// Transport. Every Transport.Send call and all inbound reassembly happen
// on one worker goroutine (run); everything else — NewRequest,
// sendMessage (which appends to outQueue and pendingReplies), HandleBinary
// — may be called concurrently from any goroutine and only ever touches
// the shared state through c.mu or the channel handoffs into that worker.
type Connection struct {
	log       *bliplog.Log
	transport Transport
	listener  ConnectionListener
	opts      *Options

	nextNumber uint32 // atomic

	mu                  sync.Mutex
	state               State
	outQueue            []*Message
	inRequests          map[uint32]*Message // incoming MSG being reassembled, by number
	inReplies           map[uint32]*Message // incoming RPY/ERR being reassembled, by number
	pendingReplies      map[uint32]*Message // placeholders for our outgoing requests, by number
	seenRequestNumbers  map[uint32]struct{} // every incoming MSG number ever started, completed or not
	closeErr            error

	inbox       chan []byte
	wake        chan struct{}
	closeSignal chan struct{}
	stopped     chan struct{}
	closeOnce   sync.Once
}

// NewConnection starts a Connection's worker goroutine and begins
// exchanging frames over transport.
func NewConnection(transport Transport, opts ...Option) *Connection {
	o := NewOptions()
	for _, opt := range opts {
		opt(o)
	}
	c := &Connection{
		log:            bliplog.New("blip"),
		transport:      transport,
		listener:       o.Listener,
		opts:           o,
		inRequests:     make(map[uint32]*Message),
		inReplies:      make(map[uint32]*Message),
		pendingReplies: make(map[uint32]*Message),
		inbox:          make(chan []byte, o.InboxSize),
		wake:           make(chan struct{}, 1),
		closeSignal:    make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	go c.run()
	return c
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NewRequest allocates a fresh, mutable request Message owned by this
// connection. Set its Profile/properties/body, then call Send.
func (c *Connection) NewRequest() *Message {
	number := atomic.AddUint32(&c.nextNumber, 1)
	return &Message{
		conn:       c,
		number:     number,
		flags:      Flags(MSG),
		properties: make(map[string]string),
		isMine:     true,
		isMutable:  true,
	}
}

// sendMessage freezes m and enqueues it for the worker to send. For a
// request without NOREPLY, it registers and returns a placeholder Message
// that will be filled in and returned to callers awaiting the reply.
func (c *Connection) sendMessage(m *Message) (*Message, error) {
	if m.conn != c {
		return nil, ErrWrongOwner
	}
	if !m.isMine || !m.isMutable {
		return nil, ErrImmutable
	}

	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	m.isMutable = false

	var placeholder *Message
	if m.Type() == MSG && !m.flags.Has(FlagNoReply) {
		placeholder = &Message{conn: c, number: m.number, isMine: false, isMutable: false, replyCh: make(chan *Message, 1)}
		c.pendingReplies[m.number] = placeholder
	}
	c.outQueue = append(c.outQueue, m)
	c.mu.Unlock()

	c.notifyWake()
	return placeholder, nil
}

func (c *Connection) notifyWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// HandleBinary delivers one inbound binary WebSocket message (one BLIP
// frame) to the connection. Safe to call from the transport's own read
// goroutine; frames are queued and processed on the worker.
func (c *Connection) HandleBinary(data []byte) {
	select {
	case c.inbox <- data:
	case <-c.stopped:
	}
}

// HandleText reports the fatal error a text WebSocket message represents;
// BLIP only ever sends binary frames.
func (c *Connection) HandleText(data []byte) {
	c.fatal(ErrTextMessageReceived)
}

// Close begins an orderly shutdown: no further sends are accepted, and
// the worker keeps running send passes over what is already queued until
// a pass sends nothing, then exits.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state == StateOpen {
			c.state = StateClosing
		}
		c.mu.Unlock()
		close(c.closeSignal)
	})
	<-c.stopped
	return c.closeErr
}

// ReportTransportError lets a Transport implementation signal a fatal
// read or write failure, closing the connection with err.
func (c *Connection) ReportTransportError(err error) {
	c.fatal(errors.Wrap(ErrTransport, err.Error()))
}

func (c *Connection) fatal(err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	c.closeErr = err
	c.mu.Unlock()
	c.log.Error("connection fatal error", zapErr(err))
	c.closeOnce.Do(func() { close(c.closeSignal) })
}

// run is the connection's single worker goroutine: it drains inbound
// frames, drains the outbound queue, and is the only place Transport.Send
// or any table mutation happens.
func (c *Connection) run() {
	defer c.shutdown()
	for {
		select {
		case data := <-c.inbox:
			if err := c.handleFrame(data); err != nil {
				c.mu.Lock()
				c.state = StateClosed
				c.closeErr = err
				c.mu.Unlock()
				return
			}
		case <-c.wake:
		case <-c.closeSignal:
			c.drainRemaining()
			return
		}

		for {
			sent, err := c.sendPass()
			if err != nil {
				c.mu.Lock()
				c.state = StateClosed
				c.closeErr = err
				c.mu.Unlock()
				return
			}
			if !sent {
				break
			}
			// Service any inbound frames queued while we were sending
			// rather than holding the transport busy for an entire
			// large message.
			select {
			case data := <-c.inbox:
				if err := c.handleFrame(data); err != nil {
					c.mu.Lock()
					c.state = StateClosed
					c.closeErr = err
					c.mu.Unlock()
					return
				}
			default:
			}
		}
	}
}

func (c *Connection) drainRemaining() {
	for {
		sent, err := c.sendPass()
		if err != nil || !sent {
			return
		}
	}
}

func (c *Connection) shutdown() {
	c.mu.Lock()
	c.state = StateClosed
	err := c.closeErr
	pending := make([]*Message, 0, len(c.pendingReplies))
	for _, p := range c.pendingReplies {
		pending = append(pending, p)
	}
	c.mu.Unlock()

	_ = c.transport.Close()

	for _, p := range pending {
		if p.listener != nil {
			p.listener.HandleReply(p)
		}
		if p.replyCh != nil {
			select {
			case p.replyCh <- p:
			default:
			}
		}
	}
	if c.listener != nil {
		c.listener.HandleClose(err)
	}
	close(c.stopped)
}

// handleFrame parses and dispatches one inbound frame. A returned error
// is always fatal.
func (c *Connection) handleFrame(data []byte) error {
	number, flags, rest, err := parseFrameHeader(data)
	if err != nil {
		return err
	}
	moreComing := flags.Has(FlagMoreComing)
	msgType := flags.Type()

	switch msgType {
	case MSG:
		return c.handleIncomingRequest(number, flags, rest, moreComing)
	case RPY, ERR:
		return c.handleIncomingReply(number, flags, rest, moreComing)
	case ACKMSG, ACKRPY:
		return c.handleAck(number, msgType, rest)
	default:
		return errors.Wrapf(ErrUnknownType, "type=%d", msgType)
	}
}

func (c *Connection) handleIncomingRequest(number uint32, flags Flags, rest []byte, moreComing bool) error {
	c.mu.Lock()
	m, inProgress := c.inRequests[number]
	if !inProgress {
		if _, seen := c.seenRequestNumbers[number]; seen {
			c.mu.Unlock()
			return ErrDuplicateMessageNumber
		}
		if c.seenRequestNumbers == nil {
			c.seenRequestNumbers = make(map[uint32]struct{})
		}
		c.seenRequestNumbers[number] = struct{}{}
		m = newIncomingMessage(c, number, flags)
		c.inRequests[number] = m
	}
	c.mu.Unlock()

	if err := c.feed(m, rest, moreComing, !inProgress); err != nil {
		return err
	}
	c.maybeAck(m, ACKMSG)
	if !m.decodeComplete() {
		return nil
	}

	c.mu.Lock()
	delete(c.inRequests, number)
	c.mu.Unlock()

	if c.listener != nil {
		c.listener.HandleRequest(m)
	}
	return nil
}

func (c *Connection) handleIncomingReply(number uint32, flags Flags, rest []byte, moreComing bool) error {
	c.mu.Lock()
	m, inProgress := c.inReplies[number]
	first := !inProgress
	if first {
		_, ok := c.pendingReplies[number]
		if !ok {
			c.mu.Unlock()
			c.log.Warn("reply to unknown request", zapUint32("number", number))
			return nil
		}
		m = newIncomingMessage(c, number, flags)
		c.inReplies[number] = m
	}
	c.mu.Unlock()

	if err := c.feed(m, rest, moreComing, first); err != nil {
		return err
	}
	c.maybeAck(m, ACKRPY)
	if !m.decodeComplete() {
		return nil
	}

	c.mu.Lock()
	delete(c.inReplies, number)
	placeholder := c.pendingReplies[number]
	delete(c.pendingReplies, number)
	c.mu.Unlock()

	if placeholder != nil {
		m.listener = placeholder.listener
		if placeholder.listener != nil {
			placeholder.listener.HandleReply(m)
		}
		select {
		case placeholder.replyCh <- m:
		default:
		}
	}
	if c.listener != nil {
		if m.Type() == ERR {
			c.listener.HandleError(m)
		} else {
			c.listener.HandleResponse(m)
		}
	}
	return nil
}

func (c *Connection) feed(m *Message, rest []byte, moreComing, first bool) error {
	if first {
		return m.feedFirstFrame(rest, moreComing)
	}
	return m.feedContinuationFrame(rest, moreComing)
}

// maybeAck sends an ACKMSG/ACKRPY once bytesReceived has advanced by a
// full AckChunk since the last one, or once decoding has completed —
// whichever comes first, per the 128 KiB window / 32 KiB cadence chosen
// in the resolved open questions.
func (c *Connection) maybeAck(m *Message, ackType MessageType) {
	if m.dec == nil {
		return
	}
	total := uint32(m.dec.bodyBuf.Len())
	if total == 0 {
		return
	}
	complete := m.decodeComplete()
	if !complete && total-m.dec.lastAcked < c.opts.AckChunk {
		return
	}
	m.dec.lastAcked = total
	c.sendAck(m.number, ackType, total)
}

func (c *Connection) handleAck(number uint32, ackType MessageType, rest []byte) error {
	bytesReceived, _, err := readVarint(rest)
	if err != nil {
		return err
	}
	wantType := MSG
	if ackType == ACKRPY {
		wantType = RPY // ERR shares RPY's flow-control accounting
	}
	c.mu.Lock()
	var target *Message
	for _, m := range c.outQueue {
		if m.number == number && (m.Type() == wantType || (wantType == RPY && m.Type() == ERR)) {
			target = m
			break
		}
	}
	c.mu.Unlock()
	if target != nil && target.enc != nil {
		target.enc.ackedBytes = bytesReceived
	}
	return nil
}

func (c *Connection) sendAck(number uint32, ackType MessageType, bytesReceived uint32) {
	var frame []byte
	frame = appendVarint(frame, number)
	frame = appendVarint(frame, uint32(ackType))
	frame = appendVarint(frame, bytesReceived)
	if err := c.transport.Send(frame); err != nil {
		c.fatal(errors.Wrap(ErrTransport, err.Error()))
	}
}
