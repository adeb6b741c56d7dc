package blip

import (
	"fmt"
	"strconv"
	"strings"
)

// Message is a single BLIP request, response, or error. A Message is
// mutable from creation until it is handed to Send or NewResponse returns
// it as a reply skeleton still owned by the caller; once enqueued for
// transmission it freezes and every mutator returns ErrImmutable.
//
// Encoder/decoder state (enc, dec) is touched only by the owning
// Connection's single worker goroutine: the creator's goroutine never
// races with it because ownership transfers at the moment a Message is
// enqueued (sendMessage, which runs on the caller's goroutine under the
// connection's lock and freezes the message) or first reassembled from
// inbound frames (registered in inRequests/inReplies, inside the worker).
type Message struct {
	conn       *Connection
	number     uint32
	flags      Flags
	properties map[string]string
	body       []byte

	isMine    bool
	isMutable bool

	repliedTo bool // NewResponse already called on this incoming request

	listener ReplyListener // set when this Message is a pending-reply placeholder
	replyCh  chan *Message // non-nil only on a pending-reply placeholder

	enc *encodeState
	dec *decodeState
}

// OnReply registers l to be called with the eventual reply on a
// placeholder Message returned by Send. It is meaningless on any other
// Message.
func (m *Message) OnReply(l ReplyListener) { m.listener = l }

// Wait blocks until the placeholder Message returned by Send has been
// filled in with the peer's reply (or with itself, unfilled, if the
// connection closes first). Calling Wait on a Message that is not such a
// placeholder returns it immediately.
func (m *Message) Wait() *Message {
	if m.replyCh == nil {
		return m
	}
	return <-m.replyCh
}

// Connection returns the connection this message belongs to or was
// received on.
func (m *Message) Connection() *Connection { return m.conn }

// Number is the message's stream number, shared by a request and its reply.
func (m *Message) Number() uint32 { return m.number }

// Type returns the message's MSG/RPY/ERR type.
func (m *Message) Type() MessageType { return m.flags.Type() }

// IsMine reports whether this process created the message (as opposed to
// having received it from the peer).
func (m *Message) IsMine() bool { return m.isMine }

// IsMutable reports whether the message's properties and body can still
// be changed.
func (m *Message) IsMutable() bool { return m.isMutable }

// Urgent reports whether the URGENT flag is set.
func (m *Message) Urgent() bool { return m.flags.Has(FlagUrgent) }

// NoReply reports whether the NOREPLY flag is set.
func (m *Message) NoReply() bool { return m.flags.Has(FlagNoReply) }

// Compressed reports whether the COMPRESSED flag is set.
func (m *Message) Compressed() bool { return m.flags.Has(FlagCompressed) }

// Property returns the value of key, and whether it was present.
func (m *Message) Property(key string) (string, bool) {
	v, ok := m.properties[key]
	return v, ok
}

// HasProperty reports whether key is present.
func (m *Message) HasProperty(key string) bool {
	_, ok := m.properties[key]
	return ok
}

// Properties returns a copy of the message's property set.
func (m *Message) Properties() map[string]string {
	out := make(map[string]string, len(m.properties))
	for k, v := range m.properties {
		out[k] = v
	}
	return out
}

// Body returns the message's body bytes. The caller must not modify the
// returned slice.
func (m *Message) Body() []byte { return m.body }

// Profile is a shortcut for Property("Profile").
func (m *Message) Profile() string {
	v, _ := m.Property("Profile")
	return v
}

// ContentType is a shortcut for Property("Content-Type").
func (m *Message) ContentType() string {
	v, _ := m.Property("Content-Type")
	return v
}

func (m *Message) checkMutable() error {
	if !m.isMutable {
		return ErrImmutable
	}
	if !m.isMine {
		return ErrNotMine
	}
	return nil
}

// SetProperty sets key to value. Neither may contain a NUL byte.
func (m *Message) SetProperty(key, value string) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if strings.IndexByte(key, 0) >= 0 || strings.IndexByte(value, 0) >= 0 {
		return ErrBadProperty
	}
	if m.properties == nil {
		m.properties = make(map[string]string)
	}
	m.properties[key] = value
	return nil
}

// RemoveProperty deletes key if present.
func (m *Message) RemoveProperty(key string) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	delete(m.properties, key)
	return nil
}

// ClearProperties removes every property from the message.
func (m *Message) ClearProperties() error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.properties = make(map[string]string)
	return nil
}

// CopyProperties replaces the message's entire property set with a copy of
// props. Neither a key nor a value in props may contain a NUL byte.
func (m *Message) CopyProperties(props map[string]string) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	copied := make(map[string]string, len(props))
	for k, v := range props {
		if strings.IndexByte(k, 0) >= 0 || strings.IndexByte(v, 0) >= 0 {
			return ErrBadProperty
		}
		copied[k] = v
	}
	m.properties = copied
	return nil
}

// SetBody replaces the message body.
func (m *Message) SetBody(body []byte) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.body = body
	return nil
}

// SetProfile is a shortcut for SetProperty("Profile", profile).
func (m *Message) SetProfile(profile string) error { return m.SetProperty("Profile", profile) }

// SetContentType is a shortcut for SetProperty("Content-Type", contentType).
func (m *Message) SetContentType(contentType string) error {
	return m.SetProperty("Content-Type", contentType)
}

// SetUrgent sets or clears the URGENT flag.
func (m *Message) SetUrgent(urgent bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.setFlag(FlagUrgent, urgent)
	return nil
}

// SetNoReply sets or clears the NOREPLY flag. Only meaningful on a
// request; ignored by the peer on a reply.
func (m *Message) SetNoReply(noReply bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.setFlag(FlagNoReply, noReply)
	return nil
}

// SetCompressed sets or clears the COMPRESSED flag.
func (m *Message) SetCompressed(compressed bool) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.setFlag(FlagCompressed, compressed)
	return nil
}

func (m *Message) setFlag(bit Flags, on bool) {
	if on {
		m.flags |= bit
	} else {
		m.flags &^= bit
	}
}

// Send enqueues the message for transmission on its connection, freezing
// it. For a request without NOREPLY set, it returns a placeholder Message
// that will be populated and unblocked once the peer's reply arrives.
func (m *Message) Send() (*Message, error) {
	if !m.isMine {
		return nil, ErrNotMine
	}
	if m.conn == nil {
		return nil, ErrWrongOwner
	}
	return m.conn.sendMessage(m)
}

// NewResponse creates the reply skeleton for an incoming request. It may
// be called at most once per request, and not on a NOREPLY request.
func (m *Message) NewResponse() (*Message, error) {
	if m.isMine || m.Type() != MSG {
		return nil, ErrCannotReply
	}
	if m.flags.Has(FlagNoReply) {
		return nil, ErrCannotReply
	}
	if m.repliedTo {
		return nil, ErrCannotReply
	}
	m.repliedTo = true
	return &Message{
		conn:       m.conn,
		number:     m.number,
		flags:      Flags(RPY),
		properties: make(map[string]string),
		isMine:     true,
		isMutable:  true,
	}, nil
}

// SetError turns this (still-mutable, outgoing) reply into an ERR message
// carrying the given domain and code.
func (m *Message) SetError(domain string, code int) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.flags = m.flags.withType(ERR)
	if err := m.SetProperty("Error-Domain", domain); err != nil {
		return err
	}
	return m.SetProperty("Error-Code", strconv.Itoa(code))
}

// ToError converts an ERR-type message into a *BLIPError. It returns nil
// if the message is not an error.
func (m *Message) ToError() error {
	if m.Type() != ERR {
		return nil
	}
	code := 0
	if v, ok := m.Property("Error-Code"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ErrBadErrorCode
		}
		code = n
	}
	domain, _ := m.Property("Error-Domain")
	return &BLIPError{Code: code, Domain: domain, Properties: m.Properties()}
}

// Equal reports whether m and other are the same message: same connection
// and number. Messages from different connections are never equal, even
// if their numbers coincide.
func (m *Message) Equal(other *Message) bool {
	if other == nil || m.conn != other.conn {
		return false
	}
	return m.number == other.number
}

func (m *Message) String() string {
	return fmt.Sprintf("Message[#%d %s profile=%q urgent=%t noreply=%t len(body)=%d]",
		m.number, m.Type(), m.Profile(), m.Urgent(), m.NoReply(), len(m.body))
}
