package blip

import (
	"bytes"
	"compress/gzip"
	"io"
)

// decodeState accumulates an incoming message's raw payload bytes across
// frames until MORECOMING clears. Only the worker goroutine touches it.
type decodeState struct {
	bodyBuf   bytes.Buffer
	complete  bool
	lastAcked uint32 // bytes already covered by the most recent ACK sent
}

func newIncomingMessage(conn *Connection, number uint32, flags Flags) *Message {
	return &Message{
		conn:      conn,
		number:    number,
		flags:     flags &^ FlagMoreComing,
		isMine:    false,
		isMutable: false,
	}
}

// feedFirstFrame parses the propertiesLength-prefixed property block off
// the start of rest (the frame bytes following number and flags) and
// stashes whatever payload bytes follow it.
func (m *Message) feedFirstFrame(rest []byte, moreComing bool) error {
	propLen, n, err := readVarint(rest)
	if err != nil {
		return err
	}
	rest = rest[n:]
	if len(rest) < int(propLen) {
		return ErrShortFrame
	}
	props, err := decodePropertyBlock(rest[:propLen])
	if err != nil {
		return err
	}
	m.properties = props
	m.dec = &decodeState{}
	m.dec.bodyBuf.Write(rest[propLen:])
	if !moreComing {
		return m.finishDecode()
	}
	return nil
}

// feedContinuationFrame appends a later frame's payload bytes to a
// message whose property block has already been parsed.
func (m *Message) feedContinuationFrame(rest []byte, moreComing bool) error {
	if m.dec == nil {
		return ErrShortFrame
	}
	m.dec.bodyBuf.Write(rest)
	if !moreComing {
		return m.finishDecode()
	}
	return nil
}

func (m *Message) finishDecode() error {
	payload := m.dec.bodyBuf.Bytes()
	if m.flags.Has(FlagCompressed) {
		body, err := gzipDecompress(payload)
		if err != nil {
			return err
		}
		m.body = body
	} else {
		m.body = append([]byte(nil), payload...)
	}
	m.dec.complete = true
	return nil
}

func (m *Message) decodeComplete() bool { return m.dec != nil && m.dec.complete }

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrBadCompression
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrBadCompression
	}
	return out, nil
}
