package blip

import (
	"bytes"
	"compress/gzip"
)

// encodeState is the per-outgoing-message cursor nextFrame advances. Only
// the connection's worker goroutine touches it.
type encodeState struct {
	started  bool
	payload  []byte // body, or gzip(body) when COMPRESSED is set
	cursor   int
	finished bool

	// Flow control, updated by the worker goroutine only: sentBytes tracks
	// cumulative frame bytes written for this message, ackedBytes the most
	// recent bytes-received value from the peer's ACKMSG/ACKRPY.
	sentBytes  uint32
	ackedBytes uint32
}

func gzipCompress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		return nil, ErrBadCompression
	}
	if err := w.Close(); err != nil {
		return nil, ErrBadCompression
	}
	return buf.Bytes(), nil
}

// nextFrame returns the next raw frame to send for m, or nil once the
// message has been fully sent. maxLen bounds how many payload bytes
// (property block on the first call aside) go into this frame.
//
// The COMPRESSED flag, when set, compresses the whole body up front as a
// single gzip member rather than flushing the deflate stream frame by
// frame; this is the documented simpler variant the format allows — the
// receiver only needs to gunzip once reassembly completes, and frame
// boundaries carry no compression-relevant state of their own.
func (m *Message) nextFrame(maxLen int) ([]byte, error) {
	st := m.enc
	if st == nil {
		st = &encodeState{}
		m.enc = st
	}
	if st.finished {
		return nil, nil
	}

	var header []byte
	if !st.started {
		st.started = true

		propBlock, err := encodePropertyBlock(m.properties)
		if err != nil {
			return nil, err
		}

		if m.flags.Has(FlagCompressed) {
			compressed, err := gzipCompress(m.body)
			if err != nil {
				return nil, err
			}
			st.payload = compressed
		} else {
			st.payload = m.body
		}

		header = appendVarint(header, m.number)
		header = appendVarint(header, uint32(m.flags|FlagMoreComing))
		header = appendVarint(header, uint32(len(propBlock)))
		header = append(header, propBlock...)
	} else {
		header = appendVarint(header, m.number)
		header = appendVarint(header, uint32(m.flags|FlagMoreComing))
	}

	remaining := st.payload[st.cursor:]
	chunk := remaining
	more := false
	if len(chunk) > maxLen {
		chunk = chunk[:maxLen]
		more = true
	}
	st.cursor += len(chunk)
	st.finished = !more

	if !more {
		// Patch the MORECOMING bit we optimistically set above.
		header = clearMoreComing(header)
	}

	frame := append(header, chunk...)
	st.sentBytes += uint32(len(frame))
	return frame, nil
}

// bytesInFlight returns how many sent-but-unacked bytes this message has
// outstanding. Only meaningful once nextFrame has been called at least
// once; flow control treats an unstarted message as having none.
func (st *encodeState) bytesInFlight() uint32 {
	if st.sentBytes <= st.ackedBytes {
		return 0
	}
	return st.sentBytes - st.ackedBytes
}

// clearMoreComing rewrites the flags varint's MORECOMING bit to 0 in an
// already-built header. Flags always fit in a single varint byte pair at
// most, and MORECOMING (0x40) never crosses a byte boundary in the base-128
// encoding of a one-byte flags value, so this only ever touches the first
// byte of the flags varint, header[n] where n is the number varint's length.
func clearMoreComing(header []byte) []byte {
	// number varint occupies header[0:n]; flags varint starts right after.
	_, n, err := readVarint(header)
	if err != nil {
		return header
	}
	if n >= len(header) {
		return header
	}
	header[n] &^= byte(FlagMoreComing)
	return header
}
