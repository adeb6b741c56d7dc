package blip

import (
	"fmt"

	"github.com/pkg/errors"
)

// Fatal errors: discovered by the worker while decoding inbound frames.
// Any of these closes the connection (see Connection.fatal).
var (
	ErrBadVarint              = errors.New("blip: malformed varint")
	ErrBadProperties          = errors.New("blip: malformed property block")
	ErrBadCompression         = errors.New("blip: gzip stream error")
	ErrShortFrame             = errors.New("blip: frame truncated")
	ErrUnknownType            = errors.New("blip: unknown message type")
	ErrEmptyFrame             = errors.New("blip: empty frame")
	ErrDuplicateMessageNumber = errors.New("blip: duplicate message number")
	ErrTextMessageReceived    = errors.New("blip: text websocket message received")
	ErrTransport              = errors.New("blip: transport error")
	ErrConnectionClosed       = errors.New("blip: connection closed")
)

// Per-message (recoverable) errors.
var (
	ErrUnknownReplyNumber = errors.New("blip: reply number has no pending request")
	ErrBadErrorCode       = errors.New("blip: Error-Code property is not an integer")
)

// Caller-misuse errors, raised synchronously at the offending call.
var (
	ErrImmutable              = errors.New("blip: message is not mutable")
	ErrNotMine                = errors.New("blip: message does not belong to the caller")
	ErrWrongOwner             = errors.New("blip: message belongs to a different connection")
	ErrCannotReply            = errors.New("blip: message cannot be replied to")
	ErrNullField              = errors.New("blip: property key or value is nil")
	ErrBadProperty            = errors.New("blip: property key or value contains NUL")
	ErrCompressionUnsupported = errors.New("blip: sending compressed messages is not supported")
)

// BLIPError wraps an ERR-type Message as a Go error, surfacing its
// Error-Code and Error-Domain properties. Returned by Message.ToError.
type BLIPError struct {
	Code       int
	Domain     string
	Properties map[string]string
}

func (e *BLIPError) Error() string {
	if e.Domain != "" {
		return fmt.Sprintf("blip: %s %d", e.Domain, e.Code)
	}
	return fmt.Sprintf("blip: error %d", e.Code)
}
