// Package blip implements the BLIP messaging protocol: bidirectional,
// multiplexed request/response exchange framed over a single ordered
// binary transport (typically a WebSocket). A Connection owns one
// worker goroutine that serializes every outbound frame write and every
// inbound frame's table mutation, so callers on other goroutines only
// ever interact with it through NewRequest, Send, and the
// ConnectionListener/ReplyListener callbacks it invokes.
package blip
