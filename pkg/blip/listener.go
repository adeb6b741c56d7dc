package blip

// ConnectionListener receives incoming requests and fatal connection
// errors. Implementations must return promptly from HandleRequest — slow
// handlers should hand the Message off to their own goroutine.
type ConnectionListener interface {
	// HandleRequest is called for every incoming MSG. The handler may
	// call req.NewResponse to reply, unless req.NoReply() is true.
	HandleRequest(req *Message)

	// HandleResponse is called for every completed incoming RPY, after
	// the request's own ReplyListener (if any) has already run.
	HandleResponse(reply *Message)

	// HandleError is called for every completed incoming ERR, after the
	// request's own ReplyListener (if any) has already run.
	HandleError(reply *Message)

	// HandleClose is called once, after the connection has fully closed,
	// with the error that caused the close (nil when the close was begun
	// by Connection.Close; a transport read failure, such as the peer
	// dropping the socket, arrives as an ErrTransport-wrapped error).
	HandleClose(err error)
}

// ReplyListener receives the eventual reply to a single outgoing request.
// Callers register one on the placeholder Message returned from Send by
// calling its OnReply method; sendMessage installs none itself.
type ReplyListener interface {
	HandleReply(reply *Message)
}

// ServerListener receives connection lifecycle events for a listening
// Transport acceptor (see wstransport.Server).
type ServerListener interface {
	ConnectionOpened(conn *Connection)
	ConnectionClosed(conn *Connection, err error)
}

// replyFunc adapts a plain function to ReplyListener.
type replyFunc func(*Message)

func (f replyFunc) HandleReply(reply *Message) { f(reply) }
