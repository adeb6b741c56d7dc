package blip

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcListener struct {
	onRequest  func(req *Message)
	onResponse func(reply *Message)
	onError    func(reply *Message)
	onClose    func(err error)
}

func (f *funcListener) HandleRequest(req *Message) {
	if f.onRequest != nil {
		f.onRequest(req)
	}
}

func (f *funcListener) HandleResponse(reply *Message) {
	if f.onResponse != nil {
		f.onResponse(reply)
	}
}

func (f *funcListener) HandleError(reply *Message) {
	if f.onError != nil {
		f.onError(reply)
	}
}

func (f *funcListener) HandleClose(err error) {
	if f.onClose != nil {
		f.onClose(err)
	}
}

func TestConnectionEchoRoundTrip(t *testing.T) {
	server := &funcListener{onRequest: func(req *Message) {
		reply, err := req.NewResponse()
		require.NoError(t, err)
		require.NoError(t, reply.SetBody(append([]byte("echo:"), req.Body()...)))
		_, err = reply.Send()
		require.NoError(t, err)
	}}
	client, srv := newLoopback(nil, server)
	defer client.Close()
	defer srv.Close()

	req := client.NewRequest()
	require.NoError(t, req.SetProfile("echo"))
	require.NoError(t, req.SetBody([]byte("hello")))

	placeholder, err := req.Send()
	require.NoError(t, err)
	require.NotNil(t, placeholder)

	reply := waitWithTimeout(t, placeholder)
	assert.Equal(t, RPY, reply.Type())
	assert.Equal(t, "echo:hello", string(reply.Body()))
}

func TestConnectionErrorReply(t *testing.T) {
	server := &funcListener{onRequest: func(req *Message) {
		reply, err := req.NewResponse()
		require.NoError(t, err)
		require.NoError(t, reply.SetError("HTTP", 404))
		_, err = reply.Send()
		require.NoError(t, err)
	}}
	client, srv := newLoopback(nil, server)
	defer client.Close()
	defer srv.Close()

	req := client.NewRequest()
	placeholder, err := req.Send()
	require.NoError(t, err)

	reply := waitWithTimeout(t, placeholder)
	assert.Equal(t, ERR, reply.Type())
	blipErr, ok := reply.ToError().(*BLIPError)
	require.True(t, ok)
	assert.Equal(t, 404, blipErr.Code)
	assert.Equal(t, "HTTP", blipErr.Domain)
}

func TestConnectionNoReplyReturnsNilPlaceholder(t *testing.T) {
	var received chan struct{} = make(chan struct{}, 1)
	server := &funcListener{onRequest: func(req *Message) {
		assert.True(t, req.NoReply())
		received <- struct{}{}
	}}
	client, srv := newLoopback(nil, server)
	defer client.Close()
	defer srv.Close()

	req := client.NewRequest()
	require.NoError(t, req.SetNoReply(true))
	placeholder, err := req.Send()
	require.NoError(t, err)
	assert.Nil(t, placeholder)

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the NOREPLY request")
	}
}

func TestConnectionMalformedFrameClosesConnection(t *testing.T) {
	closed := make(chan error, 1)
	listener := &funcListener{onClose: func(err error) { closed <- err }}
	conn := NewConnection(&fakeTransport{}, WithListener(listener))
	defer conn.Close()

	conn.HandleBinary([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, ErrBadVarint)
	case <-time.After(2 * time.Second):
		t.Fatal("connection never closed on malformed input")
	}
	assert.Equal(t, StateClosed, conn.State())
}

func TestConnectionRejectsReusedRequestNumber(t *testing.T) {
	closed := make(chan error, 1)
	listener := &funcListener{onClose: func(err error) { closed <- err }}
	conn := NewConnection(&fakeTransport{}, WithListener(listener))
	defer conn.Close()

	var frame []byte
	frame = appendVarint(frame, 1)
	frame = appendVarint(frame, uint32(MSG))
	frame = appendVarint(frame, 0)
	conn.HandleBinary(frame)
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, StateOpen, conn.State())

	conn.HandleBinary(frame)

	select {
	case err := <-closed:
		assert.ErrorIs(t, err, ErrDuplicateMessageNumber)
	case <-time.After(2 * time.Second):
		t.Fatal("connection never closed on reused request number")
	}
	assert.Equal(t, StateClosed, conn.State())
}

func TestBuildPassOrdersUrgentBeforeNonUrgent(t *testing.T) {
	conn := NewConnection(&fakeTransport{})
	defer conn.Close()

	a := &Message{conn: conn, number: 1}
	b := &Message{conn: conn, number: 2, flags: FlagUrgent}
	c := &Message{conn: conn, number: 3}

	conn.mu.Lock()
	conn.outQueue = []*Message{a, b, c}
	conn.mu.Unlock()

	pass := conn.buildPass()
	require.Len(t, pass, 3)
	assert.Same(t, b, pass[0])
	assert.Same(t, a, pass[1])
	assert.Same(t, c, pass[2])
}

func TestMaybeAckSendsOnceCadenceThresholdCrossed(t *testing.T) {
	transport := &fakeTransport{}
	conn := NewConnection(transport, WithAckWindow(128*1024, 4))
	defer conn.Close()

	m := newIncomingMessage(conn, 5, Flags(MSG))
	m.dec = &decodeState{}
	m.dec.bodyBuf.Write([]byte("abcd"))
	conn.maybeAck(m, ACKMSG)

	frames := transport.frames()
	require.Len(t, frames, 1)
	number, flags, rest, err := parseFrameHeader(frames[0])
	require.NoError(t, err)
	assert.Equal(t, uint32(5), number)
	assert.Equal(t, ACKMSG, flags.Type())
	bytesReceived, _, err := readVarint(rest)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), bytesReceived)
}

func TestReplyListenerFiresBeforeConnectionListenerHandleResponse(t *testing.T) {
	server := &funcListener{onRequest: func(req *Message) {
		reply, err := req.NewResponse()
		require.NoError(t, err)
		require.NoError(t, reply.SetBody([]byte("ok")))
		_, err = reply.Send()
		require.NoError(t, err)
	}}

	var order []string
	client := &funcListener{onResponse: func(*Message) {
		order = append(order, "connectionListener")
	}}
	clientConn, srv := newLoopback(client, server)
	defer clientConn.Close()
	defer srv.Close()

	req := clientConn.NewRequest()
	placeholder, err := req.Send()
	require.NoError(t, err)
	placeholder.OnReply(replyFunc(func(*Message) {
		order = append(order, "replyListener")
	}))

	_ = waitWithTimeout(t, placeholder)
	require.Eventually(t, func() bool { return len(order) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"replyListener", "connectionListener"}, order)
}

func waitWithTimeout(t *testing.T, placeholder *Message) *Message {
	t.Helper()
	done := make(chan *Message, 1)
	go func() { done <- placeholder.Wait() }()
	select {
	case m := <-done:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
		return nil
	}
}
