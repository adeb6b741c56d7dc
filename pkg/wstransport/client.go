// Package wstransport adapts blip.Transport to a real WebSocket: Dial for
// the client side (gorilla/websocket) and Server for the accepting side
// (gobwas/ws, which does its own upgrade and framing without pulling in
// gorilla's server-side handler machinery).
package wstransport

import (
	"context"
	"net/http"
	"time"

	"github.com/blipkit/blip/pkg/blip"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const pingInterval = 30 * time.Second

// gorillaTransport implements blip.Transport over a client-dialed
// gorilla/websocket connection.
type gorillaTransport struct {
	ws *websocket.Conn
}

func (t *gorillaTransport) Send(frame []byte) error {
	return t.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (t *gorillaTransport) Close() error {
	return t.ws.Close()
}

// Dial opens a WebSocket to url and returns the BLIP connection running
// on top of it. Two goroutines run for the connection's lifetime — one
// reading inbound frames, one sending keepalive pings — joined by an
// errgroup so either one exiting tears down the other.
func Dial(url string, header http.Header, opts ...blip.Option) (*blip.Connection, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, errors.Wrap(err, "wstransport: dial")
	}
	t := &gorillaTransport{ws: ws}
	conn := blip.NewConnection(t, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return clientReadLoop(egCtx, conn, ws) })
	eg.Go(func() error { return pingLoop(egCtx, ws) })
	go func() {
		_ = eg.Wait()
		cancel()
	}()

	return conn, nil
}

func clientReadLoop(ctx context.Context, conn *blip.Connection, ws *websocket.Conn) error {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			conn.ReportTransportError(err)
			return err
		}
		switch msgType {
		case websocket.BinaryMessage:
			conn.HandleBinary(data)
		case websocket.TextMessage:
			conn.HandleText(data)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

func pingLoop(ctx context.Context, ws *websocket.Conn) error {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}
