package wstransport

import (
	"net"
	"net/http"

	"github.com/blipkit/blip/pkg/blip"
	"github.com/blipkit/blip/pkg/bliplog"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"
)

// gobwasTransport implements blip.Transport over a net.Conn already
// upgraded to WebSocket by gobwas/ws.
type gobwasTransport struct {
	conn net.Conn
}

func (t *gobwasTransport) Send(frame []byte) error {
	return wsutil.WriteServerBinary(t.conn, frame)
}

func (t *gobwasTransport) Close() error {
	return t.conn.Close()
}

// Server upgrades every incoming HTTP request to a BLIP connection and
// reports lifecycle events to a ServerListener. It implements
// http.Handler, so it plugs directly into net/http routing.
type Server struct {
	log      *bliplog.Log
	listener blip.ServerListener
	opts     []blip.Option
}

// NewServer returns a Server whose accepted connections are configured
// with opts and reported to listener.
func NewServer(listener blip.ServerListener, opts ...blip.Option) *Server {
	return &Server{log: bliplog.New("wstransport"), listener: listener, opts: opts}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	t := &gobwasTransport{conn: conn}
	bc := blip.NewConnection(t, s.opts...)
	if s.listener != nil {
		s.listener.ConnectionOpened(bc)
	}
	go s.readLoop(bc, conn)
}

func (s *Server) readLoop(bc *blip.Connection, conn net.Conn) {
	for {
		data, opCode, err := wsutil.ReadClientData(conn)
		if err != nil {
			bc.ReportTransportError(err)
			if s.listener != nil {
				s.listener.ConnectionClosed(bc, err)
			}
			return
		}
		switch opCode {
		case ws.OpBinary:
			bc.HandleBinary(data)
		case ws.OpText:
			bc.HandleText(data)
		case ws.OpClose:
			err := bc.Close()
			if s.listener != nil {
				s.listener.ConnectionClosed(bc, err)
			}
			return
		}
	}
}
