package main

import (
	"github.com/blipkit/blip/pkg/blip"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// echoServer answers every "echo" profile request with its body
// unchanged, stamping a fresh Echo-Id on the reply, and rejects any other
// profile with a 404.
type echoServer struct{}

func (echoServer) HandleRequest(req *blip.Message) {
	if req.NoReply() {
		log.Info("received NOREPLY request", zap.String("profile", req.Profile()))
		return
	}
	reply, err := req.NewResponse()
	if err != nil {
		log.Error("building response", zap.Error(err))
		return
	}
	if req.Profile() != "echo" {
		if err := reply.SetError("HTTP", 404); err != nil {
			log.Error("setting error reply", zap.Error(err))
		}
		if _, err := reply.Send(); err != nil {
			log.Error("sending error reply", zap.Error(err))
		}
		return
	}
	_ = reply.SetProperty("Echo-Id", uuid.NewString())
	_ = reply.SetContentType(req.ContentType())
	_ = reply.SetBody(req.Body())
	if _, err := reply.Send(); err != nil {
		log.Error("sending echo reply", zap.Error(err))
	}
}

func (echoServer) HandleResponse(reply *blip.Message) {
	log.Info("received response", zap.Uint32("number", reply.Number()))
}

func (echoServer) HandleError(reply *blip.Message) {
	log.Warn("received error", zap.Error(reply.ToError()))
}

func (echoServer) HandleClose(err error) {
	if err != nil {
		log.Warn("connection closed", zap.Error(err))
	}
}

// echoServerListener implements blip.ServerListener by logging each
// accepted and closed connection; the echoServer handling requests is
// attached to every accepted connection through the Server's options.
type echoServerListener struct{}

func (echoServerListener) ConnectionOpened(conn *blip.Connection) {
	log.Info("connection opened")
}

func (echoServerListener) ConnectionClosed(conn *blip.Connection, err error) {
	if err != nil {
		log.Warn("connection closed", zap.Error(err))
	} else {
		log.Info("connection closed")
	}
}
