package wstransport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blipkit/blip/pkg/blip"
	"github.com/stretchr/testify/require"
)

type echoListener struct{}

func (echoListener) HandleRequest(req *blip.Message) {
	reply, err := req.NewResponse()
	if err != nil {
		return
	}
	_ = reply.SetBody(req.Body())
	_, _ = reply.Send()
}

func (echoListener) HandleResponse(*blip.Message) {}

func (echoListener) HandleError(*blip.Message) {}

func (echoListener) HandleClose(error) {}

func TestDialAndServerRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("/blip", NewServer(nil, blip.WithListener(echoListener{})))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/blip"
	conn, err := Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	req := conn.NewRequest()
	require.NoError(t, req.SetBody([]byte("hello")))
	placeholder, err := req.Send()
	require.NoError(t, err)
	require.NotNil(t, placeholder)

	replyCh := make(chan *blip.Message, 1)
	go func() { replyCh <- placeholder.Wait() }()

	select {
	case reply := <-replyCh:
		require.Equal(t, "hello", string(reply.Body()))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo reply")
	}
}
