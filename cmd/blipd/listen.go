package main

import (
	"context"
	"net/http"
	"time"

	"github.com/blipkit/blip/pkg/blip"
	"github.com/blipkit/blip/pkg/wstransport"
	"github.com/judwhite/go-svc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Accept BLIP-over-WebSocket connections and echo requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		path, _ := cmd.Flags().GetString("path")
		viper.Set("listen.addr", addr)
		viper.Set("listen.path", path)
		return svc.Run(&listenService{})
	},
}

func init() {
	listenCmd.Flags().String("addr", ":4984", "address to listen on")
	listenCmd.Flags().String("path", "/blip", "HTTP path to accept WebSocket upgrades on")
}

// listenService adapts the listen command to go-svc's Init/Start/Stop
// lifecycle so the process can be managed as a service by an external
// supervisor as well as run directly from the CLI.
type listenService struct {
	server *http.Server
}

func (s *listenService) Init(env svc.Environment) error {
	return nil
}

func (s *listenService) Start() error {
	addr := viper.GetString("listen.addr")
	path := viper.GetString("listen.path")

	mux := http.NewServeMux()
	mux.Handle(path, wstransport.NewServer(echoServerListener{}, blip.WithListener(echoServer{})))
	s.server = &http.Server{Addr: addr, Handler: mux}

	log.Info("listening", zap.String("addr", addr), zap.String("path", path))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server exited", zap.Error(err))
		}
	}()
	return nil
}

func (s *listenService) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
