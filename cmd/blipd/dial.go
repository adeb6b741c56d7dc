package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/blipkit/blip/pkg/blip"
	"github.com/blipkit/blip/pkg/wstransport"
	"github.com/spf13/cobra"
)

var dialCmd = &cobra.Command{
	Use:   "dial <url> <profile> [body]",
	Short: "Connect to a BLIP peer, send one request, and print the reply",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, profile := args[0], args[1]
		var body []byte
		if len(args) == 3 {
			body = []byte(args[2])
		}

		conn, err := wstransport.Dial(url, http.Header{})
		if err != nil {
			return err
		}
		defer conn.Close()

		req := conn.NewRequest()
		if err := req.SetProfile(profile); err != nil {
			return err
		}
		if err := req.SetBody(body); err != nil {
			return err
		}

		placeholder, err := req.Send()
		if err != nil {
			return err
		}
		if placeholder == nil {
			return nil
		}

		replyCh := make(chan *blip.Message, 1)
		go func() { replyCh <- placeholder.Wait() }()

		select {
		case reply := <-replyCh:
			if blipErr := reply.ToError(); blipErr != nil {
				return blipErr
			}
			fmt.Println(string(reply.Body()))
			return nil
		case <-time.After(10 * time.Second):
			return fmt.Errorf("blipd dial: timed out waiting for reply")
		}
	},
}
