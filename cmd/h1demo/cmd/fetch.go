// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package cmd

import (
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/packetflow/h1proto"
)

var (
	fetchAddr   string
	fetchTarget string
	fetchMethod string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Send one request to a server and print the response",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runFetch(fetchAddr, fetchMethod, fetchTarget); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
	Example: "# h1demo fetch --addr localhost:8080 --target /",
}

func init() {
	fetchCmd.Flags().StringVar(&fetchAddr, "addr", "localhost:8080", "address to dial")
	fetchCmd.Flags().StringVar(&fetchTarget, "target", "/", "request target")
	fetchCmd.Flags().StringVar(&fetchMethod, "method", "GET", "request method")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(addr, method, target string) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer nc.Close()

	c := h1proto.NewConnection(h1proto.Client, h1proto.Options{})

	req, err := h1proto.NewRequest(method, []byte(target), h1proto.Headers{
		{Name: "host", Value: []byte(addr)},
	})
	if err != nil {
		return err
	}
	out, err := c.Send(req)
	if err != nil {
		c.SendFailed()
		return err
	}
	if _, err := nc.Write(out); err != nil {
		c.SendFailed()
		return err
	}
	eom, err := h1proto.NewEndOfMessage(nil)
	if err != nil {
		return err
	}
	out, err = c.Send(eom)
	if err != nil {
		c.SendFailed()
		return err
	}
	if _, err := nc.Write(out); err != nil {
		c.SendFailed()
		return err
	}

	buf := make([]byte, 64*1024)
	for {
		evt, err := nextReadyEvent(c, nc, buf)
		if err != nil {
			return err
		}
		switch e := evt.(type) {
		case h1proto.ConnectionClosed, h1proto.Paused:
			return nil
		case h1proto.InformationalResponse:
			log.Info("informational", zap.Int("status", e.StatusCode))
		case h1proto.Response:
			log.Info("response", zap.Int("status", e.StatusCode), zap.ByteString("reason", e.Reason))
		case h1proto.Data:
			os.Stdout.Write(e.Data)
		case h1proto.EndOfMessage:
			return nil
		}
	}
}
