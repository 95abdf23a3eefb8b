// Copyright 2021 Intuitive Labs GmbH. All rights reserved.
//
// Use of this source code is governed by a source-available license
// that can be found in the LICENSE.txt file in the root of the source
// tree.

package cmd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/packetflow/h1proto"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept connections and answer every request with a fixed body",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(serveAddr); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
	Example: "# h1demo serve --addr :8080",
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info("listening", zap.String("addr", addr))
	defer ln.Close()

	for {
		nc, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go serveConn(nc)
	}
}

// serveConn drives one accepted net.Conn to completion, answering every
// request it reads with a fixed 200 response until the peer goes away or a
// protocol error forces the connection closed.
func serveConn(nc net.Conn) {
	peer := nc.RemoteAddr().String()
	defer nc.Close()

	c := h1proto.NewConnection(h1proto.Server, h1proto.Options{})
	buf := make([]byte, 64*1024)

	var reqBody []byte
	var reqTarget string

	for {
		evt, err := nextReadyEvent(c, nc, buf)
		if err != nil {
			log.Warn("connection error", zap.String("peer", peer), zap.Error(err))
			return
		}

		switch e := evt.(type) {
		case h1proto.ConnectionClosed:
			return
		case h1proto.Paused:
			log.Info("protocol switch in effect, demo stops reading HTTP", zap.String("peer", peer), zap.Int("trailing", len(c.TrailingData())))
			return
		case h1proto.Request:
			reqTarget = string(e.Target)
			reqBody = reqBody[:0]
			log.Info("request", zap.String("peer", peer), zap.ByteString("method", e.Method), zap.String("target", reqTarget))
		case h1proto.Data:
			reqBody = append(reqBody, e.Data...)
		case h1proto.EndOfMessage:
			if err := answer(c, nc, reqTarget, reqBody); err != nil {
				log.Warn("failed to answer", zap.String("peer", peer), zap.Error(err))
				return
			}
			if c.OurState() == h1proto.MustClose || c.TheirState() == h1proto.MustClose {
				return
			}
			if c.OurState() == h1proto.Done && c.TheirState() == h1proto.Done {
				if err := c.StartNextCycle(); err != nil {
					log.Warn("start next cycle", zap.String("peer", peer), zap.Error(err))
					return
				}
			}
		}
	}
}

// nextReadyEvent loops Connection.NextEvent, reading more bytes from nc
// whenever the engine reports NeedData.
func nextReadyEvent(c *h1proto.Connection, nc net.Conn, buf []byte) (h1proto.Event, error) {
	for {
		evt, err := c.NextEvent()
		if err != nil {
			return nil, err
		}
		if _, needData := evt.(h1proto.NeedData); !needData {
			return evt, nil
		}
		n, err := nc.Read(buf)
		if n > 0 {
			c.ReceiveData(buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			c.ReceiveData(nil)
		}
	}
}

func answer(c *h1proto.Connection, nc net.Conn, target string, body []byte) error {
	reply := []byte(fmt.Sprintf("hello from h1demo, you asked for %s (%d bytes of body)\n", target, len(body)))
	headers := h1proto.Headers{
		{Name: "content-type", Value: []byte("text/plain")},
		{Name: "content-length", Value: []byte(fmt.Sprintf("%d", len(reply)))},
	}
	resp, err := h1proto.NewResponse(200, headers)
	if err != nil {
		return err
	}
	out, err := c.Send(resp)
	if err != nil {
		return err
	}
	if _, err := nc.Write(out); err != nil {
		return err
	}
	out, err = c.Send(h1proto.NewData(reply))
	if err != nil {
		return err
	}
	if _, err := nc.Write(out); err != nil {
		return err
	}
	eom, err := h1proto.NewEndOfMessage(nil)
	if err != nil {
		return err
	}
	out, err = c.Send(eom)
	if err != nil {
		return err
	}
	_, err = nc.Write(out)
	return err
}
