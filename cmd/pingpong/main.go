/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command pingpong is the S2/S3 scenario: a "server" subcommand that
// bounces every received byte straight back, and a "client" subcommand
// that opens sessionCount connections, each firing blockSize-byte
// messages back and forth for the given duration.
package main

import (
	"flag"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/logger"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/tcpclient"
	"github.com/loopwire/reactor/tcpserver"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "server":
		runServer(os.Args[2:])
	case "client":
		runClient(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: pingpong server -addr <addr> [-threads N]")
	fmt.Fprintln(os.Stderr, "       pingpong client -addr <addr> [-sessions N] [-blocksize N] [-seconds N]")
	os.Exit(1)
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8001", "listen address")
	threads := fs.Int("threads", 4, "sub-reactor thread count")
	_ = fs.Parse(args)

	log := logger.New()
	base, err := loop.New("pingpong-server-base")
	if err != nil {
		log.Fatal("pingpong: creating base loop", err)
		os.Exit(1)
	}

	handler := libconn.Handler{
		OnConnection: func(c *libconn.TcpConnection) {
			if c.Connected() {
				log.Info(fmt.Sprintf("pingpong: %s connected", c.PeerAddr()), nil)
			}
		},
		OnMessage: func(c *libconn.TcpConnection, in *libbuf.Buffer, _ time.Time) {
			data := append([]byte(nil), in.Peek()...)
			in.Retrieve(len(data))
			c.Send(data)
		},
	}

	srv, err := tcpserver.New(base, tcpserver.Config{
		Network:   libptc.NetworkTCP,
		Address:   *addr,
		Name:      "PingPongServer",
		ThreadNum: *threads,
	}, handler, log)
	if err != nil {
		log.Fatal("pingpong: constructing server", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		log.Fatal("pingpong: starting server", err)
		os.Exit(1)
	}

	bound, _ := srv.Addr()
	log.Info(fmt.Sprintf("pingpong: server listening on %s", bound), nil)
	base.Loop()
}

func runClient(args []string) {
	fs := flag.NewFlagSet("client", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8001", "server address")
	sessions := fs.Int("sessions", 1, "number of concurrent sessions")
	blockSize := fs.Int("blocksize", 4096, "bytes per ping-pong message")
	seconds := fs.Int("seconds", 5, "benchmark duration")
	_ = fs.Parse(args)

	log := logger.New()
	base, err := loop.New("pingpong-client-base")
	if err != nil {
		log.Fatal("pingpong: creating base loop", err)
		os.Exit(1)
	}
	go base.Loop()
	defer base.Quit()

	message := make([]byte, *blockSize)
	for i := range message {
		message[i] = byte(i % 128)
	}

	var bytesRead, messagesRead atomic.Int64
	clients := make([]*tcpclient.TcpClient, 0, *sessions)

	for i := 0; i < *sessions; i++ {
		i := i
		handler := libconn.Handler{
			OnConnection: func(c *libconn.TcpConnection) {
				if c.Connected() {
					c.Send(message)
				}
			},
			OnMessage: func(c *libconn.TcpConnection, in *libbuf.Buffer, _ time.Time) {
				n := in.ReadableBytes()
				data := append([]byte(nil), in.Peek()...)
				in.Retrieve(n)
				bytesRead.Add(int64(n))
				messagesRead.Add(1)
				c.Send(data)
			},
		}

		client, err := tcpclient.New(base, tcpclient.Config{
			Network: libptc.NetworkTCP,
			Address: *addr,
			Name:    fmt.Sprintf("C%05d", i),
		}, handler, log)
		if err != nil {
			log.Fatal("pingpong: constructing client", err)
			os.Exit(1)
		}
		client.Connect()
		clients = append(clients, client)
	}

	time.Sleep(time.Duration(*seconds) * time.Second)
	for _, c := range clients {
		c.Stop()
	}

	totalBytes := bytesRead.Load()
	totalMessages := messagesRead.Load()
	log.Info(fmt.Sprintf("pingpong: %d total bytes, %d total messages", totalBytes, totalMessages), nil)
	if totalMessages > 0 {
		log.Info(fmt.Sprintf("pingpong: %.1f avg message size, %.2f MiB/s",
			float64(totalBytes)/float64(totalMessages),
			float64(totalBytes)/(float64(*seconds)*1024*1024)), nil)
	}
}
