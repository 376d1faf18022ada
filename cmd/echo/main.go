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

// Command echo is the S1 scenario: a TCP server on 127.0.0.1:<port> that
// writes back whatever it reads.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/logger"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/tcpserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8000", "listen address")
	threads := flag.Int("threads", 0, "sub-reactor thread count")
	flag.Parse()

	log := logger.New()

	base, err := loop.New("echo-base")
	if err != nil {
		log.Fatal("echo: creating base loop", err)
		os.Exit(1)
	}

	handler := libconn.Handler{
		OnConnection: func(c *libconn.TcpConnection) {
			log.Info(fmt.Sprintf("echo: %s is %s", c.PeerAddr(), c.State()), nil)
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
		Name:      "EchoServer",
		ThreadNum: *threads,
	}, handler, log)
	if err != nil {
		log.Fatal("echo: constructing server", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		log.Fatal("echo: starting server", err)
		os.Exit(1)
	}

	bound, _ := srv.Addr()
	log.Info(fmt.Sprintf("echo: listening on %s", bound), nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Stop()
		base.Quit()
	}()

	base.Loop()
}
