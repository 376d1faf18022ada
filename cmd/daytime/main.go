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

// Command daytime is the minimal accept/write/close scenario: on connect it
// sends the current time and shuts the connection down; any bytes a peer
// sends back are discarded and logged.
package main

import (
	"fmt"
	"os"
	"time"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/logger"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/tcpserver"
)

func main() {
	log := logger.New()

	base, err := loop.New("daytime-base")
	if err != nil {
		log.Fatal("daytime: creating base loop", err)
		os.Exit(1)
	}

	handler := libconn.Handler{
		OnConnection: func(c *libconn.TcpConnection) {
			log.Info(fmt.Sprintf("daytime: %s -> %s is %s", c.PeerAddr(), c.LocalAddr(), c.State()), nil)
			if c.Connected() {
				c.SendString(time.Now().Format(time.RFC3339) + "\n")
				c.Shutdown()
			}
		},
		OnMessage: func(c *libconn.TcpConnection, in *libbuf.Buffer, t time.Time) {
			msg := in.RetrieveAllAsString()
			log.Info(fmt.Sprintf("%s discards %d bytes received at %s", c.Name(), len(msg), t), nil)
		},
	}

	srv, err := tcpserver.New(base, tcpserver.Config{
		Network: libptc.NetworkTCP,
		Address: "127.0.0.1:8000",
		Name:    "DaytimeServer",
	}, handler, log)
	if err != nil {
		log.Fatal("daytime: constructing server", err)
		os.Exit(1)
	}
	if err := srv.Start(); err != nil {
		log.Fatal("daytime: starting server", err)
		os.Exit(1)
	}

	bound, _ := srv.Addr()
	log.Info(fmt.Sprintf("daytime: pid=%d listening on %s", os.Getpid(), bound), nil)
	base.Loop()
}
