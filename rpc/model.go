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

package rpc

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	liblog "github.com/loopwire/reactor/logger"
)

// MaxFrameSize bounds a single decoded frame, guarding against a
// corrupt or hostile length prefix forcing an unbounded allocation.
const MaxFrameSize = 16 << 20

// Codec frames protobuf messages over a TcpConnection as
// `uint32 length | payload`, the length covering the payload only.
type Codec struct {
	// NewMessage returns a fresh, empty instance to unmarshal the next
	// frame into. Codecs that carry one message type can return the same
	// shape every time; a multi-type RPC layer would inspect a type tag
	// field first (out of scope here, same as spec.md's HTTP/WebSocket
	// layers).
	NewMessage func() proto.Message

	// OnMessage is invoked once per fully-decoded frame.
	OnMessage func(conn *libconn.TcpConnection, msg proto.Message)

	log *liblog.Logger
}

// NewCodec builds a Codec. newMessage and onMessage must both be non-nil.
func NewCodec(newMessage func() proto.Message, onMessage func(conn *libconn.TcpConnection, msg proto.Message), log *liblog.Logger) *Codec {
	return &Codec{NewMessage: newMessage, OnMessage: onMessage, log: log}
}

// Send marshals msg and writes it to conn as one length-prefixed frame.
func (c *Codec) Send(conn *libconn.TcpConnection, msg proto.Message) error {
	payload, err := proto.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rpc: marshal: %w", err)
	}

	frame := libbuf.New()
	frame.Write(payload)
	frame.PrependUint32(uint32(len(payload)))
	conn.Send(frame.Peek())
	return nil
}

// HandleMessage implements connection.Handler.OnMessage: it pulls as many
// complete frames as are currently buffered, decoding and dispatching each
// in turn, and leaves any trailing partial frame in in for the next read.
func (c *Codec) HandleMessage(conn *libconn.TcpConnection, in *libbuf.Buffer, _ time.Time) {
	for {
		length, err := in.PeekUint32()
		if err != nil {
			return
		}
		if length > MaxFrameSize {
			if c.log != nil {
				c.log.Error("rpc: frame exceeds MaxFrameSize, closing connection", fmt.Errorf("length=%d", length))
			}
			conn.ForceClose()
			return
		}
		if in.ReadableBytes() < 4+int(length) {
			return
		}

		in.Retrieve(4)
		payload := append([]byte(nil), in.Peek()[:length]...)
		in.Retrieve(int(length))

		msg := c.NewMessage()
		if err := proto.Unmarshal(payload, msg); err != nil {
			if c.log != nil {
				c.log.Warning("rpc: discarding unparseable frame", err)
			}
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(conn, msg)
		}
	}
}
