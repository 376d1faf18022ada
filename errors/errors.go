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

// Package errors provides the coded error type and defines codes for the
// non-transient failure paths of the reactor core (address resolution,
// socket setup, EMFILE exhaustion, TLS handshake, self-connect). Within this
// module only the socket package returns coded errors, for socket creation,
// bind and listen; the other paths log or retry on the raw error and do not
// produce the remaining codes.
//
// Transient I/O conditions (EAGAIN/EINTR/EWOULDBLOCK) and peer-close are
// deliberately not represented here: the spec treats them as implicit retry
// or close signals observed via callbacks, never as values an application
// branches on.
package errors

import (
	"fmt"
)

// Code classifies an Error the way an HTTP status would, without tying the
// reactor core to HTTP.
type Code uint16

const (
	CodeUnknown Code = iota
	CodeAddressResolve
	CodeSocketCreate
	CodeSocketBind
	CodeSocketListen
	CodeAcceptExhausted
	CodeConnectFailed
	CodeSelfConnect
	CodeTLSHandshake
	CodeTLSConfig
	CodeProgrammerError
)

func (c Code) String() string {
	switch c {
	case CodeAddressResolve:
		return "address-resolve"
	case CodeSocketCreate:
		return "socket-create"
	case CodeSocketBind:
		return "socket-bind"
	case CodeSocketListen:
		return "socket-listen"
	case CodeAcceptExhausted:
		return "accept-exhausted"
	case CodeConnectFailed:
		return "connect-failed"
	case CodeSelfConnect:
		return "self-connect"
	case CodeTLSHandshake:
		return "tls-handshake"
	case CodeTLSConfig:
		return "tls-config"
	case CodeProgrammerError:
		return "programmer-error"
	default:
		return "unknown"
	}
}

// Error is a coded error carrying an optional parent, matching the style of
// the teacher's error hierarchy (code, message, wrapped cause) trimmed down
// to what the core needs: Error() text, Unwrap() for errors.Is/As, and a
// Code() for programmatic dispatch.
type Error struct {
	code   Code
	msg    string
	parent error
}

// New builds a coded Error. parent may be nil.
func New(code Code, msg string, parent error) *Error {
	return &Error{code: code, msg: msg, parent: parent}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.parent != nil {
		return fmt.Sprintf("%s: %s: %s", e.code, e.msg, e.parent.Error())
	}
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// Unwrap exposes the parent error so errors.Is/errors.As can walk the chain.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.parent
}

// Code returns the classification code of the error.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// IsCode reports whether the error carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.code == code {
				return true
			}
			err = e.parent
			continue
		}
		type unwrapper interface{ Unwrap() error }
		if u, ok := err.(unwrapper); ok {
			err = u.Unwrap()
			continue
		}
		return false
	}
	return false
}
