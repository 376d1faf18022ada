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

package config

import (
	"errors"
	"net"

	validator "github.com/go-playground/validator/v10"

	libtls "github.com/loopwire/reactor/certificates"
	libptc "github.com/loopwire/reactor/network/protocol"
)

// ErrInvalidTLSConfig is returned when TLS is enabled but either the
// transport can't carry it (UDP, unix) or the certificate material is
// missing.
var ErrInvalidTLSConfig = errors.New("socket/config: invalid TLS configuration")

var validate = validator.New()

// TLS is the optional TLS layer over a Client or Server endpoint.
type TLS struct {
	Enabled    bool          `yaml:"enabled"`
	Config     libtls.Config `yaml:"config"`
	ServerName string        `yaml:"server_name,omitempty"`
}

func (t TLS) validate(proto libptc.NetworkProtocol) error {
	if !t.Enabled {
		return nil
	}
	if !proto.IsStream() || proto.IsUnix() {
		return ErrInvalidTLSConfig
	}
	if t.Config.Empty() {
		return ErrInvalidTLSConfig
	}
	return nil
}

// Client describes a dial target for TcpClient/UdpClient.
type Client struct {
	Network libptc.NetworkProtocol `yaml:"network" validate:"required"`
	Address string                 `yaml:"address" validate:"required"`
	TLS     TLS                    `yaml:"tls,omitempty"`
}

// Validate checks struct tags plus the network-specific address and TLS
// rules the teacher's socket/config suite exercises.
func (c Client) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := checkAddress(c.Network, c.Address); err != nil {
		return err
	}
	return c.TLS.validate(c.Network)
}

// Server describes a listen target for TcpServer/UdpServer.
type Server struct {
	Network libptc.NetworkProtocol `yaml:"network" validate:"required"`
	Address string                 `yaml:"address" validate:"required"`
	TLS     TLS                    `yaml:"tls,omitempty"`
}

// Validate checks struct tags plus the network-specific address and TLS
// rules the teacher's socket/config suite exercises.
func (s Server) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if err := checkAddress(s.Network, s.Address); err != nil {
		return err
	}
	return s.TLS.validate(s.Network)
}

func checkAddress(proto libptc.NetworkProtocol, address string) error {
	switch {
	case proto.IsUnix():
		return nil
	case proto.IsStream():
		_, err := net.ResolveTCPAddr(proto.String(), address)
		return err
	case proto.IsDatagram():
		_, err := net.ResolveUDPAddr(proto.String(), address)
		return err
	default:
		return nil
	}
}
