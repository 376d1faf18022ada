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
	validator "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	libsockcfg "github.com/loopwire/reactor/socket/config"
	"github.com/loopwire/reactor/tcpclient"
	"github.com/loopwire/reactor/tcpserver"
)

var validate = validator.New()

// TcpServer is the serializable, validated description of a TcpServer,
// covering the socket/config.Server fields plus the name/reusePort/
// threadNum dimensions spec.md §6 assigns to TcpServer specifically.
type TcpServer struct {
	Listen    libsockcfg.Server `yaml:"listen"`
	Name      string            `yaml:"name" validate:"required"`
	ReusePort bool              `yaml:"reuse_port,omitempty"`
	ThreadNum int               `yaml:"thread_num" validate:"gte=0"`
	Backlog   int               `yaml:"backlog,omitempty" validate:"gte=0"`
}

// Validate checks struct tags plus the embedded socket/config rules.
func (c TcpServer) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Listen.Validate()
}

// Build assembles a tcpserver.Config from this record, after Validate.
func (c TcpServer) Build() tcpserver.Config {
	cfg := tcpserver.Config{
		Network:   c.Listen.Network,
		Address:   c.Listen.Address,
		Name:      c.Name,
		ReusePort: c.ReusePort,
		ThreadNum: c.ThreadNum,
		Backlog:   c.Backlog,
	}
	if c.Listen.TLS.Enabled {
		tlsCfg := c.Listen.TLS.Config
		cfg.TLS = &tlsCfg
	}
	return cfg
}

// MarshalYAML/UnmarshalYAML round-trip this record, mirroring the
// teacher's "multiple encoding formats" story for configuration records.
func (c TcpServer) MarshalYAML() (interface{}, error) {
	type alias TcpServer
	return alias(c), nil
}

func (c *TcpServer) UnmarshalYAML(node *yaml.Node) error {
	type alias TcpServer
	var a alias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = TcpServer(a)
	return nil
}

// TcpClient is the serializable, validated description of a TcpClient,
// covering the socket/config.Client fields plus the name/retry dimensions
// spec.md §6 assigns to TcpClient specifically.
type TcpClient struct {
	Dial  libsockcfg.Client `yaml:"dial"`
	Name  string            `yaml:"name" validate:"required"`
	Retry bool              `yaml:"retry,omitempty"`
}

// Validate checks struct tags plus the embedded socket/config rules.
func (c TcpClient) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return c.Dial.Validate()
}

// Build assembles a tcpclient.Config from this record, after Validate.
func (c TcpClient) Build() tcpclient.Config {
	cfg := tcpclient.Config{
		Network: c.Dial.Network,
		Address: c.Dial.Address,
		Name:    c.Name,
		Retry:   c.Retry,
	}
	if c.Dial.TLS.Enabled {
		cfg.TLS = &tcpclient.TLSConfig{
			Cert:       c.Dial.TLS.Config,
			ServerName: c.Dial.TLS.ServerName,
		}
	}
	return cfg
}

func (c TcpClient) MarshalYAML() (interface{}, error) {
	type alias TcpClient
	return alias(c), nil
}

func (c *TcpClient) UnmarshalYAML(node *yaml.Node) error {
	type alias TcpClient
	var a alias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = TcpClient(a)
	return nil
}
