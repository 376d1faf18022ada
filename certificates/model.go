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

package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config is a validated, serializable description of a TLS endpoint: one
// certificate pair plus an optional root pool for verifying the peer. It
// is intentionally smaller than the teacher's full certificate manager —
// no OCSP stapling, no session ticket store, no SNI multi-cert router,
// per the carried-forward non-goals.
type Config struct {
	CertFile           string `yaml:"cert_file" toml:"cert_file" validate:"required_with=KeyFile"`
	KeyFile            string `yaml:"key_file" toml:"key_file" validate:"required_with=CertFile"`
	RootCAFile         string `yaml:"root_ca_file,omitempty" toml:"root_ca_file,omitempty"`
	ClientCA           string `yaml:"client_ca_file,omitempty" toml:"client_ca_file,omitempty"`
	RequireClientCert  bool   `yaml:"require_client_cert,omitempty" toml:"require_client_cert,omitempty"`
}

// Empty reports whether this Config carries no material at all, which the
// socket/config validators use to reject "TLS enabled, Config empty".
func (c Config) Empty() bool {
	return c.CertFile == "" && c.KeyFile == ""
}

// MarshalYAML/UnmarshalYAML round-trip this Config for an application's
// own configuration file, mirroring the teacher's encoding story.
func (c Config) MarshalYAML() (interface{}, error) {
	type alias Config
	return alias(c), nil
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type alias Config
	var a alias
	if err := node.Decode(&a); err != nil {
		return err
	}
	*c = Config(a)
	return nil
}

// MarshalTOML/UnmarshalTOML give an application the same round-trip over
// TOML, for the case its own configuration tree is TOML rather than YAML.
func (c Config) MarshalTOML() ([]byte, error) {
	type alias Config
	return toml.Marshal(alias(c))
}

func (c *Config) UnmarshalTOML(i interface{}) error {
	raw, err := toml.Marshal(i)
	if err != nil {
		return err
	}
	type alias Config
	var a alias
	if err := toml.Unmarshal(raw, &a); err != nil {
		return err
	}
	*c = Config(a)
	return nil
}

// BuildServer assembles a server-side *tls.Config: the certificate pair is
// mandatory, a client CA pool and mutual-TLS mode are optional.
func (c Config) BuildServer() (*tls.Config, error) {
	if c.Empty() {
		return nil, fmt.Errorf("certificates: server config has no certificate pair")
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("certificates: load key pair: %w", err)
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if c.ClientCA != "" {
		pool, err := loadPool(c.ClientCA)
		if err != nil {
			return nil, err
		}
		cfg.ClientCAs = pool
		if c.RequireClientCert {
			cfg.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			cfg.ClientAuth = tls.VerifyClientCertIfGiven
		}
	}

	return cfg, nil
}

// BuildClient assembles a client-side *tls.Config. serverName drives SNI
// and certificate verification; the certificate pair is only needed for
// mutual TLS and may be left empty.
func (c Config) BuildClient(serverName string) (*tls.Config, error) {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if !c.Empty() {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("certificates: load key pair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	if c.RootCAFile != "" {
		pool, err := loadPool(c.RootCAFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

func loadPool(path string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certificates: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, fmt.Errorf("certificates: no certificates parsed from %s", path)
	}
	return pool, nil
}
