package config_test

import (
	"testing"

	libtls "github.com/loopwire/reactor/certificates"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/socket/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Socket Config Suite")
}

var _ = Describe("Client", func() {
	It("validates a plain TCP client", func() {
		c := config.Client{Network: libptc.NetworkTCP, Address: "localhost:8080"}
		Expect(c.Validate()).To(Succeed())
	})

	It("rejects an unresolvable TCP address", func() {
		c := config.Client{Network: libptc.NetworkTCP, Address: "not an address"}
		Expect(c.Validate()).To(HaveOccurred())
	})

	It("rejects TLS enabled without certificate material", func() {
		c := config.Client{Network: libptc.NetworkTCP, Address: "localhost:8443"}
		c.TLS.Enabled = true
		Expect(c.Validate()).To(MatchError(config.ErrInvalidTLSConfig))
	})

	It("rejects TLS over UDP", func() {
		c := config.Client{Network: libptc.NetworkUDP, Address: "localhost:9000"}
		c.TLS.Enabled = true
		c.TLS.Config = libtls.Config{CertFile: "a", KeyFile: "b"}
		Expect(c.Validate()).To(MatchError(config.ErrInvalidTLSConfig))
	})
})

var _ = Describe("Server", func() {
	It("validates a plain unix listener", func() {
		s := config.Server{Network: libptc.NetworkUnix, Address: "/tmp/reactor-test.sock"}
		Expect(s.Validate()).To(Succeed())
	})

	It("rejects TLS on a unix listener", func() {
		s := config.Server{Network: libptc.NetworkUnix, Address: "/tmp/reactor-test.sock"}
		s.TLS.Enabled = true
		s.TLS.Config = libtls.Config{CertFile: "a", KeyFile: "b"}
		Expect(s.Validate()).To(MatchError(config.ErrInvalidTLSConfig))
	})
})
