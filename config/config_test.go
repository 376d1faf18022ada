package config_test

import (
	"testing"

	"github.com/loopwire/reactor/config"
	libptc "github.com/loopwire/reactor/network/protocol"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("TcpServer config", func() {
	It("validates and builds a tcpserver.Config", func() {
		c := config.TcpServer{
			Name:      "echo",
			ThreadNum: 2,
		}
		c.Listen.Network = libptc.NetworkTCP
		c.Listen.Address = "127.0.0.1:0"

		Expect(c.Validate()).To(Succeed())
		built := c.Build()
		Expect(built.Name).To(Equal("echo"))
		Expect(built.ThreadNum).To(Equal(2))
		Expect(built.TLS).To(BeNil())
	})

	It("rejects a missing name", func() {
		c := config.TcpServer{}
		c.Listen.Network = libptc.NetworkTCP
		c.Listen.Address = "127.0.0.1:0"
		Expect(c.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("TcpClient config", func() {
	It("validates and builds a tcpclient.Config", func() {
		c := config.TcpClient{Name: "client", Retry: true}
		c.Dial.Network = libptc.NetworkTCP
		c.Dial.Address = "127.0.0.1:9"

		Expect(c.Validate()).To(Succeed())
		built := c.Build()
		Expect(built.Retry).To(BeTrue())
		Expect(built.TLS).To(BeNil())
	})
})
