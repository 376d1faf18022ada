package udp_test

import (
	"testing"
	"time"

	libaddr "github.com/loopwire/reactor/address"
	libbuf "github.com/loopwire/reactor/buffer"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/udp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUdp(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Udp Suite")
}

var _ = Describe("UdpServer/UdpClient", func() {
	It("exchanges one datagram round-trip", func() {
		l, err := loop.New("udp-test")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()
		defer l.Quit()

		srv, err := udp.NewServer(l, libptc.NetworkUDP, "127.0.0.1:0", nil)
		Expect(err).ToNot(HaveOccurred())
		defer srv.Close()

		received := make(chan string, 1)
		srv.OnMessage = func(s *udp.UdpServer, buf *libbuf.Buffer, from libaddr.Address) {
			received <- buf.RetrieveAllAsString()
			buf.WriteString("pong")
		}

		srvAddr, err := srv.LocalAddr()
		Expect(err).ToNot(HaveOccurred())

		cli, err := udp.NewClient(l, libptc.NetworkUDP, nil)
		Expect(err).ToNot(HaveOccurred())
		defer cli.Close()

		reply := make(chan string, 1)
		cli.OnMessage = func(c *udp.UdpClient, buf *libbuf.Buffer) { reply <- buf.RetrieveAllAsString() }

		cli.Send([]byte("ping"), srvAddr)

		Eventually(received, 2*time.Second).Should(Receive(Equal("ping")))
		Eventually(reply, 2*time.Second).Should(Receive(Equal("pong")))
	})
})
