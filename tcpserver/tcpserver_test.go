package tcpserver_test

import (
	"net"
	"testing"
	"time"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/tcpserver"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTcpServer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TcpServer Suite")
}

var _ = Describe("TcpServer", func() {
	It("accepts a connection and echoes received bytes back", func() {
		base, err := loop.New("tcpserver-test-base")
		Expect(err).ToNot(HaveOccurred())
		go base.Loop()
		defer base.Quit()

		handler := libconn.Handler{
			OnMessage: func(c *libconn.TcpConnection, in *libbuf.Buffer, _ time.Time) {
				data := append([]byte(nil), in.Peek()...)
				in.Retrieve(len(data))
				c.Send(data)
			},
		}

		srv, err := tcpserver.New(base, tcpserver.Config{
			Network:   libptc.NetworkTCP,
			Address:   "127.0.0.1:0",
			Name:      "echo",
			ThreadNum: 1,
		}, handler, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(srv.Start()).To(Succeed())
		defer srv.Stop()

		addr, err := srv.Addr()
		Expect(err).ToNot(HaveOccurred())

		conn, err := net.Dial("tcp", addr.String())
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, err = conn.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 5)
		_, err = conn.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf)).To(Equal("hello"))

		Eventually(srv.ConnectionCount, time.Second, 10*time.Millisecond).Should(Equal(1))
	})
})
