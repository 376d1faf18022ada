package tcpclient_test

import (
	"net"
	"testing"
	"time"

	libbuf "github.com/loopwire/reactor/buffer"
	libconn "github.com/loopwire/reactor/connection"
	"github.com/loopwire/reactor/loop"
	libptc "github.com/loopwire/reactor/network/protocol"
	"github.com/loopwire/reactor/tcpclient"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestTcpClient(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TcpClient Suite")
}

var _ = Describe("TcpClient", func() {
	It("connects to a listener and exchanges bytes", func() {
		l, err := loop.New("tcpclient-test")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()
		defer l.Quit()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer ln.Close()

		accepted := make(chan net.Conn, 1)
		go func() {
			conn, aerr := ln.Accept()
			if aerr == nil {
				accepted <- conn
			}
		}()

		connectedUp := make(chan struct{}, 1)
		received := make(chan string, 1)
		client, err := tcpclient.New(l, tcpclient.Config{
			Network: libptc.NetworkTCP,
			Address: ln.Addr().String(),
			Name:    "client",
		}, libconn.Handler{
			OnConnection: func(c *libconn.TcpConnection) {
				if c.Connected() {
					select {
					case connectedUp <- struct{}{}:
					default:
					}
				}
			},
			OnMessage: func(c *libconn.TcpConnection, in *libbuf.Buffer, _ time.Time) {
				select {
				case received <- in.RetrieveAllAsString():
				default:
				}
			},
		}, nil)
		Expect(err).ToNot(HaveOccurred())
		client.Connect()
		defer client.Stop()

		var peer net.Conn
		Eventually(accepted, 2*time.Second).Should(Receive(&peer))
		defer peer.Close()

		Eventually(connectedUp, 2*time.Second).Should(Receive())
		Expect(client.Connection()).ToNot(BeNil())

		_, err = peer.Write([]byte("hi"))
		Expect(err).ToNot(HaveOccurred())
		Eventually(received, 2*time.Second).Should(Receive(Equal("hi")))
	})

	It("reconnects automatically when Retry is set", func() {
		l, err := loop.New("tcpclient-retry-test")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()
		defer l.Quit()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer ln.Close()

		accepted := make(chan net.Conn, 2)
		go func() {
			for i := 0; i < 2; i++ {
				conn, aerr := ln.Accept()
				if aerr != nil {
					return
				}
				accepted <- conn
			}
		}()

		client, err := tcpclient.New(l, tcpclient.Config{
			Network: libptc.NetworkTCP,
			Address: ln.Addr().String(),
			Name:    "retry-client",
			Retry:   true,
		}, libconn.Handler{}, nil)
		Expect(err).ToNot(HaveOccurred())
		client.Connect()
		defer client.Stop()

		var first net.Conn
		Eventually(accepted, 2*time.Second).Should(Receive(&first))
		_ = first.Close()

		var second net.Conn
		Eventually(accepted, 2*time.Second).Should(Receive(&second))
		defer second.Close()
	})
})
