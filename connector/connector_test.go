package connector_test

import (
	"testing"
	"time"

	"github.com/loopwire/reactor/connector"
	"github.com/loopwire/reactor/loop"
	libaddr "github.com/loopwire/reactor/address"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConnector(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Connector Suite")
}

var _ = Describe("Connector", func() {
	It("connects to a listening TCP server", func() {
		l, err := loop.New("connector-test")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()
		defer l.Quit()

		listenAddr, err := libaddr.Resolve(libptc.NetworkTCP, "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		listener, err := libsock.New(libptc.NetworkTCP, listenAddr)
		Expect(err).ToNot(HaveOccurred())
		Expect(listener.SetReuseAddr(true)).To(Succeed())
		Expect(listener.Bind(listenAddr)).To(Succeed())
		Expect(listener.Listen(1)).To(Succeed())
		defer listener.Close()

		addr, err := listener.LocalAddr()
		Expect(err).ToNot(HaveOccurred())

		connected := make(chan *libsock.Socket, 1)
		c := connector.New(l, libptc.NetworkTCP, addr, nil)
		c.NewConnection = func(conn *libsock.Socket) { connected <- conn }
		c.Start()

		var got *libsock.Socket
		Eventually(connected, 2*time.Second).Should(Receive(&got))
		Expect(got).ToNot(BeNil())
		_ = got.Close()
	})
})
