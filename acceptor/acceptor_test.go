package acceptor_test

import (
	"net"
	"testing"
	"time"

	libchn "github.com/loopwire/reactor/channel"
	"github.com/loopwire/reactor/acceptor"
	libaddr "github.com/loopwire/reactor/address"
	libptc "github.com/loopwire/reactor/network/protocol"
	libsock "github.com/loopwire/reactor/socket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeLoop struct{ channels map[int]*libchn.Channel }

func newFakeLoop() *fakeLoop { return &fakeLoop{channels: make(map[int]*libchn.Channel)} }

func (f *fakeLoop) UpdateChannel(ch *libchn.Channel) { f.channels[ch.Fd()] = ch }
func (f *fakeLoop) RemoveChannel(ch *libchn.Channel) { delete(f.channels, ch.Fd()) }
func (f *fakeLoop) HasChannel(ch *libchn.Channel) bool {
	_, ok := f.channels[ch.Fd()]
	return ok
}
func (f *fakeLoop) AssertInLoopThread() {}

func TestAcceptor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Acceptor Suite")
}

var _ = Describe("Acceptor", func() {
	It("accepts a pending TCP connection and invokes NewConnection", func() {
		loop := newFakeLoop()
		a, err := acceptor.New(loop, libptc.NetworkTCP, "127.0.0.1:0", false, nil)
		Expect(err).ToNot(HaveOccurred())
		defer a.Close()
		Expect(a.Listen(16)).To(Succeed())

		accepted := make(chan struct{}, 1)
		a.NewConnection = func(conn *libsock.Socket, peer libaddr.Address) {
			_ = conn.Close()
			accepted <- struct{}{}
		}

		bound, err := a.Addr()
		Expect(err).ToNot(HaveOccurred())

		dial, err := net.Dial("tcp", bound.String())
		Expect(err).ToNot(HaveOccurred())
		defer dial.Close()

		var target *libchn.Channel
		for _, c := range loop.channels {
			target = c
		}
		Expect(target).ToNot(BeNil())

		Eventually(func() bool {
			target.SetRevents(libchn.EventRead)
			target.HandleEvent(time.Now())
			select {
			case <-accepted:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
	})
})
