package poller_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	libchn "github.com/loopwire/reactor/channel"
	"github.com/loopwire/reactor/poller"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestPoller(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Poller Suite")
}

type fakeLoop struct{ p *poller.Poller }

func (f *fakeLoop) UpdateChannel(ch *libchn.Channel)      { _ = f.p.UpdateChannel(ch) }
func (f *fakeLoop) RemoveChannel(ch *libchn.Channel)      { _ = f.p.RemoveChannel(ch) }
func (f *fakeLoop) HasChannel(ch *libchn.Channel) bool    { return f.p.HasChannel(ch) }
func (f *fakeLoop) AssertInLoopThread()                   {}

var _ = Describe("Poller", func() {
	It("reports a pipe's read end readable after a write", func() {
		p, err := poller.New()
		Expect(err).ToNot(HaveOccurred())
		defer p.Close()

		fds := make([]int, 2)
		Expect(unix.Pipe(fds)).To(Succeed())
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		loop := &fakeLoop{p: p}
		ch := libchn.New(loop, fds[0])
		var fired bool
		ch.SetReadCallback(func(t time.Time) { fired = true })
		ch.EnableReading()
		Expect(p.HasChannel(ch)).To(BeTrue())

		_, err = unix.Write(fds[1], []byte("x"))
		Expect(err).ToNot(HaveOccurred())

		var active []*libchn.Channel
		_, err = p.Poll(1000, &active)
		Expect(err).ToNot(HaveOccurred())
		Expect(active).To(HaveLen(1))

		active[0].HandleEvent(time.Now())
		Expect(fired).To(BeTrue())
	})

	It("stops tracking a channel once removed", func() {
		p, err := poller.New()
		Expect(err).ToNot(HaveOccurred())
		defer p.Close()

		fds := make([]int, 2)
		Expect(unix.Pipe(fds)).To(Succeed())
		defer unix.Close(fds[0])
		defer unix.Close(fds[1])

		loop := &fakeLoop{p: p}
		ch := libchn.New(loop, fds[0])
		ch.EnableReading()
		ch.DisableAll()
		ch.Remove()
		Expect(p.HasChannel(ch)).To(BeFalse())
	})
})
