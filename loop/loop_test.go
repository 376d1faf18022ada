package loop_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/loopwire/reactor/loop"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLoop(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Loop Suite")
}

var _ = Describe("EventLoop", func() {
	It("runs a functor queued from another goroutine", func() {
		l, err := loop.New("test")
		Expect(err).ToNot(HaveOccurred())

		done := make(chan struct{})
		go l.Loop()

		var ran atomic.Bool
		l.QueueInLoop(func() {
			ran.Store(true)
			l.Quit()
			close(done)
		})

		Eventually(done, time.Second).Should(BeClosed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("fires a RunAfter timer registered from another goroutine", func() {
		l, err := loop.New("test-timer")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()

		fired := make(chan struct{})
		l.RunInLoop(func() {
			l.RunAfter(10*time.Millisecond, func() {
				close(fired)
			})
		})

		Eventually(fired, time.Second).Should(BeClosed())
		l.Quit()
	})

	It("panics when a channel method is asserted from the wrong goroutine", func() {
		l, err := loop.New("test-assert")
		Expect(err).ToNot(HaveOccurred())
		go l.Loop()
		defer l.Quit()

		time.Sleep(20 * time.Millisecond)
		Expect(func() { l.AssertInLoopThread() }).To(Panic())
	})
})
