package timer_test

import (
	"sync"
	"testing"
	"time"

	libchn "github.com/loopwire/reactor/channel"
	"github.com/loopwire/reactor/timer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// inlineLoop runs every trampolined function immediately on the calling
// goroutine; fine for a single-goroutine test harness where nothing else
// contends for the timer queue's state.
type inlineLoop struct {
	mu       sync.Mutex
	channels map[int]*libchn.Channel
}

func newInlineLoop() *inlineLoop {
	return &inlineLoop{channels: make(map[int]*libchn.Channel)}
}

func (l *inlineLoop) UpdateChannel(ch *libchn.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels[ch.Fd()] = ch
}
func (l *inlineLoop) RemoveChannel(ch *libchn.Channel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.channels, ch.Fd())
}
func (l *inlineLoop) HasChannel(ch *libchn.Channel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.channels[ch.Fd()]
	return ok
}
func (l *inlineLoop) AssertInLoopThread() {}
func (l *inlineLoop) RunInLoop(fn func())  { fn() }

func TestTimer(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Timer Suite")
}

var _ = Describe("TimerQueue", func() {
	It("fires a one-shot timer once its deadline passes", func() {
		loop := newInlineLoop()
		q, err := timer.New(loop)
		Expect(err).ToNot(HaveOccurred())
		defer q.Close()

		fired := make(chan struct{}, 1)
		q.AddTimer(func() { fired <- struct{}{} }, time.Now().Add(20*time.Millisecond), 0)

		Eventually(func() bool {
			loop.mu.Lock()
			var target *libchn.Channel
			for _, c := range loop.channels {
				target = c
			}
			loop.mu.Unlock()
			if target == nil {
				return false
			}
			target.SetRevents(libchn.EventRead)
			target.HandleEvent(time.Now())
			select {
			case <-fired:
				return true
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond).Should(BeTrue())
	})

	It("cancels a pending timer before it fires", func() {
		loop := newInlineLoop()
		q, err := timer.New(loop)
		Expect(err).ToNot(HaveOccurred())
		defer q.Close()

		fired := false
		id := q.AddTimer(func() { fired = true }, time.Now().Add(50*time.Millisecond), 0)
		q.Cancel(id)

		time.Sleep(80 * time.Millisecond)
		loop.mu.Lock()
		var target *libchn.Channel
		for _, c := range loop.channels {
			target = c
		}
		loop.mu.Unlock()
		if target != nil {
			target.SetRevents(libchn.EventRead)
			target.HandleEvent(time.Now())
		}
		Expect(fired).To(BeFalse())
	})
})
