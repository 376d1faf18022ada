/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package loop

import (
	"encoding/binary"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	libchn "github.com/loopwire/reactor/channel"
	"github.com/loopwire/reactor/poller"
	"github.com/loopwire/reactor/timer"
)

var ignoreSigpipeOnce sync.Once

// Functor is a piece of work queued to run on a specific EventLoop's own
// goroutine.
type Functor func()

// EventLoop is a single-goroutine reactor: it owns a Poller and a
// TimerQueue, and is the only thing ever allowed to call epoll_ctl or
// touch a Channel bound to it. Every other goroutine talks to it only
// through RunInLoop/QueueInLoop.
type EventLoop struct {
	poller *poller.Poller
	timers *timer.TimerQueue

	wakeupFd      int
	wakeupChannel *libchn.Channel

	goroutineID atomic.Int64
	looping     atomic.Bool
	quit        atomic.Bool

	mu                     sync.Mutex
	pendingFunctors        []Functor
	callingPendingFunctors atomic.Bool

	activeChannels        []*libchn.Channel
	currentActiveChannel  *libchn.Channel

	name string
}

// New creates an EventLoop. It does not start polling; call Loop from the
// goroutine that is meant to own it.
func New(name string) (*EventLoop, error) {
	ignoreSigpipeOnce.Do(func() { signal.Ignore(syscall.SIGPIPE) })

	p, err := poller.New()
	if err != nil {
		return nil, err
	}

	wakeupFd, _, errno := unix.Syscall(unix.SYS_EVENTFD2, 0, uintptr(unix.EFD_NONBLOCK|unix.EFD_CLOEXEC), 0)
	if errno != 0 {
		return nil, fmt.Errorf("loop: eventfd: %w", errno)
	}

	l := &EventLoop{
		poller:   p,
		wakeupFd: int(wakeupFd),
		name:     name,
	}
	// Set to the constructing goroutine's id, muduo-style (threadId_ is
	// set in the constructor); Loop() overwrites this with the looping
	// goroutine's id once the loop actually starts running.
	l.goroutineID.Store(currentGoroutineID())

	l.wakeupChannel = libchn.New(l, l.wakeupFd)
	l.wakeupChannel.SetReadCallback(l.handleWakeup)
	l.wakeupChannel.EnableReading()

	timers, err := timer.New(l)
	if err != nil {
		return nil, err
	}
	l.timers = timers

	return l, nil
}

// Name returns the diagnostic name given to this loop at construction.
func (l *EventLoop) Name() string { return l.name }

// Loop runs the reactor until Quit is called. It must run on the goroutine
// that is to be considered this loop's owner for the rest of its life.
func (l *EventLoop) Loop() {
	if l.looping.Swap(true) {
		panic("loop: Loop called twice on the same EventLoop")
	}
	l.goroutineID.Store(currentGoroutineID())
	l.quit.Store(false)

	for !l.quit.Load() {
		l.activeChannels = l.activeChannels[:0]
		now, err := l.poller.Poll(10000, &l.activeChannels)
		if err != nil {
			continue
		}
		for _, ch := range l.activeChannels {
			l.currentActiveChannel = ch
			ch.HandleEvent(now)
		}
		l.currentActiveChannel = nil
		l.doPendingFunctors()
	}

	l.looping.Store(false)
}

// Quit asks the loop to stop after its current iteration. Safe from any
// goroutine.
func (l *EventLoop) Quit() {
	l.quit.Store(true)
	if !l.isInLoopGoroutine() {
		l.wakeup()
	}
}

// RunInLoop runs fn immediately if called from the loop's own goroutine,
// otherwise queues it to run on the next iteration.
func (l *EventLoop) RunInLoop(fn func()) {
	if l.isInLoopGoroutine() {
		fn()
		return
	}
	l.QueueInLoop(fn)
}

// QueueInLoop always defers fn to the loop's own goroutine, even when
// called from inside it (useful to avoid reentrancy into the current
// functor batch).
func (l *EventLoop) QueueInLoop(fn Functor) {
	l.mu.Lock()
	l.pendingFunctors = append(l.pendingFunctors, fn)
	l.mu.Unlock()

	if !l.isInLoopGoroutine() || l.callingPendingFunctors.Load() {
		l.wakeup()
	}
}

// RunAt schedules fn to run once at the given time.
func (l *EventLoop) RunAt(at time.Time, fn func()) timer.Id {
	return l.timers.AddTimer(fn, at, 0)
}

// RunAfter schedules fn to run once after d elapses.
func (l *EventLoop) RunAfter(d time.Duration, fn func()) timer.Id {
	return l.timers.AddTimer(fn, time.Now().Add(d), 0)
}

// RunEvery schedules fn to run repeatedly every d, starting at the first d.
func (l *EventLoop) RunEvery(d time.Duration, fn func()) timer.Id {
	return l.timers.AddTimer(fn, time.Now().Add(d), d)
}

// CancelTimer cancels a timer previously returned by RunAt/RunAfter/RunEvery.
func (l *EventLoop) CancelTimer(id timer.Id) {
	l.timers.Cancel(id)
}

// UpdateChannel implements channel.LoopHandle.
func (l *EventLoop) UpdateChannel(ch *libchn.Channel) {
	l.AssertInLoopThread()
	_ = l.poller.UpdateChannel(ch)
}

// RemoveChannel implements channel.LoopHandle.
func (l *EventLoop) RemoveChannel(ch *libchn.Channel) {
	l.AssertInLoopThread()
	if l.currentActiveChannel == ch {
		l.currentActiveChannel = nil
	}
	_ = l.poller.RemoveChannel(ch)
}

// HasChannel implements channel.LoopHandle.
func (l *EventLoop) HasChannel(ch *libchn.Channel) bool {
	l.AssertInLoopThread()
	return l.poller.HasChannel(ch)
}

// AssertInLoopThread panics if the calling goroutine is not this loop's
// owner. Every public mutation entry point on TcpConnection and friends
// calls this, directly or via RunInLoop, to catch cross-goroutine misuse
// during development rather than racing silently in production.
func (l *EventLoop) AssertInLoopThread() {
	if !l.isInLoopGoroutine() {
		panic(fmt.Sprintf("loop: %s used from outside its own goroutine", l.name))
	}
}

func (l *EventLoop) isInLoopGoroutine() bool {
	return l.goroutineID.Load() == currentGoroutineID()
}

func (l *EventLoop) wakeup() {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, _ = unix.Write(l.wakeupFd, buf[:])
}

func (l *EventLoop) handleWakeup(time.Time) {
	var buf [8]byte
	_, _ = unix.Read(l.wakeupFd, buf[:])
}

func (l *EventLoop) doPendingFunctors() {
	l.mu.Lock()
	functors := l.pendingFunctors
	l.pendingFunctors = nil
	l.mu.Unlock()

	l.callingPendingFunctors.Store(true)
	for _, fn := range functors {
		fn()
	}
	l.callingPendingFunctors.Store(false)
}
