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

package timer

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	libchn "github.com/loopwire/reactor/channel"
)

// LoopHandle is the subset of EventLoop a TimerQueue needs: the same
// channel-registration surface Channel itself uses, plus the ability to
// trampoline the actual add/cancel onto the loop's own goroutine.
type LoopHandle interface {
	libchn.LoopHandle
	RunInLoop(fn func())
}

var nextSequence int64

// Timer is one scheduled callback. interval of zero means one-shot.
type Timer struct {
	callback   func()
	expiration time.Time
	interval   time.Duration
	repeating  bool
	sequence   int64
}

func newTimer(cb func(), at time.Time, interval time.Duration) *Timer {
	return &Timer{
		callback:   cb,
		expiration: at,
		interval:   interval,
		repeating:  interval > 0,
		sequence:   atomic.AddInt64(&nextSequence, 1),
	}
}

func (t *Timer) restart(now time.Time) {
	t.expiration = now.Add(t.interval)
}

// Id identifies a scheduled timer so it can be cancelled later. It carries
// the sequence number rather than the *Timer pointer itself, so a Cancel
// racing a firing-and-freed one-shot timer is always a safe no-op lookup.
type Id struct {
	sequence int64
}

// TimerQueue holds every pending Timer for one EventLoop, ordered by
// (expiration, sequence), and is driven by a single timerfd-backed Channel.
type TimerQueue struct {
	loop        LoopHandle
	timerFd     int
	channel     *libchn.Channel
	timers      []*Timer
	firingIds   map[int64]bool
	callingExpired bool
}

// New creates the timerfd and its channel but does not arm it; callers get
// an armed, running queue only once the first timer is added.
func New(loop LoopHandle) (*TimerQueue, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("timer: timerfd_create: %w", err)
	}

	q := &TimerQueue{
		loop:      loop,
		timerFd:   fd,
		firingIds: make(map[int64]bool),
	}
	q.channel = libchn.New(loop, fd)
	q.channel.SetReadCallback(q.handleRead)
	q.channel.EnableReading()
	return q, nil
}

// Close tears the timerfd channel and descriptor down.
func (q *TimerQueue) Close() error {
	q.channel.DisableAll()
	q.channel.Remove()
	return unix.Close(q.timerFd)
}

// AddTimer schedules cb to run at "at", repeating every interval if
// interval > 0. Safe to call from any goroutine; the actual insertion is
// trampolined onto the owning loop.
func (q *TimerQueue) AddTimer(cb func(), at time.Time, interval time.Duration) Id {
	t := newTimer(cb, at, interval)
	id := Id{sequence: t.sequence}
	q.loop.RunInLoop(func() {
		q.loop.AssertInLoopThread()
		q.insert(t)
	})
	return id
}

// Cancel removes a pending timer, or marks a currently-firing repeating timer so
// it does not get requeued if the callback itself calls Cancel on its own
// id (muduo's classic self-cancel-from-within-callback case).
func (q *TimerQueue) Cancel(id Id) {
	q.loop.RunInLoop(func() {
		q.loop.AssertInLoopThread()
		for i, t := range q.timers {
			if t.sequence == id.sequence {
				q.timers = append(q.timers[:i], q.timers[i+1:]...)
				return
			}
		}
		if q.callingExpired {
			q.firingIds[id.sequence] = false
		}
	})
}

func (q *TimerQueue) insert(t *Timer) {
	earliestChanged := len(q.timers) == 0 || t.expiration.Before(q.timers[0].expiration)

	i := sort.Search(len(q.timers), func(i int) bool {
		if q.timers[i].expiration.Equal(t.expiration) {
			return q.timers[i].sequence > t.sequence
		}
		return q.timers[i].expiration.After(t.expiration)
	})
	q.timers = append(q.timers, nil)
	copy(q.timers[i+1:], q.timers[i:])
	q.timers[i] = t

	if earliestChanged {
		resetTimerFd(q.timerFd, t.expiration)
	}
}

func (q *TimerQueue) handleRead(now time.Time) {
	q.loop.AssertInLoopThread()
	drainTimerFd(q.timerFd)

	expired := q.expireUpTo(now)

	q.callingExpired = true
	q.firingIds = make(map[int64]bool, len(expired))
	for _, t := range expired {
		q.firingIds[t.sequence] = true
	}
	for _, t := range expired {
		if q.firingIds[t.sequence] {
			t.callback()
		}
	}
	q.callingExpired = false

	for _, t := range expired {
		if t.repeating && q.firingIds[t.sequence] {
			t.restart(now)
			q.insert(t)
		}
	}

	if len(q.timers) > 0 {
		resetTimerFd(q.timerFd, q.timers[0].expiration)
	}
}

func (q *TimerQueue) expireUpTo(now time.Time) []*Timer {
	i := sort.Search(len(q.timers), func(i int) bool {
		return q.timers[i].expiration.After(now)
	})
	expired := q.timers[:i]
	q.timers = q.timers[i:]
	return expired
}

func resetTimerFd(fd int, at time.Time) {
	d := time.Until(at)
	if d < time.Millisecond {
		d = time.Millisecond
	}
	spec := unix.ItimerSpec{
		Value: unix.NsecToTimespec(d.Nanoseconds()),
	}
	_ = unix.TimerfdSettime(fd, 0, &spec, nil)
}

func drainTimerFd(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
	_ = binary.LittleEndian.Uint64(buf[:])
}
