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

package channel

import (
	"time"

	"golang.org/x/sys/unix"
)

// interest/revent bitmasks, matching epoll's own so no translation is
// needed when arming the poller.
const (
	EventNone  uint32 = 0
	EventRead  uint32 = unix.EPOLLIN | unix.EPOLLPRI
	EventWrite uint32 = unix.EPOLLOUT
)

// PollerIndex values used by Poller to track whether a channel has ever
// been registered with epoll_ctl.
const (
	IndexNew     = -1
	IndexAdded   = 1
	IndexDeleted = 2
)

// LoopHandle is the subset of EventLoop a Channel needs to (re)arm itself
// with the poller. Defined here, on the consumer side, so this package
// never imports the loop package.
type LoopHandle interface {
	UpdateChannel(ch *Channel)
	RemoveChannel(ch *Channel)
	HasChannel(ch *Channel) bool
	AssertInLoopThread()
}

// Channel binds one fd to one EventLoop. It is not copyable: callers pass
// it around by pointer and a Channel must live in exactly one loop.
type Channel struct {
	loop LoopHandle
	fd   int

	events  uint32
	revents uint32
	index   int

	eventHandling bool
	addedToLoop   bool
	tied          bool
	tieAlive      func() bool

	readCallback  func(t time.Time)
	writeCallback func()
	closeCallback func()
	errorCallback func()
}

// New binds fd to loop with no interest registered yet.
func New(loop LoopHandle, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: IndexNew}
}

// Fd returns the bound file descriptor.
func (c *Channel) Fd() int { return c.fd }

// Events returns the current interest mask.
func (c *Channel) Events() uint32 { return c.events }

// Index returns the poller's bookkeeping slot for this channel.
func (c *Channel) Index() int { return c.index }

// SetIndex is called by the Poller to record where it keeps this channel.
func (c *Channel) SetIndex(i int) { c.index = i }

// SetRevents records the OS-reported active events for the next HandleEvent.
func (c *Channel) SetRevents(revents uint32) { c.revents = revents }

// SetReadCallback installs the read handler; t is the poll timestamp.
func (c *Channel) SetReadCallback(fn func(t time.Time)) { c.readCallback = fn }

// SetWriteCallback installs the write-ready handler.
func (c *Channel) SetWriteCallback(fn func()) { c.writeCallback = fn }

// SetCloseCallback installs the peer-close handler.
func (c *Channel) SetCloseCallback(fn func()) { c.closeCallback = fn }

// SetErrorCallback installs the error handler.
func (c *Channel) SetErrorCallback(fn func()) { c.errorCallback = fn }

// Tie installs a weak liveness check: HandleEvent calls alive() before
// dispatching, and drops the event if it reports false. This is how a
// Channel observes its owning TcpConnection without keeping it alive,
// per spec.md §9 "Channel↔connection back-reference".
func (c *Channel) Tie(alive func() bool) {
	c.tieAlive = alive
	c.tied = true
}

// EnableReading arms read interest and pushes the change to the loop.
func (c *Channel) EnableReading() {
	c.events |= EventRead
	c.update()
}

// DisableReading clears read interest.
func (c *Channel) DisableReading() {
	c.events &^= EventRead
	c.update()
}

// EnableWriting arms write interest.
func (c *Channel) EnableWriting() {
	c.events |= EventWrite
	c.update()
}

// DisableWriting clears write interest.
func (c *Channel) DisableWriting() {
	c.events &^= EventWrite
	c.update()
}

// DisableAll clears all interest, without removing the channel from the poller.
func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

// IsWriting reports whether write interest is currently armed.
func (c *Channel) IsWriting() bool { return c.events&EventWrite != 0 }

// IsReading reports whether read interest is currently armed.
func (c *Channel) IsReading() bool { return c.events&EventRead != 0 }

// IsNoneEvent reports whether the channel currently has no interest armed.
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

func (c *Channel) update() {
	c.addedToLoop = true
	c.loop.UpdateChannel(c)
}

// Remove detaches the channel from its loop. The spec invariant is that
// the last Remove happens after DisableAll(); callers are expected to
// have already cleared interest.
func (c *Channel) Remove() {
	c.addedToLoop = false
	c.loop.RemoveChannel(c)
}

// HandleEvent dispatches the OS-reported revents mask set by SetRevents, in
// the order error -> close/peer-close -> read(+priority) -> write, per
// spec.md §4.3. If a tie was installed and fails to upgrade, the event is
// dropped entirely: the owning connection no longer exists.
func (c *Channel) HandleEvent(t time.Time) {
	if c.tied && !c.tieAlive() {
		return
	}
	c.eventHandling = true
	defer func() { c.eventHandling = false }()

	revents := c.revents

	if revents&unix.EPOLLERR != 0 {
		if c.errorCallback != nil {
			c.errorCallback()
		}
		return
	}
	if revents&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 && revents&unix.EPOLLIN == 0 {
		if c.closeCallback != nil {
			c.closeCallback()
		}
		return
	}
	if revents&(unix.EPOLLIN|unix.EPOLLPRI|unix.EPOLLRDHUP) != 0 {
		if c.readCallback != nil {
			c.readCallback(t)
		}
	}
	if revents&unix.EPOLLOUT != 0 {
		if c.writeCallback != nil {
			c.writeCallback()
		}
	}
}
