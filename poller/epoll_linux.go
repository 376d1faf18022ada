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

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	libchn "github.com/loopwire/reactor/channel"
)

const initialEventCapacity = 16

// Poller is a thin epoll wrapper: one instance per EventLoop, never shared,
// never touched off the owning loop's goroutine.
type Poller struct {
	epollFd int
	events  []unix.EpollEvent
	fdToCh  map[int]*libchn.Channel
}

// New creates an epoll instance. Failure here is treated like the spec's
// other construction-time resource failures: fatal, there is no degraded
// mode for a loop without a poller.
func New() (*Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("poller: epoll_create1: %w", err)
	}
	return &Poller{
		epollFd: fd,
		events:  make([]unix.EpollEvent, initialEventCapacity),
		fdToCh:  make(map[int]*libchn.Channel),
	}, nil
}

// Close releases the epoll fd.
func (p *Poller) Close() error {
	return unix.Close(p.epollFd)
}

// Poll blocks for at most timeoutMs (negative means forever) and appends
// every channel that became active to active, in epoll_wait's report order.
// It returns the wall-clock time polling unblocked, so read handlers can
// timestamp received bytes without an extra syscall.
func (p *Poller) Poll(timeoutMs int, active *[]*libchn.Channel) (time.Time, error) {
	n, err := unix.EpollWait(p.epollFd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return now, nil
		}
		return now, fmt.Errorf("poller: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		ch, ok := p.fdToCh[fd]
		if !ok {
			continue
		}
		ch.SetRevents(p.events[i].Events)
		*active = append(*active, ch)
	}

	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}

	return now, nil
}

// UpdateChannel adds or modifies ch's interest in the epoll set, writing
// ch's poller-assigned index in place so future updates don't need to scan.
func (p *Poller) UpdateChannel(ch *libchn.Channel) error {
	index := ch.Index()

	if index == libchn.IndexNew || index == libchn.IndexDeleted {
		p.fdToCh[ch.Fd()] = ch
		ch.SetIndex(libchn.IndexAdded)
		return p.ctl(unix.EPOLL_CTL_ADD, ch)
	}

	if ch.IsNoneEvent() {
		if err := p.ctl(unix.EPOLL_CTL_DEL, ch); err != nil {
			return err
		}
		ch.SetIndex(libchn.IndexDeleted)
		return nil
	}
	return p.ctl(unix.EPOLL_CTL_MOD, ch)
}

// RemoveChannel detaches ch from the epoll set entirely.
func (p *Poller) RemoveChannel(ch *libchn.Channel) error {
	delete(p.fdToCh, ch.Fd())
	if ch.Index() == libchn.IndexAdded {
		if err := p.ctl(unix.EPOLL_CTL_DEL, ch); err != nil {
			return err
		}
	}
	ch.SetIndex(libchn.IndexNew)
	return nil
}

// HasChannel reports whether ch is currently tracked by this poller.
func (p *Poller) HasChannel(ch *libchn.Channel) bool {
	existing, ok := p.fdToCh[ch.Fd()]
	return ok && existing == ch
}

func (p *Poller) ctl(op int, ch *libchn.Channel) error {
	ev := unix.EpollEvent{Events: ch.Events(), Fd: int32(ch.Fd())}
	if err := unix.EpollCtl(p.epollFd, op, ch.Fd(), &ev); err != nil {
		return fmt.Errorf("poller: epoll_ctl: %w", err)
	}
	return nil
}
