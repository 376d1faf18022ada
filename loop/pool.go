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

import "fmt"

// EventLoopThreadPool is the muduo-style fixed pool of sub-reactors an
// Acceptor's new connections get handed off to, round-robin. With
// numThreads == 0 every connection is dispatched back onto the base loop
// (the accept loop itself), which is the right default for low-concurrency
// servers that don't want a dedicated I/O goroutine per core.
type EventLoopThreadPool struct {
	baseLoop   *EventLoop
	namePrefix string
	numThreads int

	threads []*EventLoopThread
	loops   []*EventLoop
	next    int
}

// NewEventLoopThreadPool binds the pool to the loop that will run Accept,
// and that also serves as GetNextLoop's answer when numThreads is 0.
func NewEventLoopThreadPool(base *EventLoop, namePrefix string, numThreads int) *EventLoopThreadPool {
	return &EventLoopThreadPool{
		baseLoop:   base,
		namePrefix: namePrefix,
		numThreads: numThreads,
	}
}

// Start spawns numThreads EventLoopThreads and waits for each to report
// its EventLoop as running.
func (p *EventLoopThreadPool) Start() error {
	for i := 0; i < p.numThreads; i++ {
		t := NewEventLoopThread(fmt.Sprintf("%s%d", p.namePrefix, i))
		l, err := t.Start()
		if err != nil {
			return fmt.Errorf("loop: starting pool thread %d: %w", i, err)
		}
		p.threads = append(p.threads, t)
		p.loops = append(p.loops, l)
	}
	return nil
}

// GetNextLoop round-robins across the pool's sub-loops, or returns the
// base loop when the pool has no threads of its own.
func (p *EventLoopThreadPool) GetNextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	l := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return l
}

// Loops returns every sub-loop owned by this pool (not the base loop).
func (p *EventLoopThreadPool) Loops() []*EventLoop {
	return p.loops
}
