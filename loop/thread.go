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

// EventLoopThread spawns exactly one goroutine and runs exactly one
// EventLoop on it for the goroutine's whole life. It exists so a pool can
// hand out *EventLoop values before their owning goroutine has necessarily
// started looping.
type EventLoopThread struct {
	name    string
	loopCh  chan *EventLoop
	started bool
}

// NewEventLoopThread creates a thread wrapper; the goroutine is not
// started until Start is called.
func NewEventLoopThread(name string) *EventLoopThread {
	return &EventLoopThread{name: name, loopCh: make(chan *EventLoop, 1)}
}

// Start launches the backing goroutine and blocks until its EventLoop has
// been constructed, returning it.
func (t *EventLoopThread) Start() (*EventLoop, error) {
	if t.started {
		panic("loop: EventLoopThread started twice")
	}
	t.started = true

	errCh := make(chan error, 1)
	go func() {
		l, err := New(t.name)
		if err != nil {
			errCh <- err
			t.loopCh <- nil
			return
		}
		errCh <- nil
		t.loopCh <- l
		l.Loop()
	}()

	if err := <-errCh; err != nil {
		return nil, err
	}
	return <-t.loopCh, nil
}
