/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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
 */

// Package context provides a small generic, concurrency-safe key/value map
// (Store) used by the reactor core for the two "type-erased container"
// needs called out in spec.md §9: the per-connection opaque user context
// blob, and any ad-hoc bookkeeping a component wants to keep without
// widening its own struct.
package context

import "sync"

// Store is a generic, concurrency-safe map keyed by a comparable type T.
// It is deliberately minimal next to the teacher's context.Config[T]: no
// cancellation, no cloning — just Load/Store/Delete/Range, which is all
// TcpConnection.Context() and friends need.
type Store[T comparable] struct {
	m sync.Map
}

// New returns an empty Store.
func New[T comparable]() *Store[T] {
	return &Store[T]{}
}

// Load returns the value stored for key, if any.
func (s *Store[T]) Load(key T) (any, bool) {
	return s.m.Load(key)
}

// Store sets the value for key. A nil value deletes the key, matching the
// teacher's MapManage.Store semantics.
func (s *Store[T]) Store(key T, val any) {
	if val == nil {
		s.m.Delete(key)
		return
	}
	s.m.Store(key, val)
}

// Delete removes key from the store.
func (s *Store[T]) Delete(key T) {
	s.m.Delete(key)
}

// Range iterates the store; fn returning false stops iteration early.
func (s *Store[T]) Range(fn func(key T, val any) bool) {
	s.m.Range(func(k, v any) bool {
		return fn(k.(T), v)
	})
}
