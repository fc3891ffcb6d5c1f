/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
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

// Package atomic provides a generic lock-free Value[T] box used wherever the
// server core needs mutable state shared between goroutines without a mutex:
// the Protocol Registry's copy-on-write snapshot and a Connection's state,
// installed-protocol, user-socket and last-activity fields.
package atomic

import (
	"sync/atomic"
)

// Value is a type-safe wrapper over sync/atomic.Value.
type Value[T any] interface {
	// Load returns the current value, or the zero value of T if Store was
	// never called.
	Load() T
	// Store sets the current value.
	Store(v T)
	// Swap atomically stores v and returns the previous value.
	Swap(v T) (old T)
	// CompareAndSwap atomically replaces old with new if the current value
	// equals old (using the underlying atomic.Value's equality, so T must be
	// comparable or stored behind a pointer).
	CompareAndSwap(old, new T) bool
}

type val[T any] struct {
	av atomic.Value
}

type box[T any] struct {
	v T
}

// NewValue returns a Value[T] whose Load returns the zero value of T until
// the first Store.
func NewValue[T any]() Value[T] {
	return &val[T]{}
}

func (o *val[T]) Load() T {
	if v, ok := o.av.Load().(box[T]); ok {
		return v.v
	}

	var zero T
	return zero
}

func (o *val[T]) Store(v T) {
	o.av.Store(box[T]{v: v})
}

func (o *val[T]) Swap(v T) (old T) {
	prev := o.av.Swap(box[T]{v: v})

	if b, ok := prev.(box[T]); ok {
		return b.v
	}

	var zero T
	return zero
}

func (o *val[T]) CompareAndSwap(old, new T) bool {
	// box[T] is never comparable when T itself is not, so callers relying on
	// CompareAndSwap must use a comparable or pointer T (Connection state
	// satisfies this; the registry's []Protocol snapshot does not and is only
	// ever loaded and stored).
	return o.av.CompareAndSwap(box[T]{v: old}, box[T]{v: new})
}
