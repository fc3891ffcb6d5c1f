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

package connection

import (
	"sync"

	libsck "github.com/nabbar/polysrv/socket"
)

// writeGuard is a scoped, release-exactly-once guard around the
// Connection's single-permit write mutex (spec.md §9: "prefer a scoped
// guard that releases exactly once" over a release-if-held pattern).
type writeGuard struct {
	mu       *sync.Mutex
	released bool
}

func (o *Connection) acquireWrite() *writeGuard {
	o.writeMu.Lock()
	return &writeGuard{mu: &o.writeMu}
}

func (g *writeGuard) release() {
	if g.released {
		return
	}
	g.released = true
	g.mu.Unlock()
}

// Send enqueues bytes for write, blocking until the write completes or
// fails. Concurrent Send/SendWithCallback calls on the same Connection are
// strictly serialized (spec.md §8 testable property): the per-connection
// write mutex is acquired before any write entry point touches the
// transport and released on every exit path, including failure.
func (o *Connection) Send(b []byte) bool {
	if o.State() == Closed {
		return false
	}

	g := o.acquireWrite()
	defer g.release()

	if len(b) > libsck.DefaultBufferSize {
		// payload larger than the pooled buffer: write directly, still under
		// the same single-permit section, without renting from the pool.
		if _, err := o.conn.Write(b); err != nil {
			g.release()
			o.Disconnect()
			return false
		}
		return true
	}

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	n := copy((*buf)[:cap(*buf)], b)
	if _, err := o.conn.Write((*buf)[:n]); err != nil {
		g.release()
		o.Disconnect()
		return false
	}

	return true
}

// SendWithCallback is the non-blocking variant: it runs the write on its
// own goroutine (still serialized by the same write mutex, since Send
// itself acquires it) and invokes done with the outcome once the write
// drains (spec.md §4.A "completion fires with success/failure after the
// write drains").
func (o *Connection) SendWithCallback(b []byte, done func(ok bool)) {
	go func() {
		ok := o.Send(b)
		if done != nil {
			done(ok)
		}
	}()
}
