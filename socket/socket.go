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

// Package socket holds the small constants and helpers shared by the
// Connection and Accept Pipeline: the instrumentation-callback state enum,
// the default buffer size for scatter/gather writes, and a filter that
// swallows the "use of closed network connection" noise every listener
// produces on a cooperative shutdown.
package socket

import (
	"errors"
	"net"
	"strings"
)

// DefaultBufferSize is the size of each buffer in the Connection's write
// pool: a payload up to this size is copied into a pooled buffer before it
// is written, a larger one is written directly.
const DefaultBufferSize = 32 * 1024

// EOL is the line terminator peeked/echoed by line-oriented protocols built
// on top of this framework; the core itself never inspects message bytes
// beyond the first 8 peeked for handshake.
const EOL = byte('\n')

// ConnState names a point in a connection's life for instrumentation
// callbacks (RegisterFuncInfo / RegisterFuncError).
type ConnState uint8

const (
	Dial ConnState = iota
	New
	Read
	CloseRead
	Handler
	Write
	CloseWrite
	Close
)

func (c ConnState) String() string {
	switch c {
	case Dial:
		return "dial"
	case New:
		return "new"
	case Read:
		return "read"
	case CloseRead:
		return "close-read"
	case Handler:
		return "handler"
	case Write:
		return "write"
	case CloseWrite:
		return "close-write"
	case Close:
		return "close"
	default:
		return "unknown"
	}
}

// ErrorFilter returns nil for errors that are expected noise on a
// cooperative shutdown (the listener or connection was already closed by
// this process), and returns err unchanged otherwise. Callers use this to
// avoid surfacing a stop()-induced accept error through on-inner-exception.
func ErrorFilter(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	if strings.Contains(err.Error(), "use of closed network connection") {
		return nil
	}

	return err
}
