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

// Package protocol defines the application-protocol collaborator (spec.md
// §3 "Protocol") and the copy-on-write Registry the Accept Pipeline
// consults to recognize an incoming byte stream.
package protocol

import (
	"strings"

	libatm "github.com/nabbar/polysrv/atomic"
)

// Conn is the minimal Connection surface a Protocol needs during handshake
// and service; the full Connection type (package connection) satisfies it.
//
// KeepAlive, SetHeartbeatOptIn and SetSmartHealthCheck exist so a protocol
// can participate in the Heartbeat Manager (spec.md §4.F): a protocol opts
// a connection in from its handshake or on-connected path by calling
// SetHeartbeatOptIn(true), optionally tuning SetSmartHealthCheck, and calls
// KeepAlive on every pong it receives so pong-required clears (spec.md §4.F
// "Pong receipt ... calls keep-alive() on the Connection").
type Conn interface {
	Send(b []byte) bool
	SendWithCallback(b []byte, done func(ok bool))
	Disconnect()

	KeepAlive()
	SetHeartbeatOptIn(v bool)
	SetSmartHealthCheck(v bool)
}

// HandshakeResult is the outcome of an attempted handshake or switch,
// matching spec.md §3's capability-set shape.
type HandshakeResult struct {
	Accepted  bool
	Reply     []byte
	Socket    any
	Replay    []byte
}

// Protocol is the application-protocol collaborator (spec.md §3).
type Protocol interface {
	// Name is the case-insensitive, registry-unique identifier.
	Name() string

	// AttemptHandshake inspects the peeked bytes and decides whether this
	// protocol claims the connection.
	AttemptHandshake(c Conn, peeked []byte) HandshakeResult

	// SwitchTo re-handshakes an already-connected Connection using
	// application-supplied data instead of wire bytes (spec.md 4.G
	// switch-protocol).
	SwitchTo(c Conn, data []byte) HandshakeResult

	// HandleConnection is the per-connection service loop; it blocks for the
	// life of the connection.
	HandleConnection(c Conn, r HandshakeResult)
}

// Registry is an ordered, case-insensitive-name-indexed list of Protocol
// references. Mutation (Add) publishes a new immutable snapshot so readers
// (the Accept Pipeline) never observe a registry half-updated (spec.md §5
// "Shared-resource policy").
type Registry interface {
	// Add inserts protocol p, replacing any existing protocol of the same
	// case-insensitive name in place; otherwise appends to the tail
	// (spec.md §4.B).
	Add(p Protocol)
	// Find returns the first protocol matching name, case-insensitively.
	Find(name string) (Protocol, bool)
	// Snapshot returns the current ordered list of protocols. The returned
	// slice must not be mutated by the caller.
	Snapshot() []Protocol
}

type registry struct {
	v libatm.Value[[]Protocol]
}

// NewRegistry returns an empty Registry.
func NewRegistry() Registry {
	r := &registry{v: libatm.NewValue[[]Protocol]()}
	r.v.Store([]Protocol{})
	return r
}

func (o *registry) Add(p Protocol) {
	cur := o.v.Load()
	next := make([]Protocol, 0, len(cur)+1)

	replaced := false
	for _, e := range cur {
		if strings.EqualFold(e.Name(), p.Name()) {
			next = append(next, p)
			replaced = true
		} else {
			next = append(next, e)
		}
	}

	if !replaced {
		next = append(next, p)
	}

	o.v.Store(next)
}

func (o *registry) Find(name string) (Protocol, bool) {
	for _, e := range o.v.Load() {
		if strings.EqualFold(e.Name(), name) {
			return e, true
		}
	}

	return nil, false
}

func (o *registry) Snapshot() []Protocol {
	return o.v.Load()
}
