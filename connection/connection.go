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

// Package connection implements the Connection object described in spec.md
// §3/§4.A: one owned transport stream, a strictly-serialized write path, and
// an idempotent disconnect. It is the thickest single component of the
// framework, matching spec.md §2's budget note.
package connection

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	libatm "github.com/nabbar/polysrv/atomic"
	libsck "github.com/nabbar/polysrv/socket"
)

// State is the Connection's lifecycle state (spec.md §3). It is monotonic:
// no state may be revisited.
type State uint8

const (
	Pending State = iota
	Handshaking
	Connected
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Handshaking:
		return "handshaking"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, libsck.DefaultBufferSize)
		return &b
	},
}

// Connection owns one transport stream. All exported methods are safe for
// concurrent use.
type Connection struct {
	id     string
	conn   net.Conn
	remote string
	secure bool

	// listener is a non-owning back-reference to the Host Listener that
	// accepted this connection; it is an opaque value (typically the
	// listener's identity) so this package does not import the listener
	// package and create a cycle.
	listener any

	state libatm.Value[State]

	protocol libatm.Value[any] // currently installed protocol reference (non-owning)
	userSock libatm.Value[any] // protocol-supplied socket object (non-owning)

	lastActivity libatm.Value[time.Time]
	deadline     time.Time

	pongRequired       atomic.Bool
	smartHealthCheck   atomic.Bool
	heartbeatOptedIn   atomic.Bool

	writeMu sync.Mutex

	disconnectOnce sync.Once
	onDisconnected func(*Connection)
}

// New wraps c as a Connection in the Pending state with the given
// handshake deadline. listenerRef is stored opaquely for later retrieval via
// ListenerRef.
func New(c net.Conn, secure bool, deadline time.Time, listenerRef any, onDisconnected func(*Connection)) *Connection {
	o := &Connection{
		id:             uuid.NewString(),
		conn:           c,
		remote:         c.RemoteAddr().String(),
		secure:         secure,
		listener:       listenerRef,
		state:          libatm.NewValue[State](),
		protocol:       libatm.NewValue[any](),
		userSock:       libatm.NewValue[any](),
		lastActivity:   libatm.NewValue[time.Time](),
		deadline:       deadline,
		onDisconnected: onDisconnected,
	}

	o.state.Store(Pending)
	o.lastActivity.Store(time.Now())

	return o
}

// Conn returns the current underlying transport, for protocols that need
// direct access (reads, deadlines) beyond the Send/Disconnect surface.
func (o *Connection) Conn() net.Conn {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	return o.conn
}

// Reader returns the current transport as an io.Reader, used by the Accept
// Pipeline to read the peek bytes and by protocols to continue reading the
// stream after handshake.
func (o *Connection) Reader() io.Reader {
	return o.Conn()
}

// SetTransport swaps the underlying transport, used once by the Accept
// Pipeline to install the TLS-wrapped stream over the raw accepted socket
// while keeping the same Connection identity and keep-alive scope entry.
// Safe to call only before the Connection is handed to its protocol.
func (o *Connection) SetTransport(c net.Conn) {
	o.writeMu.Lock()
	defer o.writeMu.Unlock()

	o.conn = c
}

// ID returns the opaque identity token, unique within the server's
// lifetime (spec.md §3).
func (o *Connection) ID() string { return o.id }

// RemoteAddr returns the peer address captured at accept time.
func (o *Connection) RemoteAddr() string { return o.remote }

// Secure reports whether the transport is TLS-wrapped.
func (o *Connection) Secure() bool { return o.secure }

// ListenerRef returns the opaque back-reference supplied to New.
func (o *Connection) ListenerRef() any { return o.listener }

// State returns the current lifecycle state.
func (o *Connection) State() State { return o.state.Load() }

// StateOrdinal returns the current state's numeric value, for collaborators
// (the keep-alive Scope) that compare state without importing this package.
func (o *Connection) StateOrdinal() uint8 { return uint8(o.state.Load()) }

// Deadline returns the handshake deadline (creation + request-timeout).
func (o *Connection) Deadline() time.Time { return o.deadline }

// transition moves the state forward. A request for a state at or before
// the current one is ignored, so a Connection that was already closed is
// never reopened; this is an internal helper, not exported, since only the
// Accept Pipeline and Server Facade drive state changes.
func (o *Connection) transition(s State) {
	for {
		cur := o.state.Load()
		if s <= cur || o.state.CompareAndSwap(cur, s) {
			return
		}
	}
}

// MarkHandshaking transitions Pending -> Handshaking (spec.md 4.D step 5).
func (o *Connection) MarkHandshaking() { o.transition(Handshaking) }

// MarkConnected transitions Handshaking -> Connected (spec.md 4.D step 5).
func (o *Connection) MarkConnected() { o.transition(Connected) }

// Protocol returns the currently installed protocol reference, or nil
// before handshake.
func (o *Connection) Protocol() any { return o.protocol.Load() }

// SetProtocol installs p as the current protocol (initial handshake or a
// switch-protocol replacement).
func (o *Connection) SetProtocol(p any) { o.protocol.Store(p) }

// UserSocket returns the protocol-supplied socket object, or nil.
func (o *Connection) UserSocket() any { return o.userSock.Load() }

// SetUserSocket installs the protocol-supplied socket object.
func (o *Connection) SetUserSocket(s any) { o.userSock.Store(s) }

// KeepAlive refreshes the last-activity timestamp and clears pong-required
// (spec.md §4.A `keep-alive()`).
func (o *Connection) KeepAlive() {
	o.lastActivity.Store(time.Now())
	o.pongRequired.Store(false)
}

// LastActivity returns the last-activity timestamp.
func (o *Connection) LastActivity() time.Time { return o.lastActivity.Load() }

// PongRequired reports whether a ping was sent without a matching pong.
func (o *Connection) PongRequired() bool { return o.pongRequired.Load() }

// SetPongRequired marks that a ping was just sent awaiting a pong.
func (o *Connection) SetPongRequired(v bool) { o.pongRequired.Store(v) }

// SmartHealthCheck reports whether pings are suppressed on recent activity.
func (o *Connection) SmartHealthCheck() bool { return o.smartHealthCheck.Load() }

// SetSmartHealthCheck toggles the smart-health-check flag.
func (o *Connection) SetSmartHealthCheck(v bool) { o.smartHealthCheck.Store(v) }

// HeartbeatOptIn reports whether this connection participates in the
// Heartbeat Manager's scan (SPEC_FULL.md §10 decision 2).
func (o *Connection) HeartbeatOptIn() bool { return o.heartbeatOptedIn.Load() }

// SetHeartbeatOptIn opts this connection in or out of heartbeat scanning.
func (o *Connection) SetHeartbeatOptIn(v bool) { o.heartbeatOptedIn.Store(v) }
