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

package listener

import (
	"crypto/tls"
	"net"
	"time"

	libconn "github.com/nabbar/polysrv/connection"
	liberr "github.com/nabbar/polysrv/errors"
	libproto "github.com/nabbar/polysrv/protocol"
	libsck "github.com/nabbar/polysrv/socket"
)

// pipeline runs the Accept Pipeline (spec.md §4.D) for one accepted raw
// connection, asynchronously from the accept loop so a slow TLS handshake
// or peek never blocks the next accept.
func (l *Listener) pipeline(raw net.Conn) {
	applySocketOptions(raw, l.cfg.NoDelay, l.cfg.QuickAck)

	deadline := time.Now().Add(l.cfg.RequestTimeout)
	c := libconn.New(raw, l.cfg.TLSEnabled, deadline, l.ID(), l.onDisconnected)
	l.scope.Add(c)

	if l.cfg.TLSEnabled {
		tlsConn, err := l.wrapTLS(raw)
		if err != nil {
			l.scope.Remove(c.ID())
			c.Disconnect()

			if l.onInnerException != nil {
				l.onInnerException(liberr.Wrap(liberr.CodeHandshakeFailure, "listener: tls handshake", err))
			}

			return
		}

		c.SetTransport(tlsConn)
	}

	peeked := make([]byte, PeekSize)
	n, err := c.Reader().Read(peeked)
	if n == 0 && err != nil {
		// zero-length read / early close: spec.md §8 boundary case, not an
		// inner-exception, just a closed connection.
		l.scope.Remove(c.ID())
		c.Disconnect()
		return
	}
	peeked = peeked[:n]

	c.MarkHandshaking()

	result, proto, matched := l.handshake(c, peeked)
	if !matched {
		l.scope.Remove(c.ID())
		c.Disconnect()
		return
	}

	c.SetProtocol(proto)

	if result.Socket != nil {
		c.SetUserSocket(result.Socket)

		if hook, ok := result.Socket.(onConnectedHook); ok {
			hook.OnConnected()
		}
	}

	if len(result.Reply) > 0 {
		// spec.md §4.D ordering guarantee: the reply write precedes
		// handle-connection.
		c.Send(result.Reply)
	}

	c.MarkConnected()
	l.scope.Remove(c.ID())
	l.openConnections.Add(1)

	if l.metrics != nil {
		l.metrics.ConnectionsOpen.Inc()
	}

	if l.onInfo != nil {
		l.onInfo(libsck.Handler, c.ID())
	}

	if l.heartbeat != nil && c.HeartbeatOptIn() {
		if p, ok := c.UserSocket().(pinger); ok {
			l.heartbeat.Register(&heartbeatSocket{Connection: c, pinger: p})
		}
	}

	proto.HandleConnection(c, result)
}

func (l *Listener) onDisconnected(c *libconn.Connection) {
	// only a connection that won a handshake was counted as open; the
	// pipeline always counts it once a protocol is installed.
	if c.Protocol() != nil {
		l.openConnections.Add(-1)

		if l.metrics != nil {
			l.metrics.ConnectionsOpen.Dec()
		}
	}

	if l.heartbeat != nil {
		l.heartbeat.Unregister(c.ID())
	}

	if c.UserSocket() != nil {
		if hook, ok := c.UserSocket().(onDisconnectedHook); ok {
			hook.OnDisconnected()
		}
	}
}

// pinger is the protocol-specific subtype hook spec.md §6 describes as
// "ping(), pong(payload?)" on the Protocol-socket: the Connection type
// itself stays transport-agnostic, and a protocol's user socket supplies
// the wire-level ping.
type pinger interface {
	Ping() bool
}

// heartbeatSocket adapts a Connection plus its protocol-supplied pinger to
// heartbeat.Socket.
type heartbeatSocket struct {
	*libconn.Connection
	pinger
}

// onConnectedHook / onDisconnectedHook are the protocol-socket notification
// hooks from spec.md §6 ("on-connected", "on-disconnected"). Protocol
// implementations opt in by implementing them on the socket object they
// return from a handshake.
type onConnectedHook interface{ OnConnected() }
type onDisconnectedHook interface{ OnDisconnected() }

// onProtocolSwitchedHook is spec.md §6's "on-protocol-switched(previous,
// current)" hook.
type onProtocolSwitchedHook interface {
	OnProtocolSwitched(previous, current libproto.Protocol)
}

func (l *Listener) handshake(c *libconn.Connection, peeked []byte) (libproto.HandshakeResult, libproto.Protocol, bool) {
	for _, p := range l.reg.Snapshot() {
		r := p.AttemptHandshake(c, peeked)
		if r.Accepted {
			if r.Replay == nil {
				r.Replay = peeked
			}

			return r, p, true
		}
	}

	return libproto.HandshakeResult{}, nil, false
}

func (l *Listener) wrapTLS(raw net.Conn) (*tls.Conn, error) {
	cfg, err := l.cfg.TLS.TLS("")
	if err != nil {
		return nil, err
	}

	conn := tls.Server(raw, cfg)
	if err := conn.Handshake(); err != nil {
		return nil, err
	}

	return conn, nil
}
