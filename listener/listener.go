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

// Package listener implements the Host Listener (spec.md §4.C) and the
// Accept Pipeline that runs on every connection it accepts (spec.md §4.D).
// The two are folded into one package because they share the bound socket,
// the keep-alive scope, and the listener's configuration knobs -- the same
// shape the teacher's socket/server/tcp package uses for its bind+accept+
// dispatch server type.
package listener

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	libcrt "github.com/nabbar/polysrv/certificates"
	liberr "github.com/nabbar/polysrv/errors"
	libhb "github.com/nabbar/polysrv/heartbeat"
	libka "github.com/nabbar/polysrv/keepalive"
	liblog "github.com/nabbar/polysrv/logger"
	libmet "github.com/nabbar/polysrv/metrics"
	libptc "github.com/nabbar/polysrv/network/protocol"
	libproto "github.com/nabbar/polysrv/protocol"
	librun "github.com/nabbar/polysrv/runner/startstop"
	libsck "github.com/nabbar/polysrv/socket"
)

// PeekSize is the number of bytes read from a freshly accepted connection
// before protocol recognition runs (spec.md §4.D step 4, §6 "N = 8").
const PeekSize = 8

// Config is one Host Listener's bind record (spec.md §3 "Host Listener").
type Config struct {
	Name    string
	Network libptc.Network
	Address string
	Port    uint16
	// Backlog == 0 means system default (spec.md 4.C). Stored for parity
	// with spec.md's bind-options attribute list; net.Listen has no portable
	// backlog knob, so this is currently informational only.
	Backlog int

	TLSEnabled bool
	TLS        libcrt.TLSConfig

	RequestTimeout time.Duration
	NoDelay        bool
	QuickAck       bool
}

func (c Config) bindAddress() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

// Listener is one bound endpoint: socket, keep-alive scope, and a
// back-reference to the shared Protocol Registry (spec.md §3).
type Listener struct {
	cfg Config
	reg libproto.Registry
	log liblog.Logger

	onInnerException func(error)
	onInfo           func(libsck.ConnState, string)

	heartbeat *libhb.Manager
	metrics   *libmet.Metrics

	ln net.Listener

	scope  *libka.Scope
	reaper *libka.Reaper

	openConnections atomic.Int64

	runner librun.StartStop
}

// New builds a Listener bound to cfg, consulting reg for protocol
// recognition. It does not bind the socket yet; call Start for that.
func New(cfg Config, reg libproto.Registry, log liblog.Logger, onInnerException func(error), onInfo func(libsck.ConnState, string)) *Listener {
	if log == nil {
		log = liblog.NewNop()
	}

	l := &Listener{
		cfg:              cfg,
		reg:              reg,
		log:              log,
		onInnerException: onInnerException,
		onInfo:           onInfo,
	}

	l.scope = libka.NewScope(func(e libka.Entry) {
		l.log.Debug("keep-alive reaper expired a connection", liblog.Fields{"id": e.ID()})

		if l.metrics != nil {
			l.metrics.ConnectionsExpired.Inc()
		}
	})
	l.reaper = libka.NewReaper(l.scope, cfg.RequestTimeout)

	l.runner = librun.New(l.acceptLoop, func(ctx context.Context) error {
		return l.reaper.Stop(ctx)
	})

	return l
}

// SetHeartbeat wires a shared Heartbeat Manager into this listener: every
// connection whose protocol opts it in (spec.md §4.F "opt-in") is
// registered on connect and unregistered on disconnect. Call before Start.
func (l *Listener) SetHeartbeat(m *libhb.Manager) { l.heartbeat = m }

// SetMetrics wires an optional metrics.Metrics collector set into this
// listener (SPEC_FULL.md §11 domain stack, prometheus/client_golang). Call
// before Start.
func (l *Listener) SetMetrics(m *libmet.Metrics) { l.metrics = m }

// ID identifies this listener for keep-alive / connection back-references.
func (l *Listener) ID() string { return l.cfg.Name + "@" + l.cfg.bindAddress() }

// Addr returns the bound local address, valid only after a successful
// Start. Useful for tests binding to an ephemeral port (":0").
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}

	return l.ln.Addr()
}

// OpenConnections reports the number of currently connected sockets
// (SPEC_FULL.md §13 supplemented feature).
func (l *Listener) OpenConnections() int64 { return l.openConnections.Load() }

// Start binds the socket and begins accepting (spec.md §4.C). Error during
// bind is fatal to this listener only.
func (l *Listener) Start(ctx context.Context) error {
	if !l.cfg.Network.IsTCP() {
		return liberr.New(liberr.CodeConfiguration, "listener: "+l.cfg.Network.String()+" is not a supported network, this framework is stream-TCP only")
	}

	ln, err := net.Listen(l.cfg.Network.String(), l.cfg.bindAddress())
	if err != nil {
		return liberr.Wrap(liberr.CodeConfiguration, "listener: bind "+l.cfg.bindAddress(), err)
	}

	l.ln = ln

	if err = l.reaper.Start(ctx); err != nil {
		_ = ln.Close()
		return err
	}

	return l.runner.Start(ctx)
}

// Stop closes the listening socket, interrupts the accept loop, and stops
// the reaper (spec.md §4.C). It does not forcibly disconnect already
// connected clients.
func (l *Listener) Stop(ctx context.Context) error {
	if l.ln != nil {
		_ = l.ln.Close()
	}

	err := l.runner.Stop(ctx)

	// the accept loop may already have returned on the closed socket, in
	// which case the runner does not run its stop function.
	if rErr := l.reaper.Stop(ctx); rErr != nil && err == nil {
		err = rErr
	}

	return err
}

func (l *Listener) acceptLoop(ctx context.Context) error {
	for {
		c, err := l.ln.Accept()
		if err != nil {
			if err := libsck.ErrorFilter(err); err != nil {
				if l.onInnerException != nil {
					l.onInnerException(liberr.Wrap(liberr.CodeTransientAccept, "listener: accept", err))
				}

				select {
				case <-ctx.Done():
					return nil
				default:
					continue
				}
			}

			return nil
		}

		go l.pipeline(c)
	}
}
