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

// Package server implements the Server Facade (spec.md §4.G): the
// composition root that owns the Protocol Registry, the listeners built
// from configured hosts, and the process-wide Heartbeat Manager, and
// exposes use-protocol / switch-protocol / start / stop / run.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	libcfg "github.com/nabbar/polysrv/config"
	libconn "github.com/nabbar/polysrv/connection"
	liberr "github.com/nabbar/polysrv/errors"
	libhb "github.com/nabbar/polysrv/heartbeat"
	liblis "github.com/nabbar/polysrv/listener"
	liblog "github.com/nabbar/polysrv/logger"
	libmet "github.com/nabbar/polysrv/metrics"
	libproto "github.com/nabbar/polysrv/protocol"
	libsck "github.com/nabbar/polysrv/socket"
)

// Server is the composition root (spec.md §4.G).
type Server struct {
	cfg libcfg.Options
	log liblog.Logger
	reg libproto.Registry
	hb  *libhb.Manager
	met *libmet.Metrics

	mu        sync.Mutex
	running   bool
	listeners []*liblis.Listener

	onStarted        func(*Server)
	onStopped        func(*Server)
	onInnerException func(*Server, error)
	onError          func(libsck.ConnState, error)
	onInfo           func(libsck.ConnState, string)
}

// New builds a Server from cfg. The registry starts empty; call UseProtocol
// before Start.
func New(cfg libcfg.Options, log liblog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, liberr.Wrap(liberr.CodeConfiguration, "server: invalid configuration", err)
	}

	if log == nil {
		log = liblog.NewNop()
	}

	s := &Server{
		cfg: cfg,
		log: log,
		reg: libproto.NewRegistry(),
	}

	s.hb = libhb.New(cfg.PingInterval.ToDuration(),
		func(sock libhb.Socket) {
			s.log.Debug("heartbeat: ping sent", liblog.Fields{"id": sock.ID()})

			if s.met != nil {
				s.met.HeartbeatPingsSent.Inc()
			}
		},
		func(sock libhb.Socket) {
			s.log.Debug("heartbeat: socket disconnected for unanswered ping", liblog.Fields{"id": sock.ID()})

			if s.met != nil {
				s.met.HeartbeatDisconnects.Inc()
			}
		},
	)

	return s, nil
}

// SetMetrics wires an optional metrics.Metrics collector set into the
// server and every listener it builds on Start (SPEC_FULL.md §11 domain
// stack, prometheus/client_golang). Call before Start.
func (s *Server) SetMetrics(m *libmet.Metrics) { s.met = m }

// UseProtocol registers p with the shared registry (spec.md §4.G / §4.B).
func (s *Server) UseProtocol(p libproto.Protocol) {
	s.reg.Add(p)
}

// SwitchProtocol re-handshakes c under the protocol named name, using data
// as the application-supplied handshake payload (spec.md §4.G
// switch-protocol). If name is not registered or the switch is rejected, c
// is left untouched and false is returned. On a successful switch the
// on-protocol-switched hook fires exactly once on the socket installed
// after the switch (the new protocol's socket if it supplied one, otherwise
// the existing one), provided that socket implements it and a protocol was
// installed before; then the new protocol's HandleConnection takes over on
// its own goroutine -- callers should not continue using c themselves
// afterward.
func (s *Server) SwitchProtocol(c *libconn.Connection, name string, data []byte) bool {
	next, ok := s.reg.Find(name)
	if !ok {
		return false
	}

	previous, _ := c.Protocol().(libproto.Protocol)

	result := next.SwitchTo(c, data)
	if !result.Accepted {
		return false
	}

	s.hb.Unregister(c.ID())

	c.SetProtocol(next)

	if result.Socket != nil {
		c.SetUserSocket(result.Socket)
	}

	if len(result.Reply) > 0 {
		c.Send(result.Reply)
	}

	if result.Socket != nil && c.HeartbeatOptIn() {
		if p, ok := result.Socket.(pinger); ok {
			s.hb.Register(&switchedHeartbeatSocket{Connection: c, pinger: p})
		}
	}

	if previous != nil {
		if sock := c.UserSocket(); sock != nil {
			if hook, ok := sock.(interface {
				OnProtocolSwitched(previous, current libproto.Protocol)
			}); ok {
				hook.OnProtocolSwitched(previous, next)
			}
		}
	}

	go next.HandleConnection(c, result)

	return true
}

// pinger is the protocol-specific subtype hook spec.md §6 describes as
// "ping(), pong(payload?)" on the Protocol-socket.
type pinger interface {
	Ping() bool
}

// switchedHeartbeatSocket adapts a Connection plus its new protocol's
// pinger to heartbeat.Socket for a connection that switched protocol
// mid-life.
type switchedHeartbeatSocket struct {
	*libconn.Connection
	pinger
}

// RegisterFuncError registers a callback for per-connection instrumentation
// errors (SPEC_FULL.md §13 supplemented feature).
func (s *Server) RegisterFuncError(fn func(libsck.ConnState, error)) { s.onError = fn }

// RegisterFuncInfo registers a callback for per-connection instrumentation
// info events (SPEC_FULL.md §13 supplemented feature).
func (s *Server) RegisterFuncInfo(fn func(libsck.ConnState, string)) { s.onInfo = fn }

// OnStarted registers the on-started(server) event (spec.md §6).
func (s *Server) OnStarted(fn func(*Server)) { s.onStarted = fn }

// OnStopped registers the on-stopped(server) event (spec.md §6).
func (s *Server) OnStopped(fn func(*Server)) { s.onStopped = fn }

// OnInnerException registers the on-inner-exception(server, error) event
// (spec.md §6).
func (s *Server) OnInnerException(fn func(*Server, error)) { s.onInnerException = fn }

// IsRunning reports whether Start has completed and Stop has not yet run.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// OpenConnections sums OpenConnections() across every listener
// (SPEC_FULL.md §13 supplemented feature).
func (s *Server) OpenConnections() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, l := range s.listeners {
		n += l.OpenConnections()
	}

	return n
}

// ListenerAddrs returns the bound local address of every running listener,
// in configuration order. Useful for callers that bound an ephemeral port
// (":0") and need to discover what was actually chosen.
func (s *Server) ListenerAddrs() []net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]net.Addr, 0, len(s.listeners))
	for _, l := range s.listeners {
		if a := l.Addr(); a != nil {
			out = append(out, a)
		}
	}

	return out
}

func (s *Server) fireInnerException(err error) {
	if err == nil {
		return
	}

	if s.onInnerException != nil {
		s.onInnerException(s, err)
	}
}

// Start builds listeners from configured hosts, starts each accept loop,
// and starts the heartbeat if configured. Start is rejected if already
// running (spec.md §4.G, §7 ConfigurationError).
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return liberr.New(liberr.CodeConfiguration, "server: already running")
	}

	if len(s.cfg.Hosts) == 0 {
		s.mu.Unlock()
		return liberr.New(liberr.CodeConfiguration, "server: no hosts configured")
	}
	s.mu.Unlock()

	listeners := make([]*liblis.Listener, len(s.cfg.Hosts))

	// errgroup.Group (not WithContext) deliberately does not cancel sibling
	// binds on one listener's failure: spec.md 4.C "Error during bind is
	// fatal to that listener only; other listeners continue."
	var g errgroup.Group

	for i, h := range s.cfg.Hosts {
		i, h := i, h

		g.Go(func() error {
			lcfg, err := s.hostToListenerConfig(h)
			if err != nil {
				s.fireInnerException(liberr.Wrap(liberr.CodeConfiguration, "server: host "+h.Name, err))
				return nil
			}

			l := liblis.New(lcfg, s.reg, s.log, func(e error) {
				s.fireInnerException(e)
			}, s.onInfo)
			l.SetHeartbeat(s.hb)
			l.SetMetrics(s.met)

			if err := l.Start(ctx); err != nil {
				s.fireInnerException(err)
				return nil
			}

			listeners[i] = l
			return nil
		})
	}

	_ = g.Wait()

	live := make([]*liblis.Listener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			live = append(live, l)
		}
	}

	if len(live) == 0 {
		return liberr.New(liberr.CodeConfiguration, "server: no listener started successfully")
	}

	if err := s.hb.Start(ctx); err != nil {
		s.fireInnerException(err)
	}

	s.mu.Lock()
	s.listeners = live
	s.running = true
	s.mu.Unlock()

	if s.onStarted != nil {
		s.onStarted(s)
	}

	return nil
}

func (s *Server) hostToListenerConfig(h libcfg.Host) (liblis.Config, error) {
	cfg := liblis.Config{
		Name:           h.Name,
		Network:        h.Network,
		Address:        h.Address,
		Port:           h.Port,
		Backlog:        s.cfg.MaximumPendingConnections,
		TLSEnabled:     h.TLSEnabled,
		RequestTimeout: s.cfg.RequestTimeout.ToDuration(),
		NoDelay:        s.cfg.NoDelay,
		QuickAck:       s.cfg.QuickAck,
	}

	if !h.TLSEnabled {
		return cfg, nil
	}

	tls, err := s.buildTLS(h)
	if err != nil {
		return liblis.Config{}, err
	}

	cfg.TLS = tls
	return cfg, nil
}

// Stop halts accepts on every listener (closed, reapers stopped, heartbeat
// stopped) but does not forcibly disconnect already-connected clients.
// Fires on-stopped exactly once (spec.md §4.G).
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	listeners := s.listeners
	s.listeners = nil
	s.running = false
	s.mu.Unlock()

	var g errgroup.Group
	for _, l := range listeners {
		l := l
		g.Go(func() error {
			return l.Stop(ctx)
		})
	}

	err := g.Wait()

	if hbErr := s.hb.Stop(ctx); hbErr != nil && err == nil {
		err = hbErr
	}

	if s.onStopped != nil {
		s.onStopped(s)
	}

	return err
}

// Shutdown is the graceful variant of Stop: it halts accepts, then blocks
// until every already-connected socket has closed or ctx expires
// (SPEC_FULL.md §13 supplemented feature; Stop alone leaves that to the
// caller per spec.md §5's cooperative-stop note).
func (s *Server) Shutdown(ctx context.Context) error {
	// Stop clears s.listeners, so keep them to count their open sockets.
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	if err := s.Stop(ctx); err != nil {
		return err
	}

	open := func() int64 {
		var n int64
		for _, l := range listeners {
			n += l.OpenConnections()
		}
		return n
	}

	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()

	for open() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	return nil
}

// Run starts the server and blocks until ctx is cancelled, then stops
// (spec.md §4.G "run() is a blocking variant that starts and waits for
// stop").
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return s.Stop(context.Background())
}
