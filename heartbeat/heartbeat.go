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

// Package heartbeat implements the process-wide, opt-in Heartbeat Manager
// (spec.md §4.F): a ticker that pings Connected sockets which opted in,
// skipping recently-active ones (smart health check) and disconnecting any
// socket whose previous ping went unanswered.
package heartbeat

import (
	"context"
	"sync"
	"time"

	libtck "github.com/nabbar/polysrv/runner/ticker"
)

// Socket is the per-connection surface the Heartbeat Manager needs.
type Socket interface {
	ID() string
	LastActivity() time.Time
	SmartHealthCheck() bool
	PongRequired() bool
	SetPongRequired(bool)
	Ping() bool
	Disconnect()
}

// Manager pings every registered, heartbeat-opted-in Socket on a fixed
// interval.
type Manager struct {
	mu      sync.Mutex
	sockets map[string]Socket

	interval time.Duration
	tk       libtck.Ticker

	onPingSent   func(Socket)
	onDisconnect func(Socket)
}

// New builds a Manager. interval == 0 means heartbeat is disabled
// (spec.md §6 "ping-interval (seconds, 0 disables)"); callers should simply
// not call Start in that case.
func New(interval time.Duration, onPingSent, onDisconnect func(Socket)) *Manager {
	m := &Manager{
		sockets:      make(map[string]Socket),
		interval:     interval,
		onPingSent:   onPingSent,
		onDisconnect: onDisconnect,
	}

	m.tk = libtck.New(interval, func(ctx context.Context, t *time.Ticker) error {
		m.tick()
		return nil
	})

	return m
}

// Register opts s into heartbeat scanning.
func (m *Manager) Register(s Socket) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sockets[s.ID()] = s
}

// Unregister removes s from heartbeat scanning (called on disconnect).
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sockets, id)
}

func (m *Manager) snapshot() []Socket {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Socket, 0, len(m.sockets))
	for _, s := range m.sockets {
		out = append(out, s)
	}

	return out
}

func (m *Manager) tick() {
	for _, s := range m.snapshot() {
		// spec.md §4.F: a prior unanswered ping disconnects the socket before
		// any new ping is attempted.
		if s.PongRequired() {
			m.Unregister(s.ID())
			s.Disconnect()

			if m.onDisconnect != nil {
				m.onDisconnect(s)
			}

			continue
		}

		if s.SmartHealthCheck() && time.Since(s.LastActivity()) < m.interval {
			continue
		}

		s.SetPongRequired(true)
		s.Ping()

		if m.onPingSent != nil {
			m.onPingSent(s)
		}
	}
}

// Start begins the periodic scan.
func (m *Manager) Start(ctx context.Context) error {
	if m.interval <= 0 {
		return nil
	}

	return m.tk.Start(ctx)
}

// Stop halts the periodic scan.
func (m *Manager) Stop(ctx context.Context) error {
	return m.tk.Stop(ctx)
}
