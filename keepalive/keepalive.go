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

// Package keepalive implements the per-listener Keep-Alive Reaper (spec.md
// §4.E): a concurrent scope of not-yet-handed-over connections, scanned
// periodically and force-closed on expiry.
package keepalive

import (
	"context"
	"sync"
	"time"

	libtck "github.com/nabbar/polysrv/runner/ticker"
)

// Entry is the minimal surface the reaper needs from a tracked connection.
type Entry interface {
	ID() string
	StateOrdinal() uint8
	Deadline() time.Time
	Disconnect()
}

// pendingState and handshakingState mirror connection.Pending/Handshaking's
// numeric values; the reaper only needs to compare, not import the
// connection package (avoids a cycle, since connection has no need to know
// about the reaper).
const (
	pendingState     uint8 = 0
	handshakingState uint8 = 1
)

// Scope is the per-listener set of connections awaiting handover.
type Scope struct {
	m sync.Map // id string -> Entry

	onExpire func(Entry)
}

// NewScope returns an empty Scope. onExpire, if non-nil, is invoked for
// every connection the reaper force-closes (e.g. to increment a metric).
func NewScope(onExpire func(Entry)) *Scope {
	return &Scope{onExpire: onExpire}
}

// Add registers c in the scope (spec.md 4.D step 2: connections are added
// in Pending state immediately after construction).
func (s *Scope) Add(c Entry) {
	s.m.Store(c.ID(), c)
}

// Remove drops c from the scope. Called by the Accept Pipeline the moment a
// connection transitions to Connected (SPEC_FULL.md §10 decision 1), so the
// reaper never races the protocol's own lifecycle management.
func (s *Scope) Remove(id string) {
	s.m.Delete(id)
}

// Len reports how many connections are currently tracked.
func (s *Scope) Len() int {
	n := 0
	s.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Scope) scan(now time.Time) {
	s.m.Range(func(key, value any) bool {
		e := value.(Entry)
		st := e.StateOrdinal()

		if st != pendingState && st != handshakingState {
			// already handed over; Remove should have been called, but guard
			// against a late race by dropping it here too.
			s.m.Delete(key)
			return true
		}

		if now.After(e.Deadline()) {
			s.m.Delete(key)
			e.Disconnect()

			if s.onExpire != nil {
				s.onExpire(e)
			}
		}

		return true
	})
}

// Reaper drives Scope.scan on a fixed tick interval.
type Reaper struct {
	tk libtck.Ticker
}

// tickInterval implements spec.md §4.E's "min(1s, request-timeout/4)".
func tickInterval(requestTimeout time.Duration) time.Duration {
	quarter := requestTimeout / 4
	if quarter <= 0 {
		quarter = time.Second
	}

	if quarter < time.Second {
		return quarter
	}

	return time.Second
}

// NewReaper builds a Reaper that scans scope at the interval derived from
// requestTimeout.
func NewReaper(scope *Scope, requestTimeout time.Duration) *Reaper {
	r := &Reaper{}

	r.tk = libtck.New(tickInterval(requestTimeout), func(ctx context.Context, t *time.Ticker) error {
		scope.scan(time.Now())
		return nil
	})

	return r
}

// Start begins the periodic scan; it returns immediately.
func (r *Reaper) Start(ctx context.Context) error {
	return r.tk.Start(ctx)
}

// Stop halts the periodic scan.
func (r *Reaper) Stop(ctx context.Context) error {
	return r.tk.Stop(ctx)
}
