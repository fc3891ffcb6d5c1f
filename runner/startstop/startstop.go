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

// Package startstop provides the generic start/stop lifecycle primitive
// that runs the Host Listener's accept loop with an idempotent
// Start/Stop/Restart discipline.
package startstop

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StartStop is a restartable background task: a start function that runs
// until its context is cancelled or it returns, and a stop function invoked
// to request that exit.
type StartStop interface {
	// Start launches the start function in its own goroutine. If already
	// running, Start stops the previous run first (matching spec.md 4.G's
	// behavior for re-entrant Server Facade start attempts that must instead
	// be rejected at a higher layer via ConfigurationError).
	Start(ctx context.Context) error
	// Stop requests shutdown and waits for the start function to return. Stop
	// is idempotent: calling it when not running is a no-op.
	Stop(ctx context.Context) error
	// Restart stops then starts.
	Restart(ctx context.Context) error
	// IsRunning reports whether the start function is currently executing.
	IsRunning() bool
	// Uptime returns the duration since the last successful Start, or 0 if
	// not running.
	Uptime() time.Duration
	// LastError returns the error returned by the most recent run, if any.
	LastError() error
}

// StartFunc runs until ctx is cancelled, returning any terminal error.
type StartFunc func(ctx context.Context) error

// StopFunc performs any additional cleanup beyond cancelling the start
// context; it may be nil.
type StopFunc func(ctx context.Context) error

type runner struct {
	mu sync.Mutex

	start StartFunc
	stop  StopFunc

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	since   time.Time
	lastErr error
}

// New builds a StartStop around the given start/stop functions.
func New(start StartFunc, stop StopFunc) StartStop {
	return &runner{start: start, stop: stop}
}

func (o *runner) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		if err := o.Stop(ctx); err != nil {
			return err
		}
		o.mu.Lock()
	}

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.cancel = cancel
	o.done = done
	o.running = true
	o.since = time.Now()
	o.lastErr = nil
	o.mu.Unlock()

	go func() {
		defer close(done)
		err := o.start(cctx)

		o.mu.Lock()
		o.running = false
		o.lastErr = err
		o.mu.Unlock()
	}()

	return nil
}

func (o *runner) Stop(ctx context.Context) error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}

	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("startstop: stop: %w", ctx.Err())
	}

	if o.stop != nil {
		return o.stop(ctx)
	}

	return nil
}

func (o *runner) Restart(ctx context.Context) error {
	if err := o.Stop(ctx); err != nil {
		return err
	}

	return o.Start(ctx)
}

func (o *runner) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.running
}

func (o *runner) Uptime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return 0
	}

	return time.Since(o.since)
}

func (o *runner) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.lastErr
}
