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

// Package ticker provides the generic periodic-task primitive driving the
// Keep-Alive Reaper's scan loop and the Heartbeat Manager's ping cadence.
package ticker

import (
	"context"
	"sync"
	"time"
)

// TickFunc is invoked on every tick until it returns an error or ctx is
// cancelled.
type TickFunc func(ctx context.Context, t *time.Ticker) error

// Ticker is a restartable periodic task.
type Ticker interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	IsRunning() bool
	Uptime() time.Duration
}

type tck struct {
	mu sync.Mutex

	period time.Duration
	fn     TickFunc

	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	since   time.Time
}

// New builds a Ticker that calls fn every period.
func New(period time.Duration, fn TickFunc) Ticker {
	return &tck{period: period, fn: fn}
}

func (o *tck) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil
	}

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.cancel = cancel
	o.done = done
	o.running = true
	o.since = time.Now()
	o.mu.Unlock()

	go o.loop(cctx, done)

	return nil
}

func (o *tck) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	t := time.NewTicker(o.period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := o.fn(ctx, t); err != nil {
				return
			}
		}
	}
}

func (o *tck) Stop(ctx context.Context) error {
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
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *tck) Restart(ctx context.Context) error {
	if err := o.Stop(ctx); err != nil {
		return err
	}

	return o.Start(ctx)
}

func (o *tck) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.running
}

func (o *tck) Uptime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return 0
	}

	return time.Since(o.since)
}
