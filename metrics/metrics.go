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

// Package metrics exposes the server core's instrumentation as Prometheus
// collectors: open-connection gauges, keep-alive-reaper expiry counts, and
// heartbeat ping/disconnect counts. Collection is entirely optional -- a
// Metrics built with a nil Registerer still works, it is simply never
// scraped.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the server core reports against.
type Metrics struct {
	ConnectionsOpen      prometheus.Gauge
	ConnectionsExpired   prometheus.Counter
	HeartbeatPingsSent   prometheus.Counter
	HeartbeatDisconnects prometheus.Counter
}

// New builds the collector set and registers it against reg. reg may be
// nil, in which case the collectors are usable but never exposed -- the
// caller chose not to run a /metrics endpoint.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "polysrv",
			Name:      "connections_open",
			Help:      "Currently connected sockets across every listener.",
		}),
		ConnectionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polysrv",
			Name:      "connections_expired_total",
			Help:      "Connections force-closed by the keep-alive reaper before handshake completed.",
		}),
		HeartbeatPingsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polysrv",
			Name:      "heartbeat_pings_sent_total",
			Help:      "Pings sent by the heartbeat manager.",
		}),
		HeartbeatDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "polysrv",
			Name:      "heartbeat_disconnects_total",
			Help:      "Sockets disconnected by the heartbeat manager for an unanswered ping.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ConnectionsOpen, m.ConnectionsExpired, m.HeartbeatPingsSent, m.HeartbeatDisconnects)
	}

	return m
}
