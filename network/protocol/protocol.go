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

// Package protocol enumerates the transport networks a Host Listener may
// bind to. Only the stream-oriented members support TLS; UDP and Unix are
// declared for config-shape completeness (mirroring the teacher's own
// network/protocol package) but this repository's listener rejects any
// network other than the TCP family, matching spec.md's TCP-only scope.
package protocol

import (
	"fmt"
	"strings"
)

// Network identifies a transport network for a Host Listener.
type Network uint8

const (
	TCP Network = iota
	TCP4
	TCP6
	UDP
	Unix
)

func (n Network) String() string {
	switch n {
	case TCP:
		return "tcp"
	case TCP4:
		return "tcp4"
	case TCP6:
		return "tcp6"
	case UDP:
		return "udp"
	case Unix:
		return "unix"
	default:
		return "unknown"
	}
}

// IsTCP reports whether n is one of the TCP/TCP4/TCP6 family, the only
// family this framework's listener accepts and the only family on which TLS
// is valid (mirrors the teacher's config.tls_test.go TLS-on-TCP-only rule).
func (n Network) IsTCP() bool {
	return n == TCP || n == TCP4 || n == TCP6
}

// Parse maps a lower/upper-case name to a Network.
func Parse(s string) (Network, error) {
	switch strings.ToLower(s) {
	case "tcp":
		return TCP, nil
	case "tcp4":
		return TCP4, nil
	case "tcp6":
		return TCP6, nil
	case "udp":
		return UDP, nil
	case "unix":
		return Unix, nil
	default:
		return TCP, fmt.Errorf("protocol: unknown network %q", s)
	}
}

func (n Network) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *Network) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}

	*n = v
	return nil
}
