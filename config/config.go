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

// Package config is the Options source collaborator described in spec.md
// §6: one record per configured host plus the process-wide accept/keep-alive
// tuning fields, tagged for mapstructure/json/yaml/toml decoding and
// validated with go-playground/validator.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	libcrt "github.com/nabbar/polysrv/certificates"
	libdur "github.com/nabbar/polysrv/duration"
	libptc "github.com/nabbar/polysrv/network/protocol"
)

// Host is one Host Listener's bind record (spec.md §6 "hosts").
type Host struct {
	Name    string        `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`
	Network libptc.Network `mapstructure:"network" json:"network" yaml:"network" toml:"network"`
	Address string        `mapstructure:"address" json:"address" yaml:"address" toml:"address" validate:"required"`
	Port    uint16        `mapstructure:"port" json:"port" yaml:"port" toml:"port"`

	TLSEnabled bool          `mapstructure:"tls_enabled" json:"tls_enabled" yaml:"tls_enabled" toml:"tls_enabled"`
	TLS        libcrt.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate enforces spec.md 4.D.3's "TLS only valid on TCP/TCP4/TCP6"
// coupling, mirrored from the teacher's socket/config validation rule.
func (h Host) Validate() error {
	if h.TLSEnabled && !h.Network.IsTCP() {
		return fmt.Errorf("config: host %q: tls is only valid on a tcp network, got %s", h.Name, h.Network)
	}

	return nil
}

// Options is the full Options source (spec.md §6 table).
type Options struct {
	Name string `mapstructure:"name" json:"name" yaml:"name" toml:"name" validate:"required"`

	Hosts []Host `mapstructure:"hosts" json:"hosts" yaml:"hosts" toml:"hosts" validate:"required,min=1,dive"`

	RequestTimeout libdur.Duration `mapstructure:"request_timeout" json:"request_timeout" yaml:"request_timeout" toml:"request_timeout" validate:"required"`
	PingInterval   libdur.Duration `mapstructure:"ping_interval" json:"ping_interval" yaml:"ping_interval" toml:"ping_interval"`

	NoDelay                   bool `mapstructure:"no_delay" json:"no_delay" yaml:"no_delay" toml:"no_delay"`
	QuickAck                  bool `mapstructure:"quick_ack" json:"quick_ack" yaml:"quick_ack" toml:"quick_ack"`
	MaximumPendingConnections int  `mapstructure:"maximum_pending_connections" json:"maximum_pending_connections" yaml:"maximum_pending_connections" toml:"maximum_pending_connections"`
	BypassSSLValidation       bool `mapstructure:"bypass_ssl_validation" json:"bypass_ssl_validation" yaml:"bypass_ssl_validation" toml:"bypass_ssl_validation"`
}

// Validate runs struct-tag validation then the per-host TLS/network rule,
// matching the teacher's `libval.New().Struct(c)` pattern.
func (o Options) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for _, h := range o.Hosts {
		if err := h.Validate(); err != nil {
			return err
		}
	}

	return nil
}
