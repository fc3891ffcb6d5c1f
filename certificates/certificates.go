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

// Package certificates wraps crypto/tls.Config behind the small surface the
// Accept Pipeline needs: a certificate pair, a minimum/maximum TLS version,
// and a bypass-validation switch for test/diagnostic deployments.
package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// Version selects the TLS version floor/ceiling, matching spec.md §6's
// "tls version selector" field ({tls, tls11, tls12, tls13, none}).
type Version uint8

const (
	VersionNone Version = iota
	VersionTLS
	VersionTLS11
	VersionTLS12
	VersionTLS13
)

func (v Version) toCrypto() uint16 {
	switch v {
	case VersionTLS11:
		return tls.VersionTLS11
	case VersionTLS12:
		return tls.VersionTLS12
	case VersionTLS13:
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}

// Config is the validated source for a TLSConfig, tagged the way every
// config struct in this repository is tagged.
type Config struct {
	CertFile string `mapstructure:"cert_file" json:"cert_file" yaml:"cert_file" toml:"cert_file" validate:"required_with=KeyFile"`
	KeyFile  string `mapstructure:"key_file" json:"key_file" yaml:"key_file" toml:"key_file" validate:"required_with=CertFile"`

	MinVersion Version `mapstructure:"min_version" json:"min_version" yaml:"min_version" toml:"min_version"`
	MaxVersion Version `mapstructure:"max_version" json:"max_version" yaml:"max_version" toml:"max_version"`

	// BypassValidation accepts any peer certificate (spec.md §6
	// "bypass-ssl-validation"); never set true in production.
	BypassValidation bool `mapstructure:"bypass_validation" json:"bypass_validation" yaml:"bypass_validation" toml:"bypass_validation"`
}

// TLSConfig builds *tls.Config instances for a Host Listener.
type TLSConfig interface {
	// TLS returns a *tls.Config bound to serverName, suitable for
	// tls.Server(conn, cfg).
	TLS(serverName string) (*tls.Config, error)
}

type tlsCfg struct {
	cfg  Config
	cert tls.Certificate
}

// New loads the certificate pair from cfg and returns a TLSConfig. Returns
// an error if the certificate files cannot be parsed.
func New(cfg Config) (TLSConfig, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, fmt.Errorf("certificates: cert_file and key_file are both required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("certificates: load key pair: %w", err)
	}

	return &tlsCfg{cfg: cfg, cert: cert}, nil
}

func (o *tlsCfg) TLS(serverName string) (*tls.Config, error) {
	c := &tls.Config{
		Certificates: []tls.Certificate{o.cert},
		ServerName:   serverName,
		MinVersion:   o.cfg.MinVersion.toCrypto(),
		MaxVersion:   o.cfg.MaxVersion.toCrypto(),
	}

	if o.cfg.MaxVersion == VersionNone {
		c.MaxVersion = 0
	}

	if o.cfg.BypassValidation {
		c.InsecureSkipVerify = true
		c.ClientAuth = tls.RequireAnyClientCert
	}

	return c, nil
}

// NewPool is a small helper for tests that need a self-contained CA pool;
// production deployments rely on the system pool via tls.Config's nil
// RootCAs/ClientCAs default.
func NewPool(pem []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("certificates: no certificate found in PEM data")
	}

	return pool, nil
}
