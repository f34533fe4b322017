// File: client/dial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Stream setup for ws:// and wss:// targets.

package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// ErrInvalidScheme is returned for URLs other than ws:// and wss://.
var ErrInvalidScheme = errors.New("websocket URL scheme must be ws or wss")

// parseURL validates raw and fills in the default port.
func parseURL(raw string) (*url.URL, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, "", fmt.Errorf("parse url: %w", err)
	}
	var port string
	switch u.Scheme {
	case "ws":
		port = "80"
	case "wss":
		port = "443"
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidScheme, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, "", fmt.Errorf("parse url: missing host in %q", raw)
	}
	if p := u.Port(); p != "" {
		port = p
	}
	return u, net.JoinHostPort(u.Hostname(), port), nil
}

// dialStream opens TCP to addr and, for wss, completes a TLS handshake with
// the server name taken from u.
func dialStream(ctx context.Context, u *url.URL, addr string, tlsCfg *tls.Config) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if u.Scheme != "wss" {
		return conn, nil
	}

	cfg := &tls.Config{}
	if tlsCfg != nil {
		cfg = tlsCfg.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = u.Hostname()
	}
	tconn := tls.Client(conn, cfg)
	if err := tconn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake %s: %w", addr, err)
	}
	return tconn, nil
}
