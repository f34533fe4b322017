package client

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
	"github.com/momentics/pingpong-ws/protocol"
)

// Config holds client connection parameters.
type Config struct {
	URL              string        // ws:// or wss:// target
	Subprotocol      string        // requested sub-protocol; "" requests none
	HandshakeTimeout time.Duration // bounds dial, TLS and upgrade; 0 = none
	TLSConfig        *tls.Config   // used for wss://; ServerName defaults to the URL host
	ReadBufferSize   int           // per-Recv read size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://localhost:3300",
		Subprotocol:      protocol.DefaultSubprotocol,
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// WithMetrics counts received messages in mr.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(c *Client) { c.metrics = mr }
}

// WithMessageBuffer sets the capacity of the Messages channel.
func WithMessageBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.messages = make(chan string, n)
		}
	}
}
