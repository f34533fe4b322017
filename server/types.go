package server

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr       string        // TCP bind address, e.g. ":3300"
	Subprotocol      string        // the one supported sub-protocol; "" accepts none
	HandshakeTimeout time.Duration // deadline for reading the upgrade request
	ReadBufferSize   int           // per-connection read size
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       ":3300",
		Subprotocol:      protocol.DefaultSubprotocol,
		HandshakeTimeout: 5 * time.Second,
		ReadBufferSize:   4096,
	}
}

// Stats is a snapshot of server counters.
type Stats struct {
	Accepted int64 // completed handshakes
	Rejected int64 // failed handshakes
	Active   int64 // connections not yet CLOSED
}

// Server accepts TCP connections, performs the upgrade handshake and runs
// one protocol.WSConnection per accepted client.
type Server struct {
	cfg     Config
	handler protocol.EventHandler
	logger  *slog.Logger
	metrics *control.MetricsRegistry

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]*protocol.WSConnection // nil value while handshaking
	closed  bool
	serving bool

	accepted atomic.Int64
	rejected atomic.Int64
	active   atomic.Int64
}
