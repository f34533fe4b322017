// File: transport/netconn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NetTransport adapts a net.Conn to api.Transport. Reads go through a
// bufio.Reader so bytes buffered while parsing the HTTP handshake are
// delivered before anything read from the socket afterwards.

package transport

import (
	"bufio"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/momentics/pingpong-ws/api"
)

// DefaultReadSize is the per-Recv read size.
const DefaultReadSize = 4096

// NetTransport implements api.Transport over a stream connection.
type NetTransport struct {
	conn     net.Conn
	br       *bufio.Reader
	readSize int

	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Option configures a NetTransport.
type Option func(*NetTransport)

// WithReader reads through br instead of the raw connection.
func WithReader(br *bufio.Reader) Option {
	return func(t *NetTransport) { t.br = br }
}

// WithReadSize sets the maximum size of one delivery.
func WithReadSize(n int) Option {
	return func(t *NetTransport) {
		if n > 0 {
			t.readSize = n
		}
	}
}

// WithWriteTimeout bounds every Send. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(t *NetTransport) { t.writeTimeout = d }
}

// NewNetTransport wraps conn.
func NewNetTransport(conn net.Conn, opts ...Option) *NetTransport {
	t := &NetTransport{conn: conn, readSize: DefaultReadSize}
	for _, o := range opts {
		o(t)
	}
	if t.br == nil {
		t.br = bufio.NewReaderSize(conn, t.readSize)
	}
	return t
}

// Conn returns the wrapped connection.
func (t *NetTransport) Conn() net.Conn {
	return t.conn
}

// Send writes all buffers in order.
func (t *NetTransport) Send(bufs [][]byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	nb := net.Buffers(bufs)
	_, err := nb.WriteTo(t.conn)
	return err
}

// Recv returns one delivery of at most readSize bytes.
func (t *NetTransport) Recv() ([][]byte, error) {
	buf := make([]byte, t.readSize)
	n, err := t.br.Read(buf)
	if n > 0 {
		return [][]byte{buf[:n]}, nil
	}
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, net.ErrClosed) {
		return nil, api.ErrTransportClosed
	}
	return nil, err
}

// Close closes the connection once; later calls return the first result.
func (t *NetTransport) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
