// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the byte-stream transport abstraction a WebSocket connection
// is driven over. Deliveries are opaque: one Recv may carry part of a
// frame, one frame, or several frames.

package api

// Transport is a full-duplex byte stream delivering buffers as units.
type Transport interface {
	// Send writes the buffers in order.
	Send(buffers [][]byte) error

	// Recv blocks until at least one delivery is available.
	// io.EOF or ErrTransportClosed report an orderly shutdown.
	Recv() ([][]byte, error)

	// Close releases the underlying resource. It must be safe to call twice.
	Close() error
}
