// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport interface.

package fake

import (
	"sync"

	"github.com/momentics/pingpong-ws/api"
)

// Transport is an in-memory api.Transport. Deliveries queued with Deliver
// are returned one per Recv; Recv blocks until a delivery, a Fail or Close.
type Transport struct {
	mu         sync.Mutex
	sendBuffer [][]byte
	sendError  error
	closeCalls int

	recv      chan []byte
	fail      chan error
	closed    chan struct{}
	closeOnce sync.Once
}

// NewTransport creates a new fake transport.
func NewTransport() *Transport {
	return &Transport{
		recv:   make(chan []byte, 64),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

// Send implements api.Transport.Send.
func (t *Transport) Send(buffers [][]byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isClosed() {
		return api.ErrTransportClosed
	}
	if t.sendError != nil {
		return t.sendError
	}
	for _, buf := range buffers {
		bufCopy := make([]byte, len(buf))
		copy(bufCopy, buf)
		t.sendBuffer = append(t.sendBuffer, bufCopy)
	}
	return nil
}

// Recv implements api.Transport.Recv.
func (t *Transport) Recv() ([][]byte, error) {
	select {
	case b := <-t.recv:
		return [][]byte{b}, nil
	case err := <-t.fail:
		return nil, err
	case <-t.closed:
		return nil, api.ErrTransportClosed
	}
}

// Close implements api.Transport.Close.
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closeCalls++
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// Deliver queues data to be returned by a later Recv call.
func (t *Transport) Deliver(data []byte) {
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	t.recv <- dataCopy
}

// Fail makes the next Recv return err, as a broken socket would.
func (t *Transport) Fail(err error) {
	t.fail <- err
}

// SetSendError configures the transport to return an error on Send.
func (t *Transport) SetSendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendError = err
}

// SentData returns all data that has been sent via Send.
func (t *Transport) SentData() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	sent := make([][]byte, len(t.sendBuffer))
	copy(sent, t.sendBuffer)
	return sent
}

// CloseCalls returns how many times Close was called.
func (t *Transport) CloseCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls
}

// Closed reports whether Close has been called.
func (t *Transport) Closed() bool {
	return t.isClosed()
}

func (t *Transport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
