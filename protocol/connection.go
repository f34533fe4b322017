// File: protocol/connection.go
// Package protocol implements the WebSocket connection state machine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WSConnection drives one end of a connection through
// CONNECTING → OPEN → CLOSING → CLOSED. A single dispatch loop (Run) owns
// the frame buffer and feeds it with deliveries read by a helper goroutine;
// the owner observes the connection through an EventHandler.

package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/pingpong-ws/api"
	"github.com/momentics/pingpong-ws/internal/logging"
)

// ErrInvalidTransition is returned by Open outside CONNECTING.
var ErrInvalidTransition = errors.New("invalid connection state transition")

// ConnState is the lifecycle state of one connection endpoint.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("ConnState(%d)", int32(s))
	}
}

// Role selects endpoint-specific close behavior.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// EventHandler receives connection events. Calls are made from the
// connection's dispatch goroutine, one at a time.
type EventHandler interface {
	OnOpen(c *WSConnection)
	OnMessage(c *WSConnection, text string)
	OnPing(c *WSConnection)
	OnDecodeError(c *WSConnection, err error)
	OnClose(c *WSConnection, err error)
}

// NopHandler ignores every event. Embed it to implement only some callbacks.
type NopHandler struct{}

func (NopHandler) OnOpen(*WSConnection)               {}
func (NopHandler) OnMessage(*WSConnection, string)    {}
func (NopHandler) OnPing(*WSConnection)               {}
func (NopHandler) OnDecodeError(*WSConnection, error) {}
func (NopHandler) OnClose(*WSConnection, error)       {}

// ConnOption configures a WSConnection.
type ConnOption func(*WSConnection)

// WithRole sets the endpoint role. Defaults to RoleServer.
func WithRole(r Role) ConnOption {
	return func(c *WSConnection) { c.role = r }
}

// WithHandler sets the event handler.
func WithHandler(h EventHandler) ConnOption {
	return func(c *WSConnection) {
		if h != nil {
			c.handler = h
		}
	}
}

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) ConnOption {
	return func(c *WSConnection) { c.logger = logging.OrNop(l) }
}

// WithSubprotocol records the negotiated sub-protocol.
func WithSubprotocol(p string) ConnOption {
	return func(c *WSConnection) { c.subprotocol = p }
}

// WithLabel sets a human label used in logs, such as the client key.
func WithLabel(label string) ConnOption {
	return func(c *WSConnection) { c.label = label }
}

// WithBufferSize sets the initial frame buffer capacity.
func WithBufferSize(n int) ConnOption {
	return func(c *WSConnection) { c.frames = NewFrameBuffer(n) }
}

// WSConnection is one endpoint of a WebSocket connection.
type WSConnection struct {
	id          string
	label       string
	role        Role
	subprotocol string
	transport   api.Transport
	handler     EventHandler
	logger      *slog.Logger
	frames      *FrameBuffer

	mu         sync.Mutex // guards state, err, peerClosed and transport writes
	state      ConnState
	err        error
	openedAt   time.Time
	peerClosed bool

	closeOnce sync.Once
	done      chan struct{}
	running   atomic.Bool

	bytesReceived  atomic.Int64
	bytesSent      atomic.Int64
	framesReceived atomic.Int64
	framesSent     atomic.Int64
	decodeFailures atomic.Int64
}

// NewWSConnection wraps tr in a connection in the CONNECTING state.
func NewWSConnection(tr api.Transport, opts ...ConnOption) *WSConnection {
	c := &WSConnection{
		id:      uuid.NewString(),
		role:    RoleServer,
		handler: NopHandler{},
		logger:  logging.Nop(),
		done:    make(chan struct{}),
	}
	c.transport = tr
	for _, o := range opts {
		o(c)
	}
	if c.frames == nil {
		c.frames = NewFrameBuffer(0)
	}
	c.logger = c.logger.With("conn", c.id, "role", c.role.String())
	if c.label != "" {
		c.logger = c.logger.With("key", c.label)
	}
	return c
}

// ID returns the connection's unique identifier.
func (c *WSConnection) ID() string { return c.id }

// Label returns the log label, usually the client's handshake key.
func (c *WSConnection) Label() string { return c.label }

// Role returns the endpoint role.
func (c *WSConnection) Role() Role { return c.role }

// Subprotocol returns the negotiated sub-protocol, or "".
func (c *WSConnection) Subprotocol() string { return c.subprotocol }

// State returns the current state.
func (c *WSConnection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the connection reaches CLOSED.
func (c *WSConnection) Done() <-chan struct{} { return c.done }

// Err returns the transport failure that closed the connection, or nil for
// an orderly close.
func (c *WSConnection) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Open moves CONNECTING → OPEN and notifies the handler.
func (c *WSConnection) Open() error {
	c.mu.Lock()
	if c.state != StateConnecting {
		from := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, StateOpen)
	}
	c.setStateLocked(StateOpen)
	c.openedAt = time.Now()
	c.mu.Unlock()

	c.handler.OnOpen(c)
	return nil
}

// SendText writes one text frame. Outside OPEN it does nothing.
func (c *WSConnection) SendText(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil
	}
	data, err := EncodeTextFrame(s)
	if err != nil {
		return err
	}
	return c.writeLocked(data)
}

// Close starts a graceful close: OPEN → CLOSING and one close frame is
// written. The connection reaches CLOSED when the transport shuts down.
// Outside OPEN it does nothing.
func (c *WSConnection) Close() error {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return nil
	}
	c.setStateLocked(StateClosing)
	err := c.writeLocked(EncodeCloseFrame())
	c.mu.Unlock()

	if err != nil {
		c.finish(err)
	}
	return err
}

// Release shuts the transport down without a close handshake and moves the
// connection to CLOSED.
func (c *WSConnection) Release() {
	c.finish(nil)
}

// Run drives the connection until it reaches CLOSED. It returns nil on an
// orderly shutdown, ctx.Err() on cancellation and the transport error
// otherwise. Run may be called only once.
func (c *WSConnection) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: connection already running", api.ErrInvalidArgument)
	}

	deliveries := make(chan [][]byte)
	recvErr := make(chan error, 1)
	go c.readLoop(deliveries, recvErr)

	for {
		select {
		case <-ctx.Done():
			c.finish(nil)
			return ctx.Err()
		case <-c.done:
			return c.Err()
		case err := <-recvErr:
			c.finish(transportError(err))
			return c.Err()
		case bufs := <-deliveries:
			for _, b := range bufs {
				c.dispatch(b)
			}
		}
	}
}

// Stats returns a snapshot of traffic counters.
func (c *WSConnection) Stats() api.ConnStats {
	c.mu.Lock()
	opened := c.openedAt
	c.mu.Unlock()
	return api.ConnStats{
		FramesReceived: c.framesReceived.Load(),
		FramesSent:     c.framesSent.Load(),
		BytesReceived:  c.bytesReceived.Load(),
		BytesSent:      c.bytesSent.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		OpenedAt:       opened,
	}
}

func (c *WSConnection) readLoop(deliveries chan<- [][]byte, recvErr chan<- error) {
	for {
		bufs, err := c.transport.Recv()
		if err != nil {
			recvErr <- err
			return
		}
		select {
		case deliveries <- bufs:
		case <-c.done:
			return
		}
	}
}

func (c *WSConnection) dispatch(b []byte) {
	if len(b) == 0 || c.State() == StateClosed {
		return
	}
	c.bytesReceived.Add(int64(len(b)))
	c.frames.Feed(b)
	for {
		m, ok := c.frames.Next()
		if !ok {
			return
		}
		if !c.accepts(m) {
			continue
		}
		c.handleMessage(m)
	}
}

// accepts reports whether m may still be dispatched. Nothing is dispatched
// once CLOSED, and after the peer's close only a further close is handled.
func (c *WSConnection) accepts(m Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return false
	}
	return !c.peerClosed || m.Kind == MessageClose
}

func (c *WSConnection) handleMessage(m Message) {
	switch m.Kind {
	case MessageText:
		c.framesReceived.Add(1)
		c.handler.OnMessage(c, m.Text)

	case MessagePing:
		c.framesReceived.Add(1)
		c.mu.Lock()
		var err error
		if c.state == StateOpen {
			err = c.writeLocked(EncodePongFrame())
		}
		c.mu.Unlock()
		if err != nil {
			c.finish(err)
			return
		}
		c.handler.OnPing(c)

	case MessageClose:
		c.framesReceived.Add(1)
		c.mu.Lock()
		wasOpen := c.state == StateOpen
		c.peerClosed = true
		var err error
		if wasOpen {
			c.setStateLocked(StateClosing)
			err = c.writeLocked(EncodeCloseFrame())
		}
		c.mu.Unlock()
		c.logger.Debug("close received", "replied", wasOpen)
		// The server tears the transport down; a client that initiated the
		// close has now seen the echo and may release it too.
		if err != nil || c.role == RoleServer || !wasOpen {
			c.finish(err)
		}

	case MessageFailure:
		c.decodeFailures.Add(1)
		c.handler.OnDecodeError(c, api.Wrap(api.ErrCodeDecodeFailure, m.Err))
	}
}

// writeLocked sends one encoded frame. c.mu must be held.
func (c *WSConnection) writeLocked(frame []byte) error {
	if err := c.transport.Send([][]byte{frame}); err != nil {
		return api.Wrap(api.ErrCodeTransport, err)
	}
	c.framesSent.Add(1)
	c.bytesSent.Add(int64(len(frame)))
	return nil
}

func (c *WSConnection) setStateLocked(to ConnState) {
	c.logger.Debug("state transition", "from", c.state.String(), "to", to.String())
	c.state = to
}

// finish moves to CLOSED, releases the transport and notifies the handler,
// exactly once. Done is closed after OnClose returns.
func (c *WSConnection) finish(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.setStateLocked(StateClosed)
		c.err = err
		c.mu.Unlock()

		if cerr := c.transport.Close(); cerr != nil && !isClosedError(cerr) {
			c.logger.Debug("transport close", "error", cerr)
		}
		c.handler.OnClose(c, err)
		close(c.done)
	})
}

// transportError maps an orderly shutdown to nil.
func transportError(err error) error {
	if isClosedError(err) {
		return nil
	}
	return api.Wrap(api.ErrCodeTransport, err)
}

func isClosedError(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, api.ErrTransportClosed) ||
		errors.Is(err, net.ErrClosed)
}
