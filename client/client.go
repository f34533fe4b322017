// File: client/client.go
// Package client provides the WebSocket client endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dial performs the opening handshake over ws:// or wss:// and runs the
// connection's dispatch loop in the background. Text messages reach the
// caller through Messages and through an optional protocol.EventHandler.

package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
	"github.com/momentics/pingpong-ws/protocol"
	"github.com/momentics/pingpong-ws/transport"
)

// Client is a connected WebSocket client.
type Client struct {
	conn     *protocol.WSConnection
	handler  protocol.EventHandler
	logger   *slog.Logger
	metrics  *control.MetricsRegistry
	messages chan string
	runDone  chan struct{}
	runErr   error

	msgMu     sync.Mutex // guards messages against close
	msgClosed bool
}

// Dial connects to cfg.URL, completes the opening handshake and starts the
// connection. handler may be nil. ctx bounds the dial and handshake only.
func Dial(ctx context.Context, cfg Config, handler protocol.EventHandler, opts ...Option) (*Client, error) {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	if handler == nil {
		handler = protocol.NopHandler{}
	}
	c := &Client{
		handler: handler,
		logger:  logging.Nop(),
		runDone: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.messages == nil {
		c.messages = make(chan string, 64)
	}

	u, addr, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	dctx := ctx
	if cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, cfg.HandshakeTimeout)
		defer cancel()
	}

	conn, err := dialStream(dctx, u, addr, cfg.TLSConfig)
	if err != nil {
		return nil, err
	}
	if deadline, ok := dctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	hc, err := protocol.NewClientHandshake(cfg.Subprotocol)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(protocol.BuildHandshakeRequest(u, hc)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake write: %w", err)
	}

	hr := protocol.NewHandshakeReader(conn, cfg.ReadBufferSize)
	resp, err := http.ReadResponse(hr.Reader, &http.Request{Method: http.MethodGet, URL: u})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake read response: %w", err)
	}
	proto, err := protocol.VerifyHandshakeResponse(resp, hc)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})
	hr.Lift()

	log := c.logger.With("remote", addr)
	tr := transport.NewNetTransport(conn,
		transport.WithReader(hr.Reader),
		transport.WithReadSize(cfg.ReadBufferSize))
	c.conn = protocol.NewWSConnection(tr,
		protocol.WithRole(protocol.RoleClient),
		protocol.WithHandler(clientEvents{c}),
		protocol.WithLogger(log),
		protocol.WithSubprotocol(proto),
		protocol.WithLabel(hc.Key),
		protocol.WithBufferSize(cfg.ReadBufferSize))

	log.Info("connected", "url", u.String(), "subprotocol", proto)
	if err := c.conn.Open(); err != nil {
		c.conn.Release()
		return nil, err
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		c.runErr = c.conn.Run(runCtx)
		close(c.runDone)
	}()
	return c, nil
}

// Send writes one text message. Outside OPEN it does nothing.
func (c *Client) Send(text string) error {
	return c.conn.SendText(text)
}

// Close starts the closing handshake. Outside OPEN it does nothing.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Release drops the connection without a closing handshake.
func (c *Client) Release() {
	c.conn.Release()
}

// Wait blocks until the dispatch loop has stopped or ctx is done and
// returns the loop's result.
func (c *Client) Wait(ctx context.Context) error {
	select {
	case <-c.runDone:
		return c.runErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the connection state.
func (c *Client) State() protocol.ConnState { return c.conn.State() }

// Done is closed when the connection reaches CLOSED.
func (c *Client) Done() <-chan struct{} { return c.conn.Done() }

// Err returns the transport failure that closed the connection, if any.
func (c *Client) Err() error { return c.conn.Err() }

// Subprotocol returns the sub-protocol selected by the server, or "".
func (c *Client) Subprotocol() string { return c.conn.Subprotocol() }

// Conn exposes the underlying connection.
func (c *Client) Conn() *protocol.WSConnection { return c.conn }

// Messages delivers received text messages. When the channel is full new
// messages are dropped from it; the EventHandler still sees them. The
// channel is closed when the connection reaches CLOSED.
func (c *Client) Messages() <-chan string { return c.messages }

// clientEvents forwards connection events to the caller's handler and the
// Messages channel.
type clientEvents struct{ c *Client }

func (e clientEvents) OnOpen(conn *protocol.WSConnection) {
	e.c.handler.OnOpen(conn)
}

func (e clientEvents) OnMessage(conn *protocol.WSConnection, text string) {
	e.c.metrics.Add(control.MetricMessagesText, 1)
	e.c.msgMu.Lock()
	if !e.c.msgClosed {
		select {
		case e.c.messages <- text:
		default:
			e.c.logger.Warn("message channel full, dropping", "conn", conn.ID())
		}
	}
	e.c.msgMu.Unlock()
	e.c.handler.OnMessage(conn, text)
}

func (e clientEvents) OnPing(conn *protocol.WSConnection) {
	e.c.metrics.Add(control.MetricMessagesPing, 1)
	e.c.handler.OnPing(conn)
}

func (e clientEvents) OnDecodeError(conn *protocol.WSConnection, err error) {
	e.c.metrics.Add(control.MetricDecodeFailures, 1)
	e.c.logger.Warn("frame decode failed", "conn", conn.ID(), "error", err)
	e.c.handler.OnDecodeError(conn, err)
}

func (e clientEvents) OnClose(conn *protocol.WSConnection, err error) {
	e.c.metrics.Add(control.MetricConnectionsClosed, 1)
	e.c.msgMu.Lock()
	e.c.msgClosed = true
	close(e.c.messages)
	e.c.msgMu.Unlock()
	e.c.handler.OnClose(conn, err)
}
