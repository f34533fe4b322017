// File: server/server.go
// Package server implements the WebSocket server endpoint.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/internal/logging"
	"github.com/momentics/pingpong-ws/protocol"
	"github.com/momentics/pingpong-ws/transport"
)

var (
	ErrAlreadyRunning = errors.New("server already running")
	ErrServerClosed   = errors.New("server closed")
)

// NewServer builds a Server that hands every connection's events to
// handler. A nil handler ignores all events.
func NewServer(cfg Config, handler protocol.EventHandler, opts ...ServerOption) *Server {
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = def.ReadBufferSize
	}
	if handler == nil {
		handler = protocol.NopHandler{}
	}
	s := &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logging.Nop(),
		conns:   make(map[net.Conn]*protocol.WSConnection),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Server) Config() Config { return s.cfg }

// ListenAndServe listens on cfg.ListenAddr and serves until ctx is done or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := transport.Listen(ctx, s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
// It returns ctx.Err() on cancellation and ErrServerClosed after Shutdown.
// Live connections are released before Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	case s.serving:
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.serving = true
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.Shutdown)
	defer stop()

	s.logger.Info("server listening", "addr", ln.Addr().String(), "subprotocol", s.cfg.Subprotocol)

	var g errgroup.Group
	for {
		conn, err := ln.Accept()
		if err != nil {
			closed := s.isClosed()
			s.Shutdown()
			_ = g.Wait()
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case closed:
				return ErrServerClosed
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		g.Go(func() error {
			s.serveConn(ctx, conn)
			return nil
		})
	}
}

// Addr returns the listener address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, sends a close frame on every open connection
// and releases it. Connections still handshaking are dropped.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ln := s.ln
	conns := s.conns
	s.conns = make(map[net.Conn]*protocol.WSConnection)
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for conn, ws := range conns {
		if ws == nil {
			conn.Close()
			continue
		}
		_ = ws.Close()
		ws.Release()
	}
}

// Stats returns a snapshot of server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Active:   s.active.Load(),
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// track records conn and its WSConnection, if any. It reports false once
// the server is shut down.
func (s *Server) track(conn net.Conn, ws *protocol.WSConnection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = ws
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	log := s.logger.With("remote", remote)

	if !s.track(conn, nil) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	if s.cfg.HandshakeTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
	}
	hr := protocol.NewHandshakeReader(conn, s.cfg.ReadBufferSize)
	res, err := protocol.DoHandshakeCore(hr.Reader, s.cfg.Subprotocol)
	if err != nil {
		s.rejected.Add(1)
		s.metrics.Add(control.MetricConnectionsRejected, 1)
		log.Warn("handshake rejected", "error", err)
		_ = protocol.WriteHandshakeRejection(conn)
		conn.Close()
		return
	}

	key := res.Context.Key
	resp := protocol.FormatHandshakeResponse(res.Header)
	if _, err := conn.Write(resp); err != nil {
		log.Warn("handshake response failed", "key", key, "error", err)
		conn.Close()
		return
	}
	log.Debug("handshake response", "key", key, "response", string(resp))
	_ = conn.SetDeadline(time.Time{})
	hr.Lift()

	tr := transport.NewNetTransport(conn,
		transport.WithReader(hr.Reader),
		transport.WithReadSize(s.cfg.ReadBufferSize))
	ws := protocol.NewWSConnection(tr,
		protocol.WithRole(protocol.RoleServer),
		protocol.WithHandler(s.handler),
		protocol.WithLogger(log),
		protocol.WithSubprotocol(res.Context.Subprotocol),
		protocol.WithLabel(key),
		protocol.WithBufferSize(s.cfg.ReadBufferSize))
	if !s.track(conn, ws) {
		ws.Release()
		return
	}

	s.accepted.Add(1)
	s.metrics.Add(control.MetricConnectionsAccepted, 1)
	s.active.Add(1)
	s.metrics.Add(control.MetricConnectionsActive, 1)
	defer func() {
		s.metrics.Add(control.MetricConnectionsClosed, 1)
		s.metrics.Add(control.MetricConnectionsActive, -1)
		s.active.Add(-1)
	}()

	log.Info("connection accepted", "key", key, "subprotocol", ws.Subprotocol())
	if err := ws.Open(); err != nil {
		ws.Release()
		return
	}
	if err := ws.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("connection failed", "key", key, "error", err)
	}
}
