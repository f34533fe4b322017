package client_test

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/pingpong-ws/api"
	"github.com/momentics/pingpong-ws/client"
	"github.com/momentics/pingpong-ws/control"
	"github.com/momentics/pingpong-ws/protocol"
	"github.com/momentics/pingpong-ws/server"
	"github.com/momentics/pingpong-ws/transport"
)

type closeCounter struct {
	protocol.NopHandler
	mu     sync.Mutex
	closes int
}

func (h *closeCounter) OnClose(*protocol.WSConnection, error) {
	h.mu.Lock()
	h.closes++
	h.mu.Unlock()
}

func (h *closeCounter) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

type pingPongServer struct {
	srv     *server.Server
	metrics *control.MetricsRegistry
	url     string
}

func startServer(t *testing.T, ln net.Listener, scheme string) *pingPongServer {
	t.Helper()
	mr := control.NewMetricsRegistry()
	srv := server.NewServer(server.DefaultConfig(), server.NewPingPongHandler(nil, mr), server.WithMetrics(mr))
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	return &pingPongServer{srv: srv, metrics: mr, url: scheme + "://" + ln.Addr().String()}
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := transport.Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

// rawServer completes the HTTP exchange with respond and then hands the
// connection to after, if set.
func rawServer(t *testing.T, respond func(req *http.Request) string, after func(conn net.Conn, br *bufio.Reader)) string {
	t.Helper()
	ln := listen(t)
	t.Cleanup(func() { ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)
		req, err := http.ReadRequest(br)
		if err != nil {
			return
		}
		if _, err := io.WriteString(conn, respond(req)); err != nil {
			return
		}
		if after != nil {
			after(conn, br)
		}
	}()
	return "ws://" + ln.Addr().String()
}

func acceptResponse(req *http.Request) string {
	return "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + protocol.ComputeAcceptKey(req.Header.Get("Sec-WebSocket-Key")) + "\r\n\r\n"
}

func TestDefaultConfig(t *testing.T) {
	cfg := client.DefaultConfig()
	assert.Equal(t, "ws://localhost:3300", cfg.URL)
	assert.Equal(t, "ping-pong", cfg.Subprotocol)
	assert.Positive(t, cfg.HandshakeTimeout)
}

func TestDialInvalidURL(t *testing.T) {
	tests := []struct {
		url    string
		scheme bool
	}{
		{"http://localhost:3300", true},
		{"localhost:3300", true},
		{"ws://", false},
		{"ws://%zz", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := client.Dial(context.Background(), client.Config{URL: tt.url}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.scheme, errors.Is(err, client.ErrInvalidScheme))
		})
	}
}

func TestEndToEndPingPong(t *testing.T) {
	ps := startServer(t, listen(t), "ws")

	cfg := client.DefaultConfig()
	cfg.URL = ps.url
	h := &closeCounter{}
	mr := control.NewMetricsRegistry()
	c, err := client.Dial(context.Background(), cfg, h, client.WithMetrics(mr))
	require.NoError(t, err)
	assert.Equal(t, protocol.StateOpen, c.State())
	assert.Equal(t, "ping-pong", c.Subprotocol())
	assert.Equal(t, protocol.RoleClient, c.Conn().Role())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pongs, err := client.RunPingPong(ctx, c, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 5, pongs)

	assert.Equal(t, protocol.StateClosed, c.State())
	assert.NoError(t, c.Err())
	assert.Equal(t, 1, h.count())
	assert.EqualValues(t, 5, mr.Get(control.MetricMessagesText))
	assert.EqualValues(t, 0, mr.Get(control.MetricDecodeFailures))

	require.Eventually(t, func() bool { return ps.srv.Stats().Active == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, ps.srv.Stats().Accepted)
	assert.EqualValues(t, 5, ps.metrics.Get(control.MetricMessagesText))
	assert.EqualValues(t, 0, ps.metrics.Get(control.MetricDecodeFailures))

	require.NoError(t, c.Send("ping"))
	require.NoError(t, c.Close())
	_, open := <-c.Messages()
	assert.False(t, open)
}

func TestDialWithoutSubprotocol(t *testing.T) {
	ps := startServer(t, listen(t), "ws")

	c, err := client.Dial(context.Background(), client.Config{URL: ps.url + "/path?x=1"}, nil)
	require.NoError(t, err)
	defer c.Release()
	assert.Empty(t, c.Subprotocol())

	require.NoError(t, c.Send("ping"))
	select {
	case msg := <-c.Messages():
		assert.Equal(t, "pong", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("no pong")
	}
}

func TestDialRejectedSubprotocol(t *testing.T) {
	ps := startServer(t, listen(t), "ws")

	cfg := client.DefaultConfig()
	cfg.URL = ps.url
	cfg.Subprotocol = "chat"
	_, err := client.Dial(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrHandshakeStatus)
	assert.Equal(t, api.ErrCodeHandshakeRejected, api.CodeOf(err))
}

func TestDialAcceptMismatch(t *testing.T) {
	url := rawServer(t, func(*http.Request) string {
		return "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
			"Sec-WebSocket-Accept: bm90LXRoZS1yaWdodC1rZXk=\r\n\r\n"
	}, nil)

	_, err := client.Dial(context.Background(), client.Config{URL: url}, nil)
	assert.ErrorIs(t, err, protocol.ErrAcceptMismatch)
}

func TestDialKeepsBytesAfterResponse(t *testing.T) {
	url := rawServer(t, func(req *http.Request) string {
		return acceptResponse(req) + "\x81\x04pong"
	}, func(conn net.Conn, br *bufio.Reader) {
		_, _ = br.ReadByte()
	})

	c, err := client.Dial(context.Background(), client.Config{URL: url}, nil)
	require.NoError(t, err)
	defer c.Release()

	select {
	case msg := <-c.Messages():
		assert.Equal(t, "pong", msg)
	case <-time.After(5 * time.Second):
		t.Fatal("buffered frame not delivered")
	}
}

func TestDialRejectsOversizedResponse(t *testing.T) {
	url := rawServer(t, func(req *http.Request) string {
		return "HTTP/1.1 101 Switching Protocols\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n" +
			"X-Padding: " + strings.Repeat("p", 2*protocol.MaxHandshakeSize) + "\r\n" +
			"Sec-WebSocket-Accept: " + protocol.ComputeAcceptKey(req.Header.Get("Sec-WebSocket-Key")) + "\r\n\r\n"
	}, nil)

	_, err := client.Dial(context.Background(), client.Config{URL: url}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrHeadersTooLarge)
}

func TestDialHandshakeTimeout(t *testing.T) {
	ln := listen(t)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(2 * time.Second)
		}
	}()

	cfg := client.Config{URL: "ws://" + ln.Addr().String(), HandshakeTimeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := client.Dial(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRunPingPongServerCloses(t *testing.T) {
	url := rawServer(t, acceptResponse, func(conn net.Conn, br *bufio.Reader) {
		_, _ = br.ReadByte()
		_, _ = conn.Write(protocol.EncodeCloseFrame())
	})

	c, err := client.Dial(context.Background(), client.Config{URL: url}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pongs, err := client.RunPingPong(ctx, c, 1, 0)
	assert.ErrorIs(t, err, client.ErrConnectionClosed)
	assert.Zero(t, pongs)
	assert.Equal(t, protocol.StateClosed, c.State())
}

func TestDialTLS(t *testing.T) {
	hts := httptest.NewTLSServer(http.NotFoundHandler())
	defer hts.Close()

	ps := startServer(t, tls.NewListener(listen(t), hts.TLS.Clone()), "wss")

	cfg := client.DefaultConfig()
	cfg.URL = ps.url
	cfg.TLSConfig = hts.Client().Transport.(*http.Transport).TLSClientConfig
	c, err := client.Dial(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pongs, err := client.RunPingPong(ctx, c, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, pongs)
}

func TestDialTLSUntrusted(t *testing.T) {
	hts := httptest.NewTLSServer(http.NotFoundHandler())
	defer hts.Close()

	ps := startServer(t, tls.NewListener(listen(t), hts.TLS.Clone()), "wss")
	_, err := client.Dial(context.Background(), client.Config{URL: ps.url, HandshakeTimeout: 5 * time.Second}, nil)
	assert.Error(t, err)
}
