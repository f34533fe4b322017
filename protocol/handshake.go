// File: protocol/handshake.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Opening handshake: Sec-WebSocket-Accept derivation, sub-protocol
// negotiation, server-side request validation and client-side response
// verification.

package protocol

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/momentics/pingpong-ws/api"
)

var (
	ErrInvalidUpgradeHeaders  = errors.New("invalid WebSocket upgrade headers")
	ErrMissingWebSocketKey    = errors.New("missing Sec-WebSocket-Key header")
	ErrUnsupportedSubprotocol = errors.New("unsupported WebSocket sub-protocol")
	ErrHeadersTooLarge        = errors.New("handshake headers too large")
	ErrHandshakeStatus        = errors.New("unexpected handshake response status")
	ErrAcceptMismatch         = errors.New("server accept key mismatch")
)

// HandshakeContext is the transient per-connection handshake data.
type HandshakeContext struct {
	Key         string // client Sec-WebSocket-Key
	Subprotocol string // requested (client) or negotiated (server) name
	Accept      string // derived Sec-WebSocket-Accept
}

// HandshakeResult is a validated server-side upgrade request.
type HandshakeResult struct {
	Context HandshakeContext
	Header  http.Header // response headers for the 101
	Request *http.Request
}

// ComputeAcceptKey computes the Sec-WebSocket-Accept value from the client's key.
// Any string is accepted; RFC 6455 Section 1.3.
func ComputeAcceptKey(clientKey string) string {
	h := sha1.New()
	io.WriteString(h, clientKey)
	io.WriteString(h, WebSocketGUID)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

var randReader io.Reader = rand.Reader

// GenerateChallengeKey returns 16 random bytes, base64-encoded.
func GenerateChallengeKey() (string, error) {
	b := make([]byte, 16)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", fmt.Errorf("generate challenge key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// ParseSubprotocols splits a Sec-WebSocket-Protocol value into trimmed tokens.
func ParseSubprotocols(header string) []string {
	var out []string
	for _, p := range strings.Split(header, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NegotiateSubprotocol selects supported from the client's header value.
// An absent (empty) header yields "" and no error; a header that does not
// list supported is rejected.
func NegotiateSubprotocol(header, supported string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", nil
	}
	for _, p := range ParseSubprotocols(header) {
		if supported != "" && p == supported {
			return supported, nil
		}
	}
	return "", api.Wrap(api.ErrCodeHandshakeRejected, ErrUnsupportedSubprotocol).
		WithContext("requested", header)
}

// HandshakeReader buffers a peer's opening handshake. Reads past
// MaxHandshakeSize fail with ErrHeadersTooLarge until Lift is called, so an
// endless header block is never consumed in full.
type HandshakeReader struct {
	*bufio.Reader
	limit *handshakeLimit
}

type handshakeLimit struct {
	r io.Reader
	n int64
}

func (l *handshakeLimit) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, api.Wrap(api.ErrCodeHandshakeRejected, ErrHeadersTooLarge)
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

// NewHandshakeReader wraps r with a read buffer of the given size.
func NewHandshakeReader(r io.Reader, size int) *HandshakeReader {
	l := &handshakeLimit{r: r, n: MaxHandshakeSize}
	return &HandshakeReader{Reader: bufio.NewReaderSize(l, size), limit: l}
}

// Lift removes the read bound once the handshake is parsed. Bytes already
// buffered stay in the reader.
func (h *HandshakeReader) Lift() { h.limit.n = math.MaxInt64 }

// DoHandshakeCore reads an HTTP upgrade request from br, validates it and
// prepares the 101 response headers. Bytes after the request stay in br.
func DoHandshakeCore(br *bufio.Reader, supported string) (*HandshakeResult, error) {
	req, err := http.ReadRequest(br)
	if err != nil {
		return nil, fmt.Errorf("handshake read request: %w", err)
	}
	return ValidateUpgradeRequest(req, supported)
}

// ValidateUpgradeRequest checks an already parsed upgrade request.
func ValidateUpgradeRequest(req *http.Request, supported string) (*HandshakeResult, error) {
	total := 0
	for k, vs := range req.Header {
		total += len(k)
		for _, v := range vs {
			total += len(v)
		}
		if total > MaxHandshakeHeadersSize {
			return nil, api.Wrap(api.ErrCodeHandshakeRejected, ErrHeadersTooLarge)
		}
	}

	upgrade := req.Header.Get(HeaderUpgrade)
	if !strings.EqualFold(upgrade, "websocket") ||
		!httpguts.HeaderValuesContainsToken(req.Header[HeaderConnection], "upgrade") {
		return nil, api.Wrap(api.ErrCodeHandshakeRejected, ErrInvalidUpgradeHeaders).
			WithContext("upgrade", upgrade).
			WithContext("connection", req.Header.Get(HeaderConnection))
	}

	key := req.Header.Get(HeaderSecKey)
	if key == "" {
		return nil, api.Wrap(api.ErrCodeHandshakeRejected, ErrMissingWebSocketKey)
	}

	proto, err := NegotiateSubprotocol(strings.Join(req.Header.Values(HeaderSecProtocol), ","), supported)
	if err != nil {
		return nil, err
	}

	hc := HandshakeContext{Key: key, Subprotocol: proto, Accept: ComputeAcceptKey(key)}
	hdr := make(http.Header)
	hdr.Set(HeaderUpgrade, WebSocketUpgradeName)
	hdr.Set(HeaderConnection, UpgradeValue)
	hdr.Set(HeaderSecAccept, hc.Accept)
	if proto != "" {
		hdr.Set(HeaderSecProtocol, proto)
	}
	return &HandshakeResult{Context: hc, Header: hdr, Request: req}, nil
}

// NewClientHandshake creates the client-side context with a fresh key.
func NewClientHandshake(subprotocol string) (HandshakeContext, error) {
	key, err := GenerateChallengeKey()
	if err != nil {
		return HandshakeContext{}, err
	}
	return HandshakeContext{Key: key, Subprotocol: subprotocol, Accept: ComputeAcceptKey(key)}, nil
}

// BuildHandshakeRequest renders the client upgrade request for u.
func BuildHandshakeRequest(u *url.URL, hc HandshakeContext) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.RequestURI())
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderConnection, UpgradeValue)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderUpgrade, WebSocketUpgradeName)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecKey, hc.Key)
	fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecVersion, WebSocketVersion)
	if hc.Subprotocol != "" {
		fmt.Fprintf(&b, "%s: %s\r\n", HeaderSecProtocol, hc.Subprotocol)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// VerifyHandshakeResponse validates the server's answer to hc and returns
// the sub-protocol the server selected, if any.
func VerifyHandshakeResponse(resp *http.Response, hc HandshakeContext) (string, error) {
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return "", api.Wrap(api.ErrCodeHandshakeRejected, ErrHandshakeStatus).
			WithContext("status", resp.StatusCode)
	}
	if resp.Header.Get(HeaderSecAccept) != hc.Accept {
		return "", api.Wrap(api.ErrCodeHandshakeRejected, ErrAcceptMismatch)
	}
	proto := resp.Header.Get(HeaderSecProtocol)
	if proto != "" && proto != hc.Subprotocol {
		return "", api.Wrap(api.ErrCodeHandshakeRejected, ErrUnsupportedSubprotocol).
			WithContext("selected", proto)
	}
	return proto, nil
}
