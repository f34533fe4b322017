// File: protocol/handshake_serializer.go
// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Serialization of the server's handshake responses.

package protocol

import (
	"bytes"
	"io"
	"net/http"
)

const (
	statusSwitching = "HTTP/1.1 101 Switching Protocols\r\n"
	statusRejected  = "HTTP/1.1 400 Bad Request\r\nConnection: close\r\nContent-Length: 0\r\n\r\n"
)

// FormatHandshakeResponse renders the 101 status line and hdr.
func FormatHandshakeResponse(hdr http.Header) []byte {
	var b bytes.Buffer
	b.WriteString(statusSwitching)
	_ = hdr.Write(&b)
	b.WriteString("\r\n")
	return b.Bytes()
}

// WriteHandshakeResponse writes the 101 status and headers hdr to w.
func WriteHandshakeResponse(w io.Writer, hdr http.Header) error {
	_, err := w.Write(FormatHandshakeResponse(hdr))
	return err
}

// WriteHandshakeRejection writes a 400 response to w.
func WriteHandshakeRejection(w io.Writer) error {
	_, err := io.WriteString(w, statusRejected)
	return err
}
