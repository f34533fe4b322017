// File: protocol/constants.go
// Author: momentics <momentics@gmail.com>
//
// WebSocket wire protocol constants.

package protocol

import "fmt"

// Opcode is the 4-bit frame type tag.
type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

func (o Opcode) String() string {
	switch o {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%X)", byte(o))
	}
}

const (
	// Bit masks
	FinBit     = 0x80
	MaskBit    = 0x80
	OpcodeMask = 0x0F
	LengthMask = 0x7F

	// Payload length encoding (RFC 6455 Section 5.2).
	MaxShortPayloadLen = 125
	ExtendedLen16      = 126
	ExtendedLen64      = 127
	MaxTextPayloadLen  = 0xFFFF

	// Longest header this codec accepts: 2 + 16-bit length + masking key.
	MaxFrameHeaderLen = 8
)

// Handshake header names and values.
const (
	WebSocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	HeaderConnection     = "Connection"
	HeaderUpgrade        = "Upgrade"
	HeaderSecKey         = "Sec-WebSocket-Key"
	HeaderSecAccept      = "Sec-WebSocket-Accept"
	HeaderSecProtocol    = "Sec-WebSocket-Protocol"
	HeaderSecVersion     = "Sec-WebSocket-Version"
	WebSocketVersion     = "13"
	UpgradeValue         = "Upgrade"
	WebSocketUpgradeName = "WebSocket"

	// DefaultSubprotocol is the application protocol served by pingpong-ws.
	DefaultSubprotocol = "ping-pong"

	MaxHandshakeHeadersSize = 8192

	// MaxHandshakeSize bounds the raw bytes read for one opening handshake,
	// start line and header framing included.
	MaxHandshakeSize = 2 * MaxHandshakeHeadersSize
)

// Application payloads of the reference exchange.
const (
	PingText = "ping"
	PongText = "pong"
)
