// File: protocol/frame_codec.go
// Package protocol implements the text frame codec.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Encodes single unfragmented, unmasked text/pong/close frames and decodes
// one buffered frame into a tagged Message.

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/momentics/pingpong-ws/api"
)

var (
	// ErrPayloadTooLarge is returned when a text payload needs a 64-bit length.
	ErrPayloadTooLarge = errors.New("payload exceeds 65535 bytes")

	ErrUnsupportedOpcode = errors.New("unsupported opcode")
	ErrFrameTooLarge     = errors.New("frame too large")
	ErrTruncatedFrame    = errors.New("truncated frame")
)

// FailureKind names why a buffer could not be decoded.
type FailureKind int

const (
	FailureUnsupportedOpcode FailureKind = iota + 1
	FailureFrameTooLarge
	FailureTruncated
)

func (k FailureKind) String() string {
	switch k {
	case FailureUnsupportedOpcode:
		return "unsupported opcode"
	case FailureFrameTooLarge:
		return "frame too large"
	case FailureTruncated:
		return "truncated frame"
	default:
		return "unknown failure"
	}
}

// DecodeError reports a decode failure. It matches ErrUnsupportedOpcode,
// ErrFrameTooLarge or ErrTruncatedFrame under errors.Is.
type DecodeError struct {
	Kind   FailureKind
	Opcode Opcode
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s frame: %s", e.Opcode, e.Kind)
}

// Is maps the failure kind onto its sentinel.
func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrUnsupportedOpcode:
		return e.Kind == FailureUnsupportedOpcode
	case ErrFrameTooLarge:
		return e.Kind == FailureFrameTooLarge
	case ErrTruncatedFrame:
		return e.Kind == FailureTruncated
	}
	return false
}

// MessageKind tags a decoded Message.
type MessageKind int

const (
	MessageText MessageKind = iota + 1
	MessageClose
	MessagePing
	MessageFailure
)

func (k MessageKind) String() string {
	switch k {
	case MessageText:
		return "text"
	case MessageClose:
		return "close"
	case MessagePing:
		return "ping"
	case MessageFailure:
		return "failure"
	default:
		return "invalid"
	}
}

// Message is the result of interpreting one frame.
// Text is set for MessageText, Err for MessageFailure.
type Message struct {
	Kind MessageKind
	Text string
	Err  error
}

// Failed reports whether m is a decode failure.
func (m Message) Failed() bool {
	return m.Kind == MessageFailure
}

func textMessage(s string) Message { return Message{Kind: MessageText, Text: s} }

func failure(kind FailureKind, op Opcode) Message {
	return Message{Kind: MessageFailure, Err: &DecodeError{Kind: kind, Opcode: op}}
}

// EncodeTextFrame serializes s into one final, unmasked text frame.
func EncodeTextFrame(s string) ([]byte, error) {
	n := len(s)
	var buf []byte

	switch {
	case n <= MaxShortPayloadLen:
		buf = make([]byte, 2, 2+n)
		buf[1] = byte(n)
	case n <= MaxTextPayloadLen:
		buf = make([]byte, 4, 4+n)
		buf[1] = ExtendedLen16
		binary.BigEndian.PutUint16(buf[2:], uint16(n))
	default:
		return nil, api.Wrap(api.ErrCodeEncodeFailure, ErrPayloadTooLarge).WithContext("length", n)
	}
	buf[0] = FinBit | byte(OpcodeText)

	return append(buf, s...), nil
}

// EncodePongFrame returns an empty final pong frame.
func EncodePongFrame() []byte {
	return controlFrame(OpcodePong)
}

// EncodeCloseFrame returns an empty final close frame.
func EncodeCloseFrame() []byte {
	return controlFrame(OpcodeClose)
}

func controlFrame(op Opcode) []byte {
	return []byte{FinBit | byte(op), 0}
}

// Decode interprets buf as exactly one frame.
//
// Close and ping are recognized from the first byte alone; their payload is
// not parsed. Any other opcode except text is an unsupported-opcode failure.
// A buffer shorter than its header or length field promises is a truncated
// failure. Bytes after the frame are ignored. Invalid UTF-8 in a text
// payload is replaced with U+FFFD.
func Decode(buf []byte) Message {
	if len(buf) == 0 {
		return failure(FailureTruncated, OpcodeText)
	}

	op := Opcode(buf[0] & OpcodeMask)
	switch op {
	case OpcodeClose:
		return Message{Kind: MessageClose}
	case OpcodePing:
		return Message{Kind: MessagePing}
	case OpcodeText:
	default:
		return failure(FailureUnsupportedOpcode, op)
	}

	frame, _, err := DecodeFrameFromBytes(buf)
	if err != nil {
		return Message{Kind: MessageFailure, Err: err}
	}
	if frame == nil {
		return failure(FailureTruncated, op)
	}
	return textMessage(strings.ToValidUTF8(string(frame.Payload), "\uFFFD"))
}
