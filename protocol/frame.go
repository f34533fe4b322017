// Package protocol
// Author: momentics <momentics@gmail.com>
//
// WebSocket frame parsing and masking logic.
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|F|R|R|R| opcode|M| Payload len |    Extended payload length    |
//	|I|S|S|S|  (4)  |A|     (7)     |             (16)              |
//	|N|V|V|V|       |S|             |   (if payload len==126)       |
//	+-+-+-+-+-------+-+-------------+-------------------------------+
//	|            Masking-key, if MASK set to 1                      |
//	+---------------------------------------------------------------+
//	|                     Payload Data ...                          |
//	+---------------------------------------------------------------+

package protocol

import (
	"encoding/binary"
)

// WSFrame represents a decoded WebSocket frame.
type WSFrame struct {
	Final      bool   // FIN bit
	Opcode     Opcode // Operation code
	Masked     bool   // Whether the frame was masked
	PayloadLen int    // Payload length as read from the wire
	MaskKey    [4]byte
	Payload    []byte // Unmasked copy, owned by the frame
}

// DecodeFrameFromBytes parses one frame from the start of raw.
// Returns frame, consumed bytes, and error.
// If raw holds an incomplete frame, returns (nil, 0, nil).
// A 64-bit length field fails with ErrFrameTooLarge.
func DecodeFrameFromBytes(raw []byte) (*WSFrame, int, error) {
	if len(raw) < 2 {
		return nil, 0, nil
	}
	opcode := Opcode(raw[0] & OpcodeMask)
	length, offset, err := payloadLength(raw)
	if err != nil || offset == 0 {
		return nil, 0, err
	}

	masked := raw[1]&MaskBit != 0
	var maskKey [4]byte
	if masked {
		if len(raw) < offset+4 {
			return nil, 0, nil
		}
		copy(maskKey[:], raw[offset:offset+4])
		offset += 4
	}

	total := offset + length
	if len(raw) < total {
		return nil, 0, nil
	}

	payload := make([]byte, length)
	copy(payload, raw[offset:total])
	if masked {
		applyMask(payload, maskKey)
	}

	return &WSFrame{
		Final:      raw[0]&FinBit != 0,
		Opcode:     opcode,
		Masked:     masked,
		PayloadLen: length,
		MaskKey:    maskKey,
		Payload:    payload,
	}, total, nil
}

// frameExtent reports the total on-wire size of the frame at the start of
// raw, or 0 when the header is not complete yet.
func frameExtent(raw []byte) (int, error) {
	if len(raw) < 2 {
		return 0, nil
	}
	length, offset, err := payloadLength(raw)
	if err != nil || offset == 0 {
		return 0, err
	}
	if raw[1]&MaskBit != 0 {
		offset += 4
	}
	return offset + length, nil
}

// payloadLength reads the 7-bit or 16-bit length field of the header at the
// start of raw. offset is the index right after the length field, or 0 when
// the extended length is not buffered yet.
func payloadLength(raw []byte) (length, offset int, err error) {
	length = int(raw[1] & LengthMask)
	offset = 2

	switch {
	case length <= MaxShortPayloadLen:
	case length == ExtendedLen16:
		if len(raw) < offset+2 {
			return 0, 0, nil
		}
		length = int(binary.BigEndian.Uint16(raw[offset:]))
		offset += 2
	default:
		return 0, 0, &DecodeError{Kind: FailureFrameTooLarge, Opcode: Opcode(raw[0] & OpcodeMask)}
	}
	return length, offset, nil
}

// applyMask XORs buf in place with key; byte i uses key[i%4].
func applyMask(buf []byte, key [4]byte) {
	for i := range buf {
		buf[i] ^= key[i&3]
	}
}
