package protocol_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/pingpong-ws/api"
	"github.com/momentics/pingpong-ws/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, s := range []string{
		"",
		"ping",
		"pong",
		"héllo, 世界 🚀",
		strings.Repeat("a", 125),
		strings.Repeat("b", 126),
		strings.Repeat("ü", 1000),
		strings.Repeat("z", 65535),
	} {
		data, err := protocol.EncodeTextFrame(s)
		require.NoError(t, err)

		m := protocol.Decode(data)
		require.Equal(t, protocol.MessageText, m.Kind, "len %d", len(s))
		assert.Equal(t, s, m.Text)
	}
}

func TestEncodeTextFrameLengthBoundaries(t *testing.T) {
	data, err := protocol.EncodeTextFrame(strings.Repeat("x", 125))
	require.NoError(t, err)
	assert.Len(t, data, 2+125)
	assert.Equal(t, byte(0x81), data[0])
	assert.Equal(t, byte(125), data[1])

	data, err = protocol.EncodeTextFrame(strings.Repeat("x", 126))
	require.NoError(t, err)
	assert.Len(t, data, 4+126)
	assert.Equal(t, byte(126), data[1])
	assert.Equal(t, uint16(126), binary.BigEndian.Uint16(data[2:4]))

	data, err = protocol.EncodeTextFrame(strings.Repeat("x", 65535))
	require.NoError(t, err)
	assert.Equal(t, byte(126), data[1])
	assert.Equal(t, uint16(65535), binary.BigEndian.Uint16(data[2:4]))

	data, err = protocol.EncodeTextFrame(strings.Repeat("x", 65536))
	assert.Nil(t, data)
	require.ErrorIs(t, err, protocol.ErrPayloadTooLarge)
	assert.Equal(t, api.ErrCodeEncodeFailure, api.CodeOf(err))
}

func TestEncodeTextFrameIsNeverMasked(t *testing.T) {
	data, err := protocol.EncodeTextFrame("ping")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x81, 0x04, 'p', 'i', 'n', 'g'}, data)
	assert.Zero(t, data[1]&protocol.MaskBit)
}

func TestEncodeControlFrames(t *testing.T) {
	assert.Equal(t, []byte{0x8A, 0x00}, protocol.EncodePongFrame())
	assert.Equal(t, []byte{0x88, 0x00}, protocol.EncodeCloseFrame())
}

func TestDecodeMaskedFrame(t *testing.T) {
	// RFC 6455 Section 5.7: a single-frame masked text message "Hello".
	data := []byte{0x81, 0x85, 0x37, 0xfa, 0x21, 0x3d, 0x7f, 0x9f, 0x4d, 0x51, 0x58}
	m := protocol.Decode(data)
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, "Hello", m.Text)
}

func TestDecodeMaskingUsesKeyByteModFour(t *testing.T) {
	key := [4]byte{0x01, 0x02, 0x04, 0x08}
	plain := []byte("abcdefghij")
	masked := make([]byte, len(plain))
	for i := range plain {
		masked[i] = plain[i] ^ key[i%4]
	}
	data := append([]byte{0x81, 0x80 | byte(len(plain))}, key[:]...)
	data = append(data, masked...)

	m := protocol.Decode(data)
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, string(plain), m.Text)
}

func TestDecodeUnmaskedPassesThrough(t *testing.T) {
	m := protocol.Decode([]byte{0x81, 0x05, 0x48, 0x65, 0x6c, 0x6c, 0x6f})
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, "Hello", m.Text)
}

func TestDecodeMaskedExtendedLength(t *testing.T) {
	key := [4]byte{0xde, 0xad, 0xbe, 0xef}
	plain := []byte(strings.Repeat("pingpong", 40))
	data := []byte{0x81, 0x80 | 126, 0, 0}
	binary.BigEndian.PutUint16(data[2:], uint16(len(plain)))
	data = append(data, key[:]...)
	for i, b := range plain {
		data = append(data, b^key[i%4])
	}

	m := protocol.Decode(data)
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, string(plain), m.Text)
}

func TestDecodeOpcodes(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		kind protocol.MessageKind
		err  error
	}{
		{"close bare", []byte{0x88}, protocol.MessageClose, nil},
		{"close with payload", []byte{0x88, 0x82, 1, 2, 3, 4, 5, 6}, protocol.MessageClose, nil},
		{"ping", []byte{0x89, 0x00}, protocol.MessagePing, nil},
		{"ping with payload", []byte{0x89, 0x02, 'h', 'i'}, protocol.MessagePing, nil},
		{"binary", []byte{0x82, 0x01, 0xff}, protocol.MessageFailure, protocol.ErrUnsupportedOpcode},
		{"continuation", []byte{0x00, 0x01, 'a'}, protocol.MessageFailure, protocol.ErrUnsupportedOpcode},
		{"pong", []byte{0x8A, 0x00}, protocol.MessageFailure, protocol.ErrUnsupportedOpcode},
		{"reserved", []byte{0x83, 0x00}, protocol.MessageFailure, protocol.ErrUnsupportedOpcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := protocol.Decode(tt.data)
			assert.Equal(t, tt.kind, m.Kind)
			if tt.err != nil {
				assert.ErrorIs(t, m.Err, tt.err)
			} else {
				assert.NoError(t, m.Err)
			}
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"empty", nil, protocol.ErrTruncatedFrame},
		{"header only", []byte{0x81}, protocol.ErrTruncatedFrame},
		{"short payload", []byte{0x81, 0x05, 'a', 'b'}, protocol.ErrTruncatedFrame},
		{"short extended length", []byte{0x81, 126, 0x01}, protocol.ErrTruncatedFrame},
		{"short mask key", []byte{0x81, 0x81, 1, 2}, protocol.ErrTruncatedFrame},
		{"short extended payload", []byte{0x81, 126, 0x01, 0x00, 'a'}, protocol.ErrTruncatedFrame},
		{"64-bit length", []byte{0x81, 127, 0, 0, 0, 0, 0, 1, 0, 0}, protocol.ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := protocol.Decode(tt.data)
			require.True(t, m.Failed())
			assert.ErrorIs(t, m.Err, tt.err)

			var de *protocol.DecodeError
			require.ErrorAs(t, m.Err, &de)
		})
	}
}

func TestDecodeFailureKindsAreDistinct(t *testing.T) {
	tooLarge := protocol.Decode([]byte{0x81, 127})
	unsupported := protocol.Decode([]byte{0x82, 0x00})

	assert.ErrorIs(t, tooLarge.Err, protocol.ErrFrameTooLarge)
	assert.NotErrorIs(t, tooLarge.Err, protocol.ErrUnsupportedOpcode)
	assert.ErrorIs(t, unsupported.Err, protocol.ErrUnsupportedOpcode)
	assert.NotErrorIs(t, unsupported.Err, protocol.ErrFrameTooLarge)
}

func TestDecodeReplacesInvalidUTF8(t *testing.T) {
	m := protocol.Decode([]byte{0x81, 4, 'a', 0xff, 0xfe, 'b'})
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, "a\uFFFDb", m.Text)

	m = protocol.Decode([]byte{0x81, 2, 0xc3, 0xbc})
	assert.Equal(t, "ü", m.Text)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	data, err := protocol.EncodeTextFrame("ping")
	require.NoError(t, err)
	m := protocol.Decode(append(data, 0x81, 0x04, 'j', 'u', 'n', 'k'))
	require.Equal(t, protocol.MessageText, m.Kind)
	assert.Equal(t, "ping", m.Text)
}

func TestDecodeFrameFromBytesIncomplete(t *testing.T) {
	data, err := protocol.EncodeTextFrame("incomplete")
	require.NoError(t, err)
	for i := 0; i < len(data); i++ {
		f, n, err := protocol.DecodeFrameFromBytes(data[:i])
		require.NoError(t, err)
		assert.Nil(t, f)
		assert.Zero(t, n)
	}

	f, n, err := protocol.DecodeFrameFromBytes(data)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, len(data), n)
	assert.True(t, f.Final)
	assert.Equal(t, protocol.OpcodeText, f.Opcode)
	assert.Equal(t, len("incomplete"), f.PayloadLen)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "text", protocol.OpcodeText.String())
	assert.Equal(t, "close", protocol.OpcodeClose.String())
	assert.Equal(t, "opcode(0xB)", protocol.Opcode(0xB).String())
}
