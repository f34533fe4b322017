// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the WebSocket protocol subset (RFC 6455) used by pingpong-ws.
//
// Includes:
//   - Single-frame text encoding and pong/close control frames
//   - Decoding into a tagged Message (text, close, ping or a named failure)
//   - A byte-accumulation FrameBuffer for frames split across deliveries
//   - Sec-WebSocket-Accept derivation and sub-protocol negotiation
//   - The CONNECTING → OPEN → CLOSING → CLOSED connection state machine
//
// Outbound frames are never masked, fragmented or sent with 64-bit lengths.
package protocol
