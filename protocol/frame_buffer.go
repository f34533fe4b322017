// File: protocol/frame_buffer.go
// Author: momentics <momentics@gmail.com>
//
// FrameBuffer reassembles frames from arbitrary transport deliveries.
// Bytes are appended to an arena and parsed from a cursor; every complete
// frame is decoded and queued, partial frames wait for the next Feed.

package protocol

import (
	"github.com/eapache/queue"
)

// FrameBuffer is not safe for concurrent use; it belongs to the single
// goroutine that drives one connection.
type FrameBuffer struct {
	arena []byte
	off   int
	ready *queue.Queue // of Message
}

// NewFrameBuffer creates a FrameBuffer with the given initial arena capacity.
func NewFrameBuffer(capacity int) *FrameBuffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &FrameBuffer{
		arena: make([]byte, 0, capacity),
		ready: queue.New(),
	}
}

// Feed appends one delivery and decodes every frame it completes.
func (b *FrameBuffer) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	b.arena = append(b.arena, p...)
	b.parse()
}

// Next pops the oldest decoded message.
func (b *FrameBuffer) Next() (Message, bool) {
	if b.ready.Length() == 0 {
		return Message{}, false
	}
	return b.ready.Remove().(Message), true
}

// Pending returns the number of decoded messages not yet taken.
func (b *FrameBuffer) Pending() int {
	return b.ready.Length()
}

// Buffered returns the number of bytes held for an incomplete frame.
func (b *FrameBuffer) Buffered() int {
	return len(b.arena) - b.off
}

// Reset drops buffered bytes and queued messages.
func (b *FrameBuffer) Reset() {
	b.arena = b.arena[:0]
	b.off = 0
	for b.ready.Length() > 0 {
		b.ready.Remove()
	}
}

func (b *FrameBuffer) parse() {
	for b.off < len(b.arena) {
		raw := b.arena[b.off:]
		n, err := frameExtent(raw)
		if err != nil {
			// The length cannot be skipped reliably; resync on the next delivery.
			// Close and ping keep their meaning whatever their length.
			switch Opcode(raw[0] & OpcodeMask) {
			case OpcodeClose, OpcodePing:
				b.ready.Add(Decode(raw))
			default:
				b.ready.Add(Message{Kind: MessageFailure, Err: err})
			}
			b.arena = b.arena[:0]
			b.off = 0
			return
		}
		if n == 0 || len(raw) < n {
			break
		}
		b.ready.Add(Decode(raw[:n]))
		b.off += n
	}
	b.compact()
}

func (b *FrameBuffer) compact() {
	switch {
	case b.off == len(b.arena):
		b.arena = b.arena[:0]
		b.off = 0
	case b.off > cap(b.arena)/2:
		n := copy(b.arena, b.arena[b.off:])
		b.arena = b.arena[:n]
		b.off = 0
	}
}
