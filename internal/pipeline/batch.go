// Package pipeline implements the multi-priority batching egress queue
// feeding a link's TX task. Writers serialize messages into per-lane
// batches; the TX task pulls sealed batches in strict priority order.
package pipeline

import (
	"encoding/binary"

	"github.com/fossabot/zenoh/internal/proto"
)

// Batch is a byte buffer sized to at most the link MTU, into which
// serialized messages are appended. On stream-oriented links the first
// two bytes are reserved for the little-endian length prefix and
// backfilled when the batch is sealed.
type Batch struct {
	buf      []byte
	w        *proto.WriteBuffer
	streamed bool
	msgs     int
}

func newBatch(size uint16, streamed bool) *Batch {
	b := &Batch{
		buf:      make([]byte, int(size)+proto.FrameHeaderSize),
		streamed: streamed,
	}
	b.reset()
	return b
}

func (b *Batch) reset() {
	payload := b.buf[proto.FrameHeaderSize:]
	if !b.streamed {
		payload = b.buf[:len(b.buf)-proto.FrameHeaderSize]
	}
	b.w = proto.NewWriteBuffer(payload)
	b.msgs = 0
}

// Encode appends one serialized message, failing with a buffer overflow
// error when it does not fit.
func (b *Batch) Encode(m *proto.Message) error {
	if err := proto.EncodeMessage(b.w, m); err != nil {
		return err
	}
	b.msgs++
	return nil
}

// Len returns the payload length in bytes.
func (b *Batch) Len() int { return b.w.Pos() }

// IsEmpty reports whether no message has been encoded yet.
func (b *Batch) IsEmpty() bool { return b.w.Pos() == 0 }

// Messages returns the number of messages encoded into the batch.
func (b *Batch) Messages() int { return b.msgs }

// Bytes returns the transmission unit: on streamed links the length
// prefix followed by the payload, on datagram links the payload alone.
func (b *Batch) Bytes() []byte {
	n := b.w.Pos()
	if !b.streamed {
		return b.buf[:n]
	}
	binary.LittleEndian.PutUint16(b.buf[:proto.FrameHeaderSize], uint16(n))
	return b.buf[:proto.FrameHeaderSize+n]
}
