package proto

import (
	"encoding/binary"

	"github.com/fossabot/zenoh/internal/zerror"
)

// WriteBuffer serializes protocol data into a fixed-capacity byte slice.
// A write that does not fit fails with a buffer overflow error carrying
// the missing byte count; the buffer position is left unchanged so the
// caller can seal the batch and retry on a fresh one.
type WriteBuffer struct {
	buf []byte
	pos int
}

// NewWriteBuffer wraps the given storage. Capacity is len(buf).
func NewWriteBuffer(buf []byte) *WriteBuffer {
	return &WriteBuffer{buf: buf}
}

// Pos returns the number of bytes written so far.
func (w *WriteBuffer) Pos() int { return w.pos }

// SetPos rewinds the buffer to a previously observed position.
func (w *WriteBuffer) SetPos(pos int) { w.pos = pos }

// Bytes returns the written prefix of the underlying storage.
func (w *WriteBuffer) Bytes() []byte { return w.buf[:w.pos] }

func (w *WriteBuffer) need(n int) error {
	if avail := len(w.buf) - w.pos; avail < n {
		return zerror.Overflow(n - avail)
	}
	return nil
}

// WriteByte appends a single byte.
func (w *WriteBuffer) WriteByte(b byte) error {
	if err := w.need(1); err != nil {
		return err
	}
	w.buf[w.pos] = b
	w.pos++
	return nil
}

// WriteZInt appends a ZInt in unsigned varint encoding.
func (w *WriteBuffer) WriteZInt(v ZInt) error {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	if err := w.need(n); err != nil {
		return err
	}
	copy(w.buf[w.pos:], tmp[:n])
	w.pos += n
	return nil
}

// WriteBytes appends a length-prefixed byte slice.
func (w *WriteBuffer) WriteBytes(b []byte) error {
	start := w.pos
	if err := w.WriteZInt(ZInt(len(b))); err != nil {
		return err
	}
	if err := w.need(len(b)); err != nil {
		w.pos = start
		return err
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// WriteString appends a length-prefixed string.
func (w *WriteBuffer) WriteString(s string) error {
	start := w.pos
	if err := w.WriteZInt(ZInt(len(s))); err != nil {
		return err
	}
	if err := w.need(len(s)); err != nil {
		w.pos = start
		return err
	}
	copy(w.buf[w.pos:], s)
	w.pos += len(s)
	return nil
}

// ReadBuffer deserializes protocol data from a byte slice.
type ReadBuffer struct {
	buf []byte
	pos int
}

// NewReadBuffer wraps the given bytes for reading.
func NewReadBuffer(buf []byte) *ReadBuffer {
	return &ReadBuffer{buf: buf}
}

// CanRead reports whether unread bytes remain.
func (r *ReadBuffer) CanRead() bool { return r.pos < len(r.buf) }

// Remaining returns the number of unread bytes.
func (r *ReadBuffer) Remaining() int { return len(r.buf) - r.pos }

var errTruncated = zerror.New(zerror.KindIO, "truncated message")

// ReadByte consumes a single byte.
func (r *ReadBuffer) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, errTruncated
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadZInt consumes a varint-encoded ZInt.
func (r *ReadBuffer) ReadZInt() (ZInt, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	r.pos += n
	return v, nil
}

// ReadBytes consumes a length-prefixed byte slice. The returned slice is a
// copy, safe to retain after the underlying buffer is recycled.
func (r *ReadBuffer) ReadBytes() ([]byte, error) {
	n, err := r.ReadZInt()
	if err != nil {
		return nil, err
	}
	if ZInt(r.Remaining()) < n {
		return nil, errTruncated
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:])
	r.pos += int(n)
	return b, nil
}

// ReadString consumes a length-prefixed string.
func (r *ReadBuffer) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
