// Package shm implements the cross-process shared-memory layer: a
// best-fit region allocator with refcounted chunks, and a reader-side
// registry that materializes buffers from wire descriptors.
//
// A segment is a file-backed mapping shared by one producer and any
// number of consumers. Every chunk starts with a machine-word refcount
// header that any mapping process may update with sequentially consistent
// atomics; the allocator book-keeping itself is single-writer.
package shm

import (
	"sync/atomic"
	"unsafe"
)

// ChunkHeaderSize is the size of the refcount header at the start of
// every chunk.
const ChunkHeaderSize = int(unsafe.Sizeof(uint64(0)))

// BufferInfo is the wire descriptor of a shared-memory chunk. Any process
// with access to the segment can reconstruct a Buffer from it.
type BufferInfo struct {
	SegmentID string
	Offset    int
	Length    int // chunk length, header included
	Kind      uint8
}

// Buffer is the local view of a chunk: a refcount pointer, the payload
// bytes, and the descriptor that reaches the wire.
type Buffer struct {
	rc   *atomic.Uint64
	data []byte
	Info BufferInfo
}

func newBuffer(segment []byte, info BufferInfo) *Buffer {
	rc := (*atomic.Uint64)(unsafe.Pointer(&segment[info.Offset]))
	return &Buffer{
		rc:   rc,
		data: segment[info.Offset+ChunkHeaderSize : info.Offset+info.Length],
		Info: info,
	}
}

// Len returns the payload length in bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Kind returns the payload kind tag carried by the descriptor.
func (b *Buffer) Kind() uint8 { return b.Info.Kind }

// SetKind updates the payload kind tag.
func (b *Buffer) SetKind(k uint8) { b.Info.Kind = k }

// Owner returns the id of the segment hosting the chunk.
func (b *Buffer) Owner() string { return b.Info.SegmentID }

// RefCount reads the chunk's reference count.
func (b *Buffer) RefCount() uint64 { return b.rc.Load() }

// IncRef increments the chunk's reference count.
func (b *Buffer) IncRef() { b.rc.Add(1) }

// DecRef decrements the chunk's reference count.
func (b *Buffer) DecRef() { b.rc.Add(^uint64(0)) }

// Clone returns a second handle on the same chunk, incrementing the
// reference count.
func (b *Buffer) Clone() *Buffer {
	b.IncRef()
	return &Buffer{rc: b.rc, data: b.data, Info: b.Info}
}

// Drop releases this handle, decrementing the reference count. The chunk
// becomes reclaimable by the producer's next garbage collection pass once
// the count reaches zero.
func (b *Buffer) Drop() { b.DecRef() }

// AsSlice returns the payload bytes for reading.
func (b *Buffer) AsSlice() []byte { return b.data }

// AsMutSlice returns the payload bytes for writing.
//
// The mapping is shared across processes, so nothing prevents concurrent
// writers. The contract is single-writer: only the process that allocated
// the chunk may write to it, and only before publishing the descriptor.
func (b *Buffer) AsMutSlice() []byte { return b.data }
