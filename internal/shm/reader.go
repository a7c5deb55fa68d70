package shm

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/fossabot/zenoh/internal/zerror"
)

// Reader maps segment identifiers to mapped regions and materializes
// buffers from wire descriptors. Once a segment is mapped it stays mapped
// for the reader's lifetime.
type Reader struct {
	mu       sync.RWMutex
	segments map[string][]byte
}

// NewReader returns an empty registry.
func NewReader() *Reader {
	return &Reader{segments: make(map[string][]byte)}
}

// TryRead materializes a buffer assuming the segment is already mapped.
// It does not increment the reference count: the sender of the descriptor
// is contracted to have incremented it on our behalf.
func (r *Reader) TryRead(info BufferInfo) (*Buffer, error) {
	r.mu.RLock()
	segment, ok := r.segments[info.SegmentID]
	r.mu.RUnlock()
	if !ok {
		return nil, zerror.Newf(zerror.KindSharedMemory,
			"unable to find segment %s", info.SegmentID)
	}
	if info.Offset < 0 || info.Length < ChunkHeaderSize || info.Offset+info.Length > len(segment) {
		return nil, zerror.Newf(zerror.KindSharedMemory,
			"descriptor out of bounds for segment %s", info.SegmentID)
	}
	return newBuffer(segment, info), nil
}

// Read materializes a buffer, mapping the segment first if needed. A
// failure after mapping is fatal for the descriptor.
func (r *Reader) Read(info BufferInfo) (*Buffer, error) {
	buf, err := r.TryRead(info)
	if err == nil {
		return buf, nil
	}
	if err := r.connect(info.SegmentID); err != nil {
		return nil, err
	}
	return r.TryRead(info)
}

// connect maps the segment identified by id into this process.
func (r *Reader) connect(id string) error {
	f, err := os.OpenFile(id, os.O_RDWR, 0o644)
	if err != nil {
		return zerror.Wrapf(zerror.KindSharedMemory, err, "unable to bind segment %s", id)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return zerror.Wrapf(zerror.KindSharedMemory, err, "unable to stat segment %s", id)
	}
	// Read/write: consumers update refcount headers in place.
	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return zerror.Wrapf(zerror.KindSharedMemory, err, "unable to map segment %s", id)
	}
	r.mu.Lock()
	if _, ok := r.segments[id]; ok {
		// Lost the race with another reader, keep the first mapping.
		r.mu.Unlock()
		unix.Munmap(data)
		return nil
	}
	r.segments[id] = data
	r.mu.Unlock()
	return nil
}

// Close unmaps every segment. Buffers materialized by this reader must
// not be used afterwards.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, data := range r.segments {
		unix.Munmap(data)
		delete(r.segments, id)
	}
	return nil
}
