package shm

import (
	"container/heap"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/internal/zerror"
)

const (
	// MinFreeChunkSize is the smallest residual worth keeping as its own
	// free chunk after a split.
	MinFreeChunkSize = 1024
	// AccountedOverhead is the fixed overhead added to the requested
	// segment size.
	AccountedOverhead = 4096

	segmentPrefix = "zenoh_shm_pid"
)

// chunk is a contiguous span inside the segment.
type chunk struct {
	offset int
	size   int
}

// chunkHeap orders free chunks by size, largest first.
type chunkHeap []chunk

func (h chunkHeap) Len() int           { return len(h) }
func (h chunkHeap) Less(i, j int) bool { return h[i].size > h[j].size }
func (h chunkHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x any)        { *h = append(*h, x.(chunk)) }
func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

func alignUp(n, align int) int {
	if r := n % align; r != 0 {
		return n + (align - r)
	}
	return n
}

// Manager owns one shared-memory segment and allocates refcounted chunks
// out of it. It is single-writer: only the producer process mutates the
// free heap and busy list. Consumers touch nothing but the refcount
// headers, through atomics.
type Manager struct {
	segmentPath string
	size        int
	available   int
	data        []byte
	file        *os.File
	freeList    chunkHeap
	busyList    []chunk
	alignment   int
}

// SegmentPath returns the backing file path for a segment id.
func SegmentPath(id string) string {
	return filepath.Join(os.TempDir(), segmentPrefix+"_"+id)
}

// New opens or creates a segment of size + AccountedOverhead bytes and
// installs a single free chunk covering the whole region. An existing
// backing file is opened, not truncated: concurrent creators race
// benignly.
func New(id string, size int) (*Manager, error) {
	path := SegmentPath(id)
	realSize := size + AccountedOverhead
	logging.Debug("creating shm segment", "path", path, "size", realSize)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	switch {
	case err == nil:
		if err := f.Truncate(int64(realSize)); err != nil {
			f.Close()
			os.Remove(path)
			return nil, zerror.Wrapf(zerror.KindSharedMemory, err, "unable to size segment %s", path)
		}
	case os.IsExist(err):
		// The segment already exists, open it.
		f, err = os.OpenFile(path, os.O_RDWR, 0o644)
		if err != nil {
			return nil, zerror.Wrapf(zerror.KindSharedMemory, err, "unable to open segment %s", path)
		}
	default:
		return nil, zerror.Wrapf(zerror.KindSharedMemory, err, "unable to create segment %s", path)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, realSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, zerror.Wrapf(zerror.KindSharedMemory, err, "unable to map segment %s", path)
	}

	m := &Manager{
		segmentPath: path,
		size:        size,
		available:   realSize,
		data:        data,
		file:        f,
		alignment:   int(unsafe.Alignof(uint64(0))),
	}
	heap.Push(&m.freeList, chunk{offset: 0, size: realSize})
	return m, nil
}

// SegmentID returns the identifier consumers use to map this segment.
func (m *Manager) SegmentID() string { return m.segmentPath }

// Available returns the number of allocatable bytes left.
func (m *Manager) Available() int { return m.available }

func (m *Manager) refcount(c chunk) *atomic.Uint64 {
	return (*atomic.Uint64)(unsafe.Pointer(&m.data[c.offset]))
}

// Alloc returns a buffer of at least len payload bytes, or an error when
// no sufficiently large chunk exists even after garbage collection.
// Allocation failure is non-fatal: the caller may retry after consumers
// release buffers.
func (m *Manager) Alloc(length int) (*Buffer, error) {
	// Always allocate a size that keeps the alignment requirements.
	required := alignUp(length+ChunkHeaderSize, m.alignment)
	if m.available < required {
		m.GarbageCollect()
	}
	if m.available < required {
		return nil, zerror.Newf(zerror.KindSharedMemory,
			"insufficient free memory for %d bytes in %s", length, m.segmentPath)
	}
	if m.freeList.Len() == 0 {
		return nil, zerror.Newf(zerror.KindSharedMemory,
			"no available chunk in %s", m.segmentPath)
	}

	// Best fit by largest: take the biggest free chunk so the leftover is
	// the biggest possible, the strategy of some Unix System V allocators.
	c := heap.Pop(&m.freeList).(chunk)
	if c.size < required {
		heap.Push(&m.freeList, c)
		return nil, zerror.Newf(zerror.KindSharedMemory,
			"no chunk of %d bytes available in %s", length, m.segmentPath)
	}

	m.available -= required
	if c.size-required >= MinFreeChunkSize {
		heap.Push(&m.freeList, chunk{offset: c.offset + required, size: c.size - required})
	}
	c.size = required

	m.refcount(c).Store(1)
	m.busyList = append(m.busyList, c)
	return newBuffer(m.data, BufferInfo{
		SegmentID: m.segmentPath,
		Offset:    c.offset,
		Length:    c.size,
	}), nil
}

// GarbageCollect moves busy chunks whose refcount dropped to zero back
// into the free heap. Returns the number of bytes reclaimed.
func (m *Manager) GarbageCollect() int {
	freed := 0
	busy := m.busyList[:0]
	for _, c := range m.busyList {
		if m.refcount(c).Load() == 0 {
			logging.Trace("garbage collecting chunk", "offset", c.offset, "size", c.size)
			freed += c.size
			heap.Push(&m.freeList, c)
		} else {
			busy = append(busy, c)
		}
	}
	m.busyList = busy
	m.available += freed
	return freed
}

// Defragment coalesces free chunks whose ranges are end-to-end adjacent.
// Returns the number of bytes merged.
func (m *Manager) Defragment() int {
	if m.freeList.Len() < 2 {
		return 0
	}
	chunks := []chunk(m.freeList)
	m.freeList = nil
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].offset < chunks[j].offset })

	merged := 0
	current := chunks[0]
	joined := false
	for _, next := range chunks[1:] {
		if current.offset+current.size == next.offset {
			if !joined {
				merged += current.size
				joined = true
			}
			current.size += next.size
			merged += next.size
		} else {
			heap.Push(&m.freeList, current)
			current = next
			joined = false
		}
	}
	heap.Push(&m.freeList, current)
	return merged
}

// FreeChunks returns the offsets and sizes of the free chunks, for
// inspection.
func (m *Manager) FreeChunks() []BufferInfo {
	out := make([]BufferInfo, 0, m.freeList.Len())
	for _, c := range m.freeList {
		out = append(out, BufferInfo{SegmentID: m.segmentPath, Offset: c.offset, Length: c.size})
	}
	return out
}

// Close unmaps the segment and removes its backing file. Buffers handed
// out by this manager must not be used afterwards.
func (m *Manager) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	m.file.Close()
	os.Remove(m.segmentPath)
	if err != nil {
		return zerror.Wrapf(zerror.KindSharedMemory, err, "unable to unmap segment %s", m.segmentPath)
	}
	return nil
}
