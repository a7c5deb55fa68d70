package auth

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"

	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/shm"
	"github.com/fossabot/zenoh/internal/zerror"
)

// SharedMemoryID keys shared-memory attachments in handshake properties.
const SharedMemoryID = "shm"

const challengeSegmentSize = 4096

// SharedMemoryAuthenticator proves shared-memory connectivity between the
// two ends of a link. The challenger allocates a chunk in a segment of
// its own, writes a random value into it, and sends the descriptor; the
// responder maps the segment, reads the value back and echoes it. A
// successful exchange flags the transport as shared-memory capable, which
// makes descriptor payloads legal in either direction.
type SharedMemoryAuthenticator struct {
	manager *shm.Manager
	buffer  *shm.Buffer
	magic   uint64
	reader  *shm.Reader
}

// NewSharedMemoryAuthenticator creates the liveness segment. The error is
// fatal: a node configured for shared memory that cannot create a segment
// must not declare the capability.
func NewSharedMemoryAuthenticator() (*SharedMemoryAuthenticator, error) {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, zerror.Wrap(zerror.KindOther, "unable to seed shm challenge", err)
	}
	manager, err := shm.New("auth_"+hex.EncodeToString(seed[:]), challengeSegmentSize)
	if err != nil {
		return nil, err
	}
	buffer, err := manager.Alloc(8)
	if err != nil {
		manager.Close()
		return nil, err
	}
	magic := binary.LittleEndian.Uint64(seed[:])
	binary.LittleEndian.PutUint64(buffer.AsMutSlice(), magic)
	return &SharedMemoryAuthenticator{
		manager: manager,
		buffer:  buffer,
		magic:   magic,
		reader:  shm.NewReader(),
	}, nil
}

// ID implements Authenticator.
func (a *SharedMemoryAuthenticator) ID() string { return SharedMemoryID }

// Close releases the liveness segment.
func (a *SharedMemoryAuthenticator) Close() error {
	a.buffer.Drop()
	return a.manager.Close()
}

func (a *SharedMemoryAuthenticator) descriptorBytes() ([]byte, error) {
	info := a.buffer.Info
	buf := make([]byte, len(info.SegmentID)+32)
	w := proto.NewWriteBuffer(buf)
	if err := w.WriteString(info.SegmentID); err != nil {
		return nil, err
	}
	if err := w.WriteZInt(proto.ZInt(info.Offset)); err != nil {
		return nil, err
	}
	if err := w.WriteZInt(proto.ZInt(info.Length)); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// readChallenge maps the peer's segment and reads the value it wrote.
func (a *SharedMemoryAuthenticator) readChallenge(challenge []byte) (uint64, error) {
	r := proto.NewReadBuffer(challenge)
	var info shm.BufferInfo
	var err error
	if info.SegmentID, err = r.ReadString(); err != nil {
		return 0, err
	}
	off, err := r.ReadZInt()
	if err != nil {
		return 0, err
	}
	length, err := r.ReadZInt()
	if err != nil {
		return 0, err
	}
	info.Offset = int(off)
	info.Length = int(length)
	buf, err := a.reader.Read(info)
	if err != nil {
		return 0, err
	}
	if buf.Len() < 8 {
		return 0, zerror.Authentication(SharedMemoryID, "challenge chunk too small")
	}
	return binary.LittleEndian.Uint64(buf.AsSlice()), nil
}

// StartOpen implements Authenticator.
func (a *SharedMemoryAuthenticator) StartOpen() OpenSession { return &shmOpen{auth: a} }

// StartAccept implements Authenticator.
func (a *SharedMemoryAuthenticator) StartAccept() AcceptSession { return &shmAccept{auth: a} }

type shmOpen struct {
	auth *SharedMemoryAuthenticator
}

// InitAttachment declares the shared-memory capability.
func (s *shmOpen) InitAttachment() ([]byte, error) {
	return []byte{1}, nil
}

func (s *shmOpen) Respond(challenge []byte, present bool) ([]byte, *Attributes, error) {
	if !present {
		// The listener is not shared-memory capable; proceed without.
		return nil, nil, nil
	}
	value, err := s.auth.readChallenge(challenge)
	if err != nil {
		// The segment is not reachable from this process: different host
		// or namespace. Not fatal, just not shared memory.
		return nil, nil, nil
	}
	echo := make([]byte, 8)
	binary.LittleEndian.PutUint64(echo, value)
	return echo, &Attributes{SHM: true}, nil
}

type shmAccept struct {
	auth *SharedMemoryAuthenticator
}

func (s *shmAccept) Challenge(initAttachment []byte, present bool) ([]byte, error) {
	if !present || len(initAttachment) == 0 || initAttachment[0] == 0 {
		// The opener did not declare the capability.
		return nil, nil
	}
	return s.auth.descriptorBytes()
}

func (s *shmAccept) Verify(response []byte, present bool) (*Attributes, error) {
	if !present {
		// The opener could not reach our segment; admit without the flag.
		return nil, nil
	}
	if len(response) != 8 || binary.LittleEndian.Uint64(response) != s.auth.magic {
		return nil, zerror.Authentication(SharedMemoryID, "invalid challenge echo")
	}
	return &Attributes{SHM: true}, nil
}
