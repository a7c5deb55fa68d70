package proto

import (
	"bytes"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/fossabot/zenoh/internal/zerror"
)

// PeerIDMaxSize is the maximum length in bytes of a peer identifier.
const PeerIDMaxSize = 16

// PeerID is the opaque identifier of an endpoint, 1 to 16 bytes long.
// It travels length-prefixed on the wire.
type PeerID []byte

// NewPeerID validates and returns a peer id backed by the given bytes.
func NewPeerID(b []byte) (PeerID, error) {
	if len(b) == 0 || len(b) > PeerIDMaxSize {
		return nil, zerror.Newf(zerror.KindOther, "invalid peer id length %d", len(b))
	}
	id := make(PeerID, len(b))
	copy(id, b)
	return id, nil
}

// RandomPeerID returns a fresh 16-byte peer id.
func RandomPeerID() PeerID {
	u := uuid.New()
	return PeerID(u[:])
}

// Equal reports whether two peer ids are byte-wise identical.
func (p PeerID) Equal(o PeerID) bool { return bytes.Equal(p, o) }

func (p PeerID) String() string { return hex.EncodeToString(p) }
