// Package zenoh implements the data plane of a peer-to-peer
// publish/subscribe and query messaging fabric: a transport manager
// multiplexing unicast links over tcp, udp, tls, quic and unix sockets,
// with a multi-priority batching transmission pipeline, shared-memory
// payloads, and a pluggable authentication handshake.
package zenoh

import (
	"github.com/fossabot/zenoh/internal/auth"
	"github.com/fossabot/zenoh/internal/link"
	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/shm"
)

// Wire-level types re-exported for users of the public API.
type (
	ZInt              = proto.ZInt
	Priority          = proto.Priority
	Reliability       = proto.Reliability
	Channel           = proto.Channel
	CongestionControl = proto.CongestionControl
	PeerID            = proto.PeerID
	ResKey            = proto.ResKey
	SubInfo           = proto.SubInfo
	SubMode           = proto.SubMode
	DataInfo          = proto.DataInfo
	Payload           = proto.Payload
	Message           = proto.Message
	Properties        = proto.Properties

	MsgKind = proto.MsgKind

	Link     = link.Link
	Endpoint = link.Endpoint

	Authenticator = auth.Authenticator

	SharedMemoryBufferInfo = shm.BufferInfo
)

// Priority lanes, highest first.
const (
	PriorityControl         = proto.PriorityControl
	PriorityRealTime        = proto.PriorityRealTime
	PriorityInteractiveHigh = proto.PriorityInteractiveHigh
	PriorityInteractiveLow  = proto.PriorityInteractiveLow
	PriorityData            = proto.PriorityData
	PriorityDataLow         = proto.PriorityDataLow
	PriorityBackground      = proto.PriorityBackground
)

const (
	BestEffort = proto.BestEffort
	Reliable   = proto.Reliable

	CongestionBlock = proto.CongestionBlock
	CongestionDrop  = proto.CongestionDrop

	SubModePush = proto.SubModePush
	SubModePull = proto.SubModePull
)

// Data-plane message kinds, as seen by peer event handlers.
const (
	MsgDeclare = proto.MsgDeclare
	MsgData    = proto.MsgData
	MsgUnit    = proto.MsgUnit
	MsgQuery   = proto.MsgQuery
	MsgPull    = proto.MsgPull
)

// Node roles carried by the handshake.
const (
	WhatAmIRouter = proto.WhatAmIRouter
	WhatAmIPeer   = proto.WhatAmIPeer
	WhatAmIClient = proto.WhatAmIClient
)

// NewUserPasswordAuthenticator builds the username/password authenticator.
// lookup may be nil on a pure client; user may be empty on a pure router.
func NewUserPasswordAuthenticator(lookup map[string]string, user, password string) *auth.UserPasswordAuthenticator {
	return auth.NewUserPasswordAuthenticator(lookup, user, password)
}

// NewSharedMemoryAuthenticator builds the shared-memory liveness
// authenticator.
func NewSharedMemoryAuthenticator() (*auth.SharedMemoryAuthenticator, error) {
	return auth.NewSharedMemoryAuthenticator()
}

// NewSharedMemoryManager opens or creates the shared-memory segment `id`
// and manages allocations out of it.
func NewSharedMemoryManager(id string, size int) (*shm.Manager, error) {
	return shm.New(id, size)
}

// NewSharedMemoryReader returns a registry resolving shared-memory
// descriptors received from the wire.
func NewSharedMemoryReader() *shm.Reader {
	return shm.NewReader()
}

// RandomPeerID returns a fresh 16-byte peer id.
func RandomPeerID() PeerID { return proto.RandomPeerID() }
