package proto

import (
	"strconv"

	"github.com/fossabot/zenoh/internal/shm"
)

// MsgKind tags a wire message.
type MsgKind uint8

const (
	MsgInit MsgKind = iota + 1
	MsgInitAck
	MsgOpen
	MsgOpenAck
	MsgClose
	MsgKeepAlive
	MsgDeclare
	MsgData
	MsgUnit
	MsgQuery
	MsgPull
)

func (k MsgKind) String() string {
	switch k {
	case MsgInit:
		return "Init"
	case MsgInitAck:
		return "InitAck"
	case MsgOpen:
		return "Open"
	case MsgOpenAck:
		return "OpenAck"
	case MsgClose:
		return "Close"
	case MsgKeepAlive:
		return "KeepAlive"
	case MsgDeclare:
		return "Declare"
	case MsgData:
		return "Data"
	case MsgUnit:
		return "Unit"
	case MsgQuery:
		return "Query"
	case MsgPull:
		return "Pull"
	default:
		return "Unknown"
	}
}

// WhatAmI values carried by the handshake.
const (
	WhatAmIRouter ZInt = 1 << 0
	WhatAmIPeer   ZInt = 1 << 1
	WhatAmIClient ZInt = 1 << 2
)

// Close reasons.
const (
	CloseGeneric     uint8 = 0
	CloseMaxLinks    uint8 = 3
	CloseExpired     uint8 = 5
	CloseInvalid     uint8 = 4
	CloseUnsupported uint8 = 2
)

// Properties carries opaque per-authenticator attachments during the
// handshake, keyed by authenticator id.
type Properties map[string][]byte

// ResKey names a resource: a numeric id, a suffix expression, or both.
// A zero RID with a suffix is a purely textual key.
type ResKey struct {
	RID    ZInt
	Suffix string
}

// HasSuffix reports whether the key carries a textual part.
func (k ResKey) HasSuffix() bool { return k.Suffix != "" }

func (k ResKey) String() string {
	if k.HasSuffix() {
		return k.Suffix
	}
	return "#" + strconv.FormatUint(k.RID, 10)
}

// DeclKind tags a declaration inside a Declare bundle.
type DeclKind uint8

const (
	DeclResource DeclKind = iota + 1
	DeclForgetResource
	DeclPublisher
	DeclForgetPublisher
	DeclSubscriber
	DeclForgetSubscriber
	DeclQueryable
	DeclForgetQueryable
)

// SubMode selects push or pull delivery for a subscriber.
type SubMode uint8

const (
	SubModePush SubMode = iota
	SubModePull
)

// SubInfo describes a subscription.
type SubInfo struct {
	Reliability Reliability
	Mode        SubMode
}

// Declaration is one element of a Declare bundle.
type Declaration struct {
	Kind  DeclKind
	RID   ZInt    // resource id (DeclResource, DeclForgetResource)
	Key   ResKey  // all kinds but DeclForgetResource
	Sub   SubInfo // DeclSubscriber
	QKind ZInt    // DeclQueryable
}

// DataInfo qualifies a data payload.
type DataInfo struct {
	Kind     ZInt
	Encoding ZInt
}

// ReplierInfo identifies the replier inside a reply context.
type ReplierInfo struct {
	Kind ZInt
	ID   PeerID
}

// ReplyContext routes a reply back to its query. A context without a
// replier is a reply terminator.
type ReplyContext struct {
	QID     ZInt
	Replier *ReplierInfo
}

// Query targets. The default target is elided on the wire.
const (
	TargetBestMatching ZInt = 0
	TargetComplete     ZInt = 1
	TargetAll          ZInt = 2
	TargetNone         ZInt = 3

	TargetDefault = TargetBestMatching
)

// Payload is either inline bytes or a shared-memory descriptor.
type Payload struct {
	Data []byte
	SHM  *shm.BufferInfo
}

// IsSHM reports whether the payload travels as a shared-memory descriptor.
func (p Payload) IsSHM() bool { return p.SHM != nil }

// Message is one wire message of either the transport or the data plane.
// Only the fields relevant to Kind are meaningful.
type Message struct {
	Kind MsgKind

	// Routing of the message through the transmission pipeline.
	Channel    Channel
	Congestion CongestionControl

	// Transport plane.
	Version      uint8
	WhatAmI      ZInt
	PeerID       PeerID
	SNResolution ZInt
	Lease        ZInt // milliseconds
	InitialSN    ZInt
	Reason       uint8
	LinkOnly     bool
	Properties   Properties

	// Data plane.
	Declarations  []Declaration
	Key           ResKey
	Info          *DataInfo
	Reply         *ReplyContext
	Payload       Payload
	Predicate     string
	QID           ZInt
	Target        ZInt
	Consolidation ZInt
	PullID        ZInt
	MaxSamples    *ZInt
	IsFinal       bool
}

// IsTransport reports whether the message belongs to the transport plane.
func (m *Message) IsTransport() bool {
	return m.Kind >= MsgInit && m.Kind <= MsgKeepAlive
}

// MakeInit builds the first handshake message of the opener.
func MakeInit(whatami ZInt, pid PeerID, snRes ZInt, props Properties) *Message {
	return &Message{
		Kind: MsgInit, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		Version: Version, WhatAmI: whatami, PeerID: pid, SNResolution: snRes, Properties: props,
	}
}

// MakeInitAck builds the router's answer carrying its challenges.
func MakeInitAck(whatami ZInt, pid PeerID, snRes ZInt, props Properties) *Message {
	return &Message{
		Kind: MsgInitAck, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		Version: Version, WhatAmI: whatami, PeerID: pid, SNResolution: snRes, Properties: props,
	}
}

// MakeOpen builds the opener's second message carrying its responses.
func MakeOpen(leaseMillis ZInt, initialSN ZInt, props Properties) *Message {
	return &Message{
		Kind: MsgOpen, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		Lease: leaseMillis, InitialSN: initialSN, Properties: props,
	}
}

// MakeOpenAck concludes a successful handshake.
func MakeOpenAck(leaseMillis ZInt, initialSN ZInt) *Message {
	return &Message{
		Kind: MsgOpenAck, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		Lease: leaseMillis, InitialSN: initialSN,
	}
}

// MakeClose builds a close notification.
func MakeClose(pid PeerID, reason uint8, linkOnly bool) *Message {
	return &Message{
		Kind: MsgClose, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		PeerID: pid, Reason: reason, LinkOnly: linkOnly,
	}
}

// MakeKeepAlive builds a keep-alive probe.
func MakeKeepAlive(pid PeerID) *Message {
	return &Message{
		Kind: MsgKeepAlive, Channel: Channel{Priority: PriorityBackground, Reliability: BestEffort},
		PeerID: pid,
	}
}

// MakeDeclare bundles declarations into one message.
func MakeDeclare(decls []Declaration) *Message {
	return &Message{
		Kind: MsgDeclare, Channel: Channel{Priority: PriorityControl, Reliability: Reliable},
		Declarations: decls,
	}
}

// MakeData builds a data message.
func MakeData(key ResKey, payload Payload, ch Channel, cc CongestionControl, info *DataInfo, reply *ReplyContext) *Message {
	return &Message{
		Kind: MsgData, Channel: ch, Congestion: cc,
		Key: key, Payload: payload, Info: info, Reply: reply,
	}
}

// MakeUnit builds a payload-less message, used as reply terminator.
func MakeUnit(ch Channel, cc CongestionControl, reply *ReplyContext) *Message {
	return &Message{Kind: MsgUnit, Channel: ch, Congestion: cc, Reply: reply}
}

// MakeQuery builds a query. The default target is elided on the wire.
func MakeQuery(key ResKey, predicate string, qid ZInt, target ZInt, consolidation ZInt) *Message {
	return &Message{
		Kind: MsgQuery, Channel: Channel{Priority: PriorityData, Reliability: Reliable},
		Key: key, Predicate: predicate, QID: qid, Target: target, Consolidation: consolidation,
	}
}

// MakePull builds a pull request.
func MakePull(isFinal bool, key ResKey, pullID ZInt, maxSamples *ZInt) *Message {
	return &Message{
		Kind: MsgPull, Channel: Channel{Priority: PriorityData, Reliability: Reliable},
		Key: key, PullID: pullID, MaxSamples: maxSamples, IsFinal: isFinal,
	}
}
