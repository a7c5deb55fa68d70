// Package proto defines the wire-level data model of the fabric: message
// kinds, the framing constants, priority lanes, data kinds and encodings.
package proto

// ZInt is the variable-length encoded integer used throughout the protocol.
type ZInt = uint64

// Protocol version.
//
//	7 6 5 4 3 2 1 0
//	+-+-+-+-+-+-+-+-+
//	| v_maj | v_min |
//	+-------+-------+
const Version uint8 = 0x05

// SeqNumResolution is the default sequence number resolution. Four bytes
// of VLE encoding yield 28 useful bits.
const SeqNumResolution ZInt = 268_435_456 // 2^28

// BatchSize is the maximum size in bytes of a serialized batch. Sixteen
// bits may be prepended to a batch on stream-oriented transports (e.g.
// TCP) to carry its total length, so a batch can never exceed 65_535
// bytes. The length is encoded as little-endian.
const BatchSize uint16 = 65535

// FrameHeaderSize is the size of the length prefix prepended to every
// batch on stream-oriented links.
const FrameHeaderSize = 2

// Priority is a transmission lane. Lower values are served first.
type Priority uint8

const (
	PriorityControl Priority = iota
	PriorityRealTime
	PriorityInteractiveHigh
	PriorityInteractiveLow
	PriorityData
	PriorityDataLow
	PriorityBackground

	// NumPriorities is the number of transmission lanes.
	NumPriorities = 7
)

func (p Priority) String() string {
	switch p {
	case PriorityControl:
		return "control"
	case PriorityRealTime:
		return "realtime"
	case PriorityInteractiveHigh:
		return "interactive-high"
	case PriorityInteractiveLow:
		return "interactive-low"
	case PriorityData:
		return "data"
	case PriorityDataLow:
		return "data-low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Reliability qualifies a channel.
type Reliability uint8

const (
	BestEffort Reliability = iota
	Reliable
)

// Channel pairs a priority lane with a reliability mode. The pipeline
// derives the lane of an application message from its channel.
type Channel struct {
	Priority    Priority
	Reliability Reliability
}

// CongestionControl selects the behavior of a push into a full lane.
type CongestionControl uint8

const (
	// CongestionBlock suspends the caller until space is available or
	// the pipeline is disabled.
	CongestionBlock CongestionControl = iota
	// CongestionDrop silently drops the message.
	CongestionDrop
)

// Defaults for reply messages.
var (
	ReplyChannel    = Channel{Priority: PriorityData, Reliability: Reliable}
	ReplyCongestion = CongestionBlock
)
