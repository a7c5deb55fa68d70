package link

import (
	"time"

	"github.com/fossabot/zenoh/internal/zerror"
)

// StreamMTU is the MTU of stream-oriented links. Byte streams have no
// natural limit, but the 16-bit length prefix constrains a transmission
// unit to 65535 bytes.
const StreamMTU uint16 = 65535

// DatagramMTU is the MTU assumed for datagram links: the largest UDP
// payload over IPv4.
const DatagramMTU uint16 = 65507

// AcceptThrottleTime is how long an accept loop pauses after an error.
const AcceptThrottleTime = 100 * time.Millisecond

// Link is one bidirectional byte channel over a concrete transport.
type Link interface {
	// Read reads up to len(p) bytes: one datagram on datagram links, any
	// amount on streamed ones.
	Read(p []byte) (int, error)
	// ReadExact fills p entirely.
	ReadExact(p []byte) error
	// WriteAll writes p entirely.
	WriteAll(p []byte) error
	// SetReadDeadline bounds the next reads; used to enforce the lease.
	SetReadDeadline(t time.Time) error
	// SetWriteDeadline bounds the next writes; used for the close flush.
	SetWriteDeadline(t time.Time) error
	Close() error

	MTU() uint16
	IsStreamed() bool
	LocalEndpoint() string
	RemoteEndpoint() string
}

// Listener accepts inbound links on a bound endpoint.
type Listener interface {
	Accept() (Link, error)
	Close() error
	Endpoint() Endpoint
}

// Dial opens an outbound link to the endpoint.
func Dial(ep Endpoint) (Link, error) {
	switch ep.Scheme {
	case "tcp":
		return dialTCP(ep)
	case "udp":
		return dialUDP(ep)
	case "tls":
		return dialTLS(ep)
	case "quic":
		return dialQUIC(ep)
	case "unixsock-stream":
		return dialUnix(ep)
	}
	return nil, zerror.Newf(zerror.KindOther, "unsupported endpoint scheme %q", ep.Scheme)
}

// Listen binds a listener on the endpoint.
func Listen(ep Endpoint) (Listener, error) {
	switch ep.Scheme {
	case "tcp":
		return listenTCP(ep)
	case "udp":
		return listenUDP(ep)
	case "tls":
		return listenTLS(ep)
	case "quic":
		return listenQUIC(ep)
	case "unixsock-stream":
		return listenUnix(ep)
	}
	return nil, zerror.Newf(zerror.KindOther, "unsupported endpoint scheme %q", ep.Scheme)
}

// IsTimeout reports whether an I/O error is a read deadline expiration.
func IsTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	for err != nil {
		if t, ok := err.(timeout); ok {
			return t.Timeout()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
