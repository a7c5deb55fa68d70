package link

import (
	"context"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/fossabot/zenoh/internal/zerror"
)

const quicALPN = "zenoh"

// quicLink carries the framed batches over one bidirectional stream of a
// QUIC connection, with the same length-prefixed discipline as TCP.
type quicLink struct {
	conn   quic.Connection
	stream quic.Stream
	scheme string
}

func (l *quicLink) Read(p []byte) (int, error) {
	n, err := l.stream.Read(p)
	if err != nil {
		return n, zerror.Wrapf(zerror.KindIO, err, "%s: read failed", l.RemoteEndpoint())
	}
	return n, nil
}

func (l *quicLink) ReadExact(p []byte) error {
	if _, err := io.ReadFull(l.stream, p); err != nil {
		return zerror.Wrapf(zerror.KindIO, err, "%s: read failed", l.RemoteEndpoint())
	}
	return nil
}

func (l *quicLink) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := l.stream.Write(p)
		if err != nil {
			return zerror.Wrapf(zerror.KindIO, err, "%s: write failed", l.RemoteEndpoint())
		}
		p = p[n:]
	}
	return nil
}

func (l *quicLink) SetReadDeadline(t time.Time) error {
	return l.stream.SetReadDeadline(t)
}

func (l *quicLink) SetWriteDeadline(t time.Time) error {
	return l.stream.SetWriteDeadline(t)
}

func (l *quicLink) Close() error {
	l.stream.Close()
	return l.conn.CloseWithError(0, "")
}

func (l *quicLink) MTU() uint16      { return StreamMTU }
func (l *quicLink) IsStreamed() bool { return true }

func (l *quicLink) LocalEndpoint() string {
	return l.scheme + "/" + l.conn.LocalAddr().String()
}

func (l *quicLink) RemoteEndpoint() string {
	return l.scheme + "/" + l.conn.RemoteAddr().String()
}

func dialQUIC(ep Endpoint) (Link, error) {
	cfg, err := clientTLSConfig(ep)
	if err != nil {
		return nil, err
	}
	cfg.NextProtos = []string{quicALPN}
	conn, err := quic.DialAddr(context.Background(), ep.Address, cfg, nil)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to dial %s", ep)
	}
	stream, err := conn.OpenStreamSync(context.Background())
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to open stream on %s", ep)
	}
	return &quicLink{conn: conn, stream: stream, scheme: ep.Scheme}, nil
}

type quicListener struct {
	ln *quic.Listener
	ep Endpoint
}

func (q *quicListener) Accept() (Link, error) {
	conn, err := q.ln.Accept(context.Background())
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "%s: accept failed", q.ep)
	}
	stream, err := conn.AcceptStream(context.Background())
	if err != nil {
		conn.CloseWithError(0, "")
		return nil, zerror.Wrapf(zerror.KindIO, err, "%s: accept stream failed", q.ep)
	}
	return &quicLink{conn: conn, stream: stream, scheme: q.ep.Scheme}, nil
}

func (q *quicListener) Close() error       { return q.ln.Close() }
func (q *quicListener) Endpoint() Endpoint { return q.ep }

func listenQUIC(ep Endpoint) (Listener, error) {
	cfg, err := serverTLSConfig(ep)
	if err != nil {
		return nil, err
	}
	cfg.NextProtos = []string{quicALPN}
	ln, err := quic.ListenAddr(ep.Address, cfg, nil)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to listen on %s", ep)
	}
	bound := ep
	bound.Address = ln.Addr().String()
	return &quicListener{ln: ln, ep: bound}, nil
}
