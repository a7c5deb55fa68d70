package link

import (
	"io"
	"net"
	"time"

	"github.com/fossabot/zenoh/internal/zerror"
)

// streamLink adapts any connected net.Conn with stream semantics.
type streamLink struct {
	conn   net.Conn
	scheme string
}

func (l *streamLink) Read(p []byte) (int, error) {
	n, err := l.conn.Read(p)
	if err != nil {
		return n, zerror.Wrapf(zerror.KindIO, err, "%s: read failed", l.RemoteEndpoint())
	}
	return n, nil
}

func (l *streamLink) ReadExact(p []byte) error {
	if _, err := io.ReadFull(l.conn, p); err != nil {
		return zerror.Wrapf(zerror.KindIO, err, "%s: read failed", l.RemoteEndpoint())
	}
	return nil
}

func (l *streamLink) WriteAll(p []byte) error {
	for len(p) > 0 {
		n, err := l.conn.Write(p)
		if err != nil {
			return zerror.Wrapf(zerror.KindIO, err, "%s: write failed", l.RemoteEndpoint())
		}
		p = p[n:]
	}
	return nil
}

func (l *streamLink) SetReadDeadline(t time.Time) error {
	return l.conn.SetReadDeadline(t)
}

func (l *streamLink) SetWriteDeadline(t time.Time) error {
	return l.conn.SetWriteDeadline(t)
}

func (l *streamLink) Close() error {
	return l.conn.Close()
}

func (l *streamLink) MTU() uint16      { return StreamMTU }
func (l *streamLink) IsStreamed() bool { return true }

func (l *streamLink) LocalEndpoint() string {
	return l.scheme + "/" + l.conn.LocalAddr().String()
}

func (l *streamLink) RemoteEndpoint() string {
	return l.scheme + "/" + l.conn.RemoteAddr().String()
}

// streamListener adapts a net.Listener.
type streamListener struct {
	ln     net.Listener
	ep     Endpoint
	scheme string
}

func (s *streamListener) Accept() (Link, error) {
	conn, err := s.ln.Accept()
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "%s: accept failed", s.ep)
	}
	return &streamLink{conn: conn, scheme: s.scheme}, nil
}

func (s *streamListener) Close() error       { return s.ln.Close() }
func (s *streamListener) Endpoint() Endpoint { return s.ep }
