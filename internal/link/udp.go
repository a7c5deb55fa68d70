package link

import (
	"net"
	"sync"
	"time"

	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/internal/zerror"
)

// deadlineExceeded mimics the stdlib deadline error for channel-backed
// reads so that IsTimeout works uniformly across link kinds.
type deadlineExceeded struct{}

func (deadlineExceeded) Error() string { return "i/o timeout" }
func (deadlineExceeded) Timeout() bool { return true }

// udpDialLink is a connected client-side UDP socket.
type udpDialLink struct {
	conn *net.UDPConn
}

func (l *udpDialLink) Read(p []byte) (int, error) {
	n, err := l.conn.Read(p)
	if err != nil {
		return n, zerror.Wrapf(zerror.KindIO, err, "%s: read failed", l.RemoteEndpoint())
	}
	return n, nil
}

func (l *udpDialLink) ReadExact(p []byte) error {
	n, err := l.Read(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return zerror.Newf(zerror.KindIO, "%s: short datagram", l.RemoteEndpoint())
	}
	return nil
}

func (l *udpDialLink) WriteAll(p []byte) error {
	if _, err := l.conn.Write(p); err != nil {
		return zerror.Wrapf(zerror.KindIO, err, "%s: write failed", l.RemoteEndpoint())
	}
	return nil
}

func (l *udpDialLink) SetReadDeadline(t time.Time) error  { return l.conn.SetReadDeadline(t) }
func (l *udpDialLink) SetWriteDeadline(t time.Time) error { return l.conn.SetWriteDeadline(t) }
func (l *udpDialLink) Close() error                       { return l.conn.Close() }
func (l *udpDialLink) MTU() uint16                       { return DatagramMTU }
func (l *udpDialLink) IsStreamed() bool                  { return false }
func (l *udpDialLink) LocalEndpoint() string             { return "udp/" + l.conn.LocalAddr().String() }
func (l *udpDialLink) RemoteEndpoint() string            { return "udp/" + l.conn.RemoteAddr().String() }

func dialUDP(ep Endpoint) (Link, error) {
	raddr, err := net.ResolveUDPAddr("udp", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to resolve %s", ep)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to dial %s", ep)
	}
	return &udpDialLink{conn: conn}, nil
}

// udpListener demultiplexes datagrams of one bound socket into per-peer
// links keyed by remote address.
type udpListener struct {
	conn    *net.UDPConn
	ep      Endpoint
	accepts chan *udpServerLink
	done    chan struct{}
	once    sync.Once

	mu    sync.Mutex
	links map[string]*udpServerLink
}

const udpLinkBacklog = 128

func listenUDP(ep Endpoint) (Listener, error) {
	laddr, err := net.ResolveUDPAddr("udp", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to resolve %s", ep)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to listen on %s", ep)
	}
	bound := ep
	bound.Address = conn.LocalAddr().String()
	l := &udpListener{
		conn:    conn,
		ep:      bound,
		accepts: make(chan *udpServerLink, 16),
		done:    make(chan struct{}),
		links:   make(map[string]*udpServerLink),
	}
	go l.demux()
	return l, nil
}

// demux routes every inbound datagram to the link of its source address,
// creating the link (and surfacing it through Accept) on first contact.
func (l *udpListener) demux() {
	buf := make([]byte, DatagramMTU)
	for {
		n, raddr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			logging.Debug("udp demux read failed", "endpoint", l.ep.String(), "err", err)
			time.Sleep(AcceptThrottleTime)
			continue
		}
		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		key := raddr.String()
		l.mu.Lock()
		lk, ok := l.links[key]
		if !ok {
			lk = &udpServerLink{
				parent: l,
				raddr:  raddr,
				rx:     make(chan []byte, udpLinkBacklog),
				closed: make(chan struct{}),
			}
			l.links[key] = lk
		}
		l.mu.Unlock()

		if !ok {
			select {
			case l.accepts <- lk:
			case <-l.done:
				return
			}
		}
		select {
		case lk.rx <- datagram:
		default:
			// Peer outruns its reader, shed the datagram.
		}
	}
}

func (l *udpListener) Accept() (Link, error) {
	select {
	case lk := <-l.accepts:
		return lk, nil
	case <-l.done:
		return nil, zerror.Newf(zerror.KindIO, "%s: listener closed", l.ep)
	}
}

func (l *udpListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return l.conn.Close()
}

func (l *udpListener) Endpoint() Endpoint { return l.ep }

func (l *udpListener) remove(key string) {
	l.mu.Lock()
	delete(l.links, key)
	l.mu.Unlock()
}

// udpServerLink is one peer's view of a shared server socket. Reads pop
// demultiplexed datagrams; writes go straight to the socket.
type udpServerLink struct {
	parent *udpListener
	raddr  *net.UDPAddr
	rx     chan []byte
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	deadline time.Time
}

func (l *udpServerLink) Read(p []byte) (int, error) {
	var timeout <-chan time.Time
	l.mu.Lock()
	if !l.deadline.IsZero() {
		d := time.Until(l.deadline)
		l.mu.Unlock()
		if d <= 0 {
			return 0, zerror.Wrapf(zerror.KindIO, deadlineExceeded{}, "%s: read failed", l.RemoteEndpoint())
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	} else {
		l.mu.Unlock()
	}

	select {
	case datagram := <-l.rx:
		n := copy(p, datagram)
		return n, nil
	case <-timeout:
		return 0, zerror.Wrapf(zerror.KindIO, deadlineExceeded{}, "%s: read failed", l.RemoteEndpoint())
	case <-l.closed:
		return 0, zerror.Newf(zerror.KindIO, "%s: link closed", l.RemoteEndpoint())
	case <-l.parent.done:
		return 0, zerror.Newf(zerror.KindIO, "%s: listener closed", l.RemoteEndpoint())
	}
}

func (l *udpServerLink) ReadExact(p []byte) error {
	n, err := l.Read(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return zerror.Newf(zerror.KindIO, "%s: short datagram", l.RemoteEndpoint())
	}
	return nil
}

func (l *udpServerLink) WriteAll(p []byte) error {
	if _, err := l.parent.conn.WriteToUDP(p, l.raddr); err != nil {
		return zerror.Wrapf(zerror.KindIO, err, "%s: write failed", l.RemoteEndpoint())
	}
	return nil
}

func (l *udpServerLink) SetReadDeadline(t time.Time) error {
	l.mu.Lock()
	l.deadline = t
	l.mu.Unlock()
	return nil
}

// SetWriteDeadline is a no-op: datagram sends on the shared server socket
// do not block.
func (l *udpServerLink) SetWriteDeadline(time.Time) error { return nil }

func (l *udpServerLink) Close() error {
	l.once.Do(func() {
		l.parent.remove(l.raddr.String())
		close(l.closed)
	})
	return nil
}

func (l *udpServerLink) MTU() uint16            { return DatagramMTU }
func (l *udpServerLink) IsStreamed() bool       { return false }
func (l *udpServerLink) LocalEndpoint() string  { return "udp/" + l.parent.conn.LocalAddr().String() }
func (l *udpServerLink) RemoteEndpoint() string { return "udp/" + l.raddr.String() }
