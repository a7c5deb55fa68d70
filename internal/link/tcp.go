package link

import (
	"net"

	"github.com/fossabot/zenoh/internal/zerror"
)

func dialTCP(ep Endpoint) (Link, error) {
	conn, err := net.Dial("tcp", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to dial %s", ep)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Batching is the pipeline's job; let frames hit the wire as-is.
		tc.SetNoDelay(true)
	}
	return &streamLink{conn: conn, scheme: ep.Scheme}, nil
}

func listenTCP(ep Endpoint) (Listener, error) {
	ln, err := net.Listen("tcp", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to listen on %s", ep)
	}
	bound := ep
	bound.Address = ln.Addr().String()
	return &streamListener{ln: ln, ep: bound, scheme: ep.Scheme}, nil
}
