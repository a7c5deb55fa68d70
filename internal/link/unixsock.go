package link

import (
	"net"

	"github.com/fossabot/zenoh/internal/zerror"
)

func dialUnix(ep Endpoint) (Link, error) {
	conn, err := net.Dial("unix", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to dial %s", ep)
	}
	return &streamLink{conn: conn, scheme: ep.Scheme}, nil
}

func listenUnix(ep Endpoint) (Listener, error) {
	ln, err := net.Listen("unix", ep.Address)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to listen on %s", ep)
	}
	return &streamListener{ln: ln, ep: ep, scheme: ep.Scheme}, nil
}
