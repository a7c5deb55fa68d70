package zenoh

import (
	"encoding/binary"
	"math/rand"
	"time"

	"github.com/fossabot/zenoh/internal/auth"
	"github.com/fossabot/zenoh/internal/link"
	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

// The handshake gating every new unicast link:
//
//	opener                          listener
//	  | Init(version, pid, snres,      |
//	  |      auth attachments)         |
//	  |------------------------------->|
//	  |          InitAck(pid, snres,   |
//	  |               auth challenges) |
//	  |<-------------------------------|
//	  | Open(lease, sn,                |
//	  |      auth responses)           |
//	  |------------------------------->|
//	  |             OpenAck(lease, sn) |
//	  |<-------------------------------|
//
// Every configured authenticator must accept; a rejection at any step is
// fatal for that pending link only.

// writeHandshakeMsg sends one message directly on the link, before the
// transmission pipeline exists.
func writeHandshakeMsg(lk link.Link, msg *proto.Message) error {
	buf := make([]byte, int(lk.MTU())+proto.FrameHeaderSize)
	payload := buf[proto.FrameHeaderSize:]
	if !lk.IsStreamed() {
		payload = buf[:lk.MTU()]
	}
	w := proto.NewWriteBuffer(payload)
	if err := proto.EncodeMessage(w, msg); err != nil {
		return err
	}
	n := w.Pos()
	if lk.IsStreamed() {
		binary.LittleEndian.PutUint16(buf[:proto.FrameHeaderSize], uint16(n))
		return lk.WriteAll(buf[:proto.FrameHeaderSize+n])
	}
	return lk.WriteAll(buf[:n])
}

// readHandshakeMsg reads one message directly from the link within the
// given deadline.
func readHandshakeMsg(lk link.Link, timeout time.Duration) (*proto.Message, error) {
	if err := lk.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, zerror.Wrap(zerror.KindIO, "unable to arm handshake deadline", err)
	}
	defer lk.SetReadDeadline(time.Time{})

	var body []byte
	if lk.IsStreamed() {
		var hdr [proto.FrameHeaderSize]byte
		if err := lk.ReadExact(hdr[:]); err != nil {
			return nil, err
		}
		body = make([]byte, binary.LittleEndian.Uint16(hdr[:]))
		if err := lk.ReadExact(body); err != nil {
			return nil, err
		}
	} else {
		body = make([]byte, lk.MTU())
		n, err := lk.Read(body)
		if err != nil {
			return nil, err
		}
		body = body[:n]
	}
	return proto.DecodeMessage(proto.NewReadBuffer(body))
}

// openHandshake runs the opener side and admits the transport.
func (m *Manager) openHandshake(lk link.Link) (*TransportUnicast, error) {
	sessions := m.authSessionsOpen()

	initProps := make(proto.Properties)
	for id, s := range sessions {
		att, err := s.InitAttachment()
		if err != nil {
			return nil, err
		}
		if att != nil {
			initProps[id] = att
		}
	}
	if err := writeHandshakeMsg(lk, proto.MakeInit(m.cfg.WhatAmI, m.cfg.PeerID, m.cfg.SNResolution, initProps)); err != nil {
		return nil, err
	}

	ack, err := readHandshakeMsg(lk, m.cfg.Lease)
	if err != nil {
		return nil, err
	}
	switch ack.Kind {
	case proto.MsgInitAck:
	case proto.MsgClose:
		return nil, zerror.Newf(zerror.KindAuthentication, "handshake rejected by peer (reason %d)", ack.Reason)
	default:
		return nil, zerror.Newf(zerror.KindIO, "unexpected %s during handshake", ack.Kind)
	}
	if ack.Version != proto.Version {
		return nil, zerror.Newf(zerror.KindIO, "unsupported protocol version %#x", ack.Version)
	}

	attrs := &auth.Attributes{}
	openProps := make(proto.Properties)
	for id, s := range sessions {
		challenge, present := ack.Properties[id]
		resp, at, err := s.Respond(challenge, present)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			openProps[id] = resp
		}
		attrs.Merge(at)
	}

	initialSN := ZInt(rand.Int63()) % m.cfg.SNResolution
	leaseMillis := ZInt(m.cfg.Lease.Milliseconds())
	if err := writeHandshakeMsg(lk, proto.MakeOpen(leaseMillis, initialSN, openProps)); err != nil {
		return nil, err
	}

	oack, err := readHandshakeMsg(lk, m.cfg.Lease)
	if err != nil {
		return nil, err
	}
	switch oack.Kind {
	case proto.MsgOpenAck:
	case proto.MsgClose:
		return nil, zerror.Newf(zerror.KindAuthentication, "handshake rejected by peer (reason %d)", oack.Reason)
	default:
		return nil, zerror.Newf(zerror.KindIO, "unexpected %s during handshake", oack.Kind)
	}

	peerLease := time.Duration(oack.Lease) * time.Millisecond
	return m.admitTransport(lk, ack.PeerID, ack.WhatAmI, attrs.SHM, peerLease, false)
}

// acceptHandshake runs the listener side and admits the transport.
func (m *Manager) acceptHandshake(lk link.Link) (*TransportUnicast, error) {
	init, err := readHandshakeMsg(lk, m.cfg.Lease)
	if err != nil {
		return nil, err
	}
	if init.Kind != proto.MsgInit {
		return nil, zerror.Newf(zerror.KindIO, "unexpected %s during handshake", init.Kind)
	}
	if init.Version != proto.Version {
		writeHandshakeMsg(lk, proto.MakeClose(m.cfg.PeerID, proto.CloseUnsupported, false))
		return nil, zerror.Newf(zerror.KindIO, "unsupported protocol version %#x", init.Version)
	}
	if len(init.PeerID) == 0 || len(init.PeerID) > proto.PeerIDMaxSize {
		writeHandshakeMsg(lk, proto.MakeClose(m.cfg.PeerID, proto.CloseInvalid, false))
		return nil, zerror.Newf(zerror.KindIO, "invalid peer id length %d", len(init.PeerID))
	}

	sessions := m.authSessionsAccept()
	challenges := make(proto.Properties)
	for id, s := range sessions {
		att, present := init.Properties[id]
		challenge, err := s.Challenge(att, present)
		if err != nil {
			writeHandshakeMsg(lk, proto.MakeClose(m.cfg.PeerID, proto.CloseInvalid, false))
			return nil, err
		}
		if challenge != nil {
			challenges[id] = challenge
		}
	}
	if err := writeHandshakeMsg(lk, proto.MakeInitAck(m.cfg.WhatAmI, m.cfg.PeerID, m.cfg.SNResolution, challenges)); err != nil {
		return nil, err
	}

	open, err := readHandshakeMsg(lk, m.cfg.Lease)
	if err != nil {
		return nil, err
	}
	if open.Kind != proto.MsgOpen {
		return nil, zerror.Newf(zerror.KindIO, "unexpected %s during handshake", open.Kind)
	}

	attrs := &auth.Attributes{}
	for id, s := range sessions {
		resp, present := open.Properties[id]
		at, err := s.Verify(resp, present)
		if err != nil {
			writeHandshakeMsg(lk, proto.MakeClose(m.cfg.PeerID, proto.CloseInvalid, false))
			return nil, err
		}
		attrs.Merge(at)
	}

	peerLease := time.Duration(open.Lease) * time.Millisecond
	t, err := m.admitTransport(lk, init.PeerID, init.WhatAmI, attrs.SHM, peerLease, true)
	if err != nil {
		writeHandshakeMsg(lk, proto.MakeClose(m.cfg.PeerID, proto.CloseMaxLinks, false))
		return nil, err
	}

	initialSN := ZInt(rand.Int63()) % m.cfg.SNResolution
	leaseMillis := ZInt(m.cfg.Lease.Milliseconds())
	if err := writeHandshakeMsg(lk, proto.MakeOpenAck(leaseMillis, initialSN)); err != nil {
		t.shutdown(false)
		return nil, err
	}
	t.startLinks()
	return t, nil
}

// admitTransport installs the transport for a freshly authenticated
// link. On the opener side (reject=false) an existing transport to the
// same peer absorbs the new link attempt; on the listener side a
// duplicate peer id is refused.
func (m *Manager) admitTransport(lk link.Link, pid PeerID, whatami ZInt, isSHM bool, peerLease time.Duration, reject bool) (*TransportUnicast, error) {
	if existing := m.GetTransport(pid); existing != nil {
		if reject {
			return nil, zerror.Newf(zerror.KindOther, "transport to peer %s already exists", pid)
		}
		lk.Close()
		return existing, nil
	}

	t := newTransportUnicast(m, pid, whatami, isSHM, peerLease)
	if err := m.registerTransport(t); err != nil {
		return nil, err
	}
	// The link is attached before the handler callback so that anything
	// the handler sends right away is queued on the pipeline until the
	// tasks start.
	t.addLink(lk)
	handler, err := m.cfg.Handler.NewUnicast(TransportPeer{PeerID: pid, WhatAmI: whatami, IsSHM: isSHM}, t)
	if err != nil {
		m.delTransport(t)
		return nil, err
	}
	t.setHandler(handler)
	if !reject {
		// The opener starts its tasks right away; the listener defers to
		// after the OpenAck hit the wire.
		t.startLinks()
	}
	m.log.Info("transport established",
		"peer", pid.String(), "remote", lk.RemoteEndpoint(), "shm", isSHM)
	return t, nil
}
