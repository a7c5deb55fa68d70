package zenoh

import (
	"sync"
	"time"

	"github.com/fossabot/zenoh/internal/link"
	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/internal/pipeline"
	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/zerror"
)

// TransportUnicast is one established transport to a peer, multiplexing
// any number of links. Messages handed to it are scheduled on the first
// link's transmission pipeline.
type TransportUnicast struct {
	manager   *Manager
	pid       PeerID
	whatami   ZInt
	isSHM     bool
	peerLease time.Duration
	stats     *TransportStats
	log       *logging.Logger

	mu      sync.Mutex
	links   []*transportLink
	handler TransportPeerEventHandler
	closed  bool
}

func newTransportUnicast(m *Manager, pid PeerID, whatami ZInt, isSHM bool, peerLease time.Duration) *TransportUnicast {
	return &TransportUnicast{
		manager:   m,
		pid:       pid,
		whatami:   whatami,
		isSHM:     isSHM,
		peerLease: peerLease,
		stats:     &TransportStats{},
		log:       m.log,
	}
}

// PeerID returns the remote peer's id.
func (t *TransportUnicast) PeerID() PeerID { return t.pid }

// WhatAmI returns the remote peer's role.
func (t *TransportUnicast) WhatAmI() ZInt { return t.whatami }

// IsSHM reports whether the handshake proved shared-memory connectivity,
// making descriptor payloads legal in either direction.
func (t *TransportUnicast) IsSHM() bool { return t.isSHM }

// Stats returns the transport's traffic counters.
func (t *TransportUnicast) Stats() *TransportStats { return t.stats }

// Links returns the links currently multiplexed by the transport.
func (t *TransportUnicast) Links() []Link {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Link, 0, len(t.links))
	for _, tl := range t.links {
		out = append(out, tl.inner)
	}
	return out
}

func (t *TransportUnicast) setHandler(h TransportPeerEventHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *TransportUnicast) peerHandler() TransportPeerEventHandler {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.handler
}

// addLink attaches a link to the transport without starting its tasks.
func (t *TransportUnicast) addLink(lk link.Link) {
	cfg := &t.manager.cfg
	batchSize := cfg.BatchSize
	if mtu := lk.MTU(); batchSize > mtu {
		batchSize = mtu
	}
	tl := &transportLink{
		transport: t,
		inner:     lk,
		pipeline: pipeline.New(pipeline.Config{
			BatchSize:      batchSize,
			Streamed:       lk.IsStreamed(),
			BatchesPerLane: cfg.BatchesPerLane,
		}),
		signalRx: make(chan struct{}),
		doneTx:   make(chan struct{}),
		doneRx:   make(chan struct{}),
	}
	t.mu.Lock()
	t.links = append(t.links, tl)
	t.mu.Unlock()
}

// startLinks starts the TX and RX tasks of every link not running yet
// and notifies the peer handler.
func (t *TransportUnicast) startLinks() {
	t.mu.Lock()
	pending := make([]*transportLink, 0, len(t.links))
	for _, tl := range t.links {
		if !tl.started {
			tl.started = true
			pending = append(pending, tl)
		}
	}
	handler := t.handler
	t.mu.Unlock()

	cfg := &t.manager.cfg
	for _, tl := range pending {
		tl.startTx(cfg.KeepAlive)
		tl.startRx(t.peerLease, cfg.RxBufferSize)
		if handler != nil {
			handler.NewLink(tl.inner)
		}
	}
}

// HandleMessage schedules one message on the transport. Transport-plane
// messages take the always-admit path; application messages are subject
// to their congestion control.
func (t *TransportUnicast) HandleMessage(msg *Message) error {
	t.mu.Lock()
	if t.closed || len(t.links) == 0 {
		t.mu.Unlock()
		return zerror.Newf(zerror.KindIO, "transport to peer %s is closed", t.pid)
	}
	tl := t.links[0]
	t.mu.Unlock()

	if msg.IsTransport() {
		return tl.pipeline.PushTransport(msg, msg.Channel.Priority)
	}
	return tl.pipeline.Push(msg, msg.Congestion)
}

// receiveMessage dispatches one decoded message. Called from the RX task
// of the link that read it.
func (t *TransportUnicast) receiveMessage(msg *proto.Message, from link.Link) error {
	switch msg.Kind {
	case proto.MsgKeepAlive:
		t.stats.RxKeepAlives.Add(1)
		return nil
	case proto.MsgClose:
		if msg.LinkOnly {
			go t.DelLink(from)
		} else {
			go t.shutdown(true)
		}
		return nil
	case proto.MsgInit, proto.MsgInitAck, proto.MsgOpen, proto.MsgOpenAck:
		return zerror.Newf(zerror.KindIO, "unexpected %s on established transport", msg.Kind)
	}

	t.stats.RxMsgs.Add(1)
	handler := t.peerHandler()
	if handler == nil {
		return nil
	}

	// Materialize a shared-memory payload before delivery. The sender
	// pre-incremented the refcount on our behalf; it is released once the
	// handler returns, so the handler must copy what it retains.
	if msg.Payload.IsSHM() {
		buf, err := t.manager.shmReader.Read(*msg.Payload.SHM)
		if err != nil {
			t.log.Warn("unreadable shm payload",
				"peer", t.pid.String(), "segment", msg.Payload.SHM.SegmentID, "err", err)
			return nil
		}
		msg.Payload.Data = buf.AsSlice()
		defer buf.Drop()
	}
	return handler.HandleMessage(msg)
}

// DelLink detaches and closes one link. When the last link goes, the
// whole transport is torn down. Safe to call from a link's own task
// through a detached goroutine.
func (t *TransportUnicast) DelLink(lk Link) error {
	t.mu.Lock()
	var tl *transportLink
	for i, cand := range t.links {
		if cand.inner == lk {
			tl = cand
			t.links = append(t.links[:i], t.links[i+1:]...)
			break
		}
	}
	remaining := len(t.links)
	handler := t.handler
	t.mu.Unlock()
	if tl == nil {
		return zerror.Newf(zerror.KindOther, "no such link on transport to peer %s", t.pid)
	}

	tl.close()
	if handler != nil {
		handler.DelLink(lk)
	}
	if remaining == 0 {
		t.shutdown(false)
	}
	return nil
}

// Close flushes pending traffic, announces the close to the peer and
// tears the transport down.
func (t *TransportUnicast) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	// Announce the close; it rides the control lane and is flushed by the
	// TX task's final drain.
	_ = t.HandleMessage(proto.MakeClose(t.manager.cfg.PeerID, proto.CloseGeneric, false))
	t.shutdown(false)
	return nil
}

// shutdown tears down every link and notifies the handler. remote is set
// when the peer initiated the close.
func (t *TransportUnicast) shutdown(remote bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	links := t.links
	t.links = nil
	handler := t.handler
	t.mu.Unlock()

	t.log.Debug("closing transport", "peer", t.pid.String(), "remote", remote)
	if handler != nil {
		handler.Closing()
	}
	for _, tl := range links {
		tl.close()
	}
	t.manager.delTransport(t)
	if handler != nil {
		handler.Closed()
	}
}
