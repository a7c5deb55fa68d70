package zenoh

import (
	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/internal/proto"
)

// Mux adapts primitive calls into wire messages handed to a transport.
// It is stateless; transport errors are swallowed here and observed
// through link health instead.
type Mux struct {
	handler *TransportUnicast
}

// NewMux attaches a Mux to a transport.
func NewMux(handler *TransportUnicast) *Mux {
	return &Mux{handler: handler}
}

func (m *Mux) handle(msg *proto.Message) {
	if err := m.handler.HandleMessage(msg); err != nil {
		logging.Trace("mux send failed", "peer", m.handler.PeerID().String(), "err", err)
	}
}

// declare wraps a single declaration into a one-element bundle. Batching
// across primitives is the pipeline's responsibility, not the Mux's.
func (m *Mux) declare(d proto.Declaration) {
	m.handle(proto.MakeDeclare([]proto.Declaration{d}))
}

// DeclResource implements Primitives.
func (m *Mux) DeclResource(rid ZInt, key ResKey) {
	m.declare(proto.Declaration{Kind: proto.DeclResource, RID: rid, Key: key})
}

// ForgetResource implements Primitives.
func (m *Mux) ForgetResource(rid ZInt) {
	m.declare(proto.Declaration{Kind: proto.DeclForgetResource, RID: rid})
}

// DeclPublisher implements Primitives.
func (m *Mux) DeclPublisher(key ResKey) {
	m.declare(proto.Declaration{Kind: proto.DeclPublisher, Key: key})
}

// ForgetPublisher implements Primitives.
func (m *Mux) ForgetPublisher(key ResKey) {
	m.declare(proto.Declaration{Kind: proto.DeclForgetPublisher, Key: key})
}

// DeclSubscriber implements Primitives.
func (m *Mux) DeclSubscriber(key ResKey, info SubInfo) {
	m.declare(proto.Declaration{Kind: proto.DeclSubscriber, Key: key, Sub: info})
}

// ForgetSubscriber implements Primitives.
func (m *Mux) ForgetSubscriber(key ResKey) {
	m.declare(proto.Declaration{Kind: proto.DeclForgetSubscriber, Key: key})
}

// DeclQueryable implements Primitives.
func (m *Mux) DeclQueryable(key ResKey, kind ZInt) {
	m.declare(proto.Declaration{Kind: proto.DeclQueryable, Key: key, QKind: kind})
}

// ForgetQueryable implements Primitives.
func (m *Mux) ForgetQueryable(key ResKey) {
	m.declare(proto.Declaration{Kind: proto.DeclForgetQueryable, Key: key})
}

// SendData implements Primitives.
func (m *Mux) SendData(key ResKey, payload Payload, ch Channel, cc CongestionControl, info *DataInfo) {
	m.handle(proto.MakeData(key, payload, ch, cc, info, nil))
}

// SendQuery implements Primitives. A target equal to the default is
// elided on the wire.
func (m *Mux) SendQuery(key ResKey, predicate string, qid ZInt, target ZInt, consolidation ZInt) {
	m.handle(proto.MakeQuery(key, predicate, qid, target, consolidation))
}

// SendReplyData implements Primitives.
func (m *Mux) SendReplyData(qid ZInt, replierKind ZInt, replierID PeerID, key ResKey, info *DataInfo, payload Payload) {
	reply := &proto.ReplyContext{
		QID:     qid,
		Replier: &proto.ReplierInfo{Kind: replierKind, ID: replierID},
	}
	m.handle(proto.MakeData(key, payload, proto.ReplyChannel, proto.ReplyCongestion, info, reply))
}

// SendReplyFinal implements Primitives. The terminator is a unit message
// whose reply context carries no replier info.
func (m *Mux) SendReplyFinal(qid ZInt) {
	reply := &proto.ReplyContext{QID: qid}
	m.handle(proto.MakeUnit(proto.ReplyChannel, proto.ReplyCongestion, reply))
}

// SendPull implements Primitives.
func (m *Mux) SendPull(isFinal bool, key ResKey, pullID ZInt, maxSamples *ZInt) {
	m.handle(proto.MakePull(isFinal, key, pullID, maxSamples))
}

// SendClose implements Primitives. It flushes pending traffic and tears
// the transport down cleanly.
func (m *Mux) SendClose() {
	if err := m.handler.Close(); err != nil {
		logging.Trace("mux close failed", "peer", m.handler.PeerID().String(), "err", err)
	}
}
