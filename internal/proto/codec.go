package proto

import (
	"github.com/fossabot/zenoh/internal/shm"
	"github.com/fossabot/zenoh/internal/zerror"
)

// Per-kind flag bits, stored in the byte following the message kind.
const (
	flagProps    = 0x01 // Init, InitAck, Open: properties present
	flagPeerID   = 0x01 // Close, KeepAlive: peer id present
	flagLinkOnly = 0x02 // Close: close this link only
	flagInfo     = 0x01 // Data: data info present
	flagReply    = 0x02 // Data, Unit: reply context present
	flagSHM      = 0x04 // Data: payload is a shared-memory descriptor
	flagDrop     = 0x08 // Data, Unit: droppable congestion control
	flagTarget   = 0x01 // Query: non-default target present
	flagFinal    = 0x01 // Pull: final pull
	flagMax      = 0x02 // Pull: max samples present
	flagReplier  = 0x01 // reply context: replier info present
)

// EncodeMessage serializes one message into w. On a buffer overflow the
// write position is rolled back so the message can be retried on a fresh
// batch.
func EncodeMessage(w *WriteBuffer, m *Message) error {
	start := w.Pos()
	if err := encodeMessage(w, m); err != nil {
		w.SetPos(start)
		return err
	}
	return nil
}

func encodeMessage(w *WriteBuffer, m *Message) error {
	if err := w.WriteByte(byte(m.Kind)); err != nil {
		return err
	}
	switch m.Kind {
	case MsgInit, MsgInitAck:
		var flags byte
		if len(m.Properties) > 0 {
			flags |= flagProps
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := w.WriteByte(m.Version); err != nil {
			return err
		}
		if err := w.WriteZInt(m.WhatAmI); err != nil {
			return err
		}
		if err := w.WriteBytes(m.PeerID); err != nil {
			return err
		}
		if err := w.WriteZInt(m.SNResolution); err != nil {
			return err
		}
		if flags&flagProps != 0 {
			return encodeProperties(w, m.Properties)
		}
		return nil

	case MsgOpen:
		var flags byte
		if len(m.Properties) > 0 {
			flags |= flagProps
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := w.WriteZInt(m.Lease); err != nil {
			return err
		}
		if err := w.WriteZInt(m.InitialSN); err != nil {
			return err
		}
		if flags&flagProps != 0 {
			return encodeProperties(w, m.Properties)
		}
		return nil

	case MsgOpenAck:
		if err := w.WriteByte(0); err != nil {
			return err
		}
		if err := w.WriteZInt(m.Lease); err != nil {
			return err
		}
		return w.WriteZInt(m.InitialSN)

	case MsgClose:
		var flags byte
		if len(m.PeerID) > 0 {
			flags |= flagPeerID
		}
		if m.LinkOnly {
			flags |= flagLinkOnly
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if flags&flagPeerID != 0 {
			if err := w.WriteBytes(m.PeerID); err != nil {
				return err
			}
		}
		return w.WriteByte(m.Reason)

	case MsgKeepAlive:
		var flags byte
		if len(m.PeerID) > 0 {
			flags |= flagPeerID
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if flags&flagPeerID != 0 {
			return w.WriteBytes(m.PeerID)
		}
		return nil

	case MsgDeclare:
		if err := w.WriteByte(0); err != nil {
			return err
		}
		if err := w.WriteZInt(ZInt(len(m.Declarations))); err != nil {
			return err
		}
		for i := range m.Declarations {
			if err := encodeDeclaration(w, &m.Declarations[i]); err != nil {
				return err
			}
		}
		return nil

	case MsgData:
		var flags byte
		if m.Info != nil {
			flags |= flagInfo
		}
		if m.Reply != nil {
			flags |= flagReply
		}
		if m.Payload.IsSHM() {
			flags |= flagSHM
		}
		if m.Congestion == CongestionDrop {
			flags |= flagDrop
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := encodeChannel(w, m.Channel); err != nil {
			return err
		}
		if err := encodeResKey(w, m.Key); err != nil {
			return err
		}
		if m.Info != nil {
			if err := w.WriteZInt(m.Info.Kind); err != nil {
				return err
			}
			if err := w.WriteZInt(m.Info.Encoding); err != nil {
				return err
			}
		}
		if m.Reply != nil {
			if err := encodeReplyContext(w, m.Reply); err != nil {
				return err
			}
		}
		if m.Payload.IsSHM() {
			return encodeSHMInfo(w, m.Payload.SHM)
		}
		return w.WriteBytes(m.Payload.Data)

	case MsgUnit:
		var flags byte
		if m.Reply != nil {
			flags |= flagReply
		}
		if m.Congestion == CongestionDrop {
			flags |= flagDrop
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := encodeChannel(w, m.Channel); err != nil {
			return err
		}
		if m.Reply != nil {
			return encodeReplyContext(w, m.Reply)
		}
		return nil

	case MsgQuery:
		var flags byte
		if m.Target != TargetDefault {
			flags |= flagTarget
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := encodeResKey(w, m.Key); err != nil {
			return err
		}
		if err := w.WriteString(m.Predicate); err != nil {
			return err
		}
		if err := w.WriteZInt(m.QID); err != nil {
			return err
		}
		if flags&flagTarget != 0 {
			if err := w.WriteZInt(m.Target); err != nil {
				return err
			}
		}
		return w.WriteZInt(m.Consolidation)

	case MsgPull:
		var flags byte
		if m.IsFinal {
			flags |= flagFinal
		}
		if m.MaxSamples != nil {
			flags |= flagMax
		}
		if err := w.WriteByte(flags); err != nil {
			return err
		}
		if err := encodeResKey(w, m.Key); err != nil {
			return err
		}
		if err := w.WriteZInt(m.PullID); err != nil {
			return err
		}
		if flags&flagMax != 0 {
			return w.WriteZInt(*m.MaxSamples)
		}
		return nil
	}
	return zerror.Newf(zerror.KindOther, "unknown message kind %d", m.Kind)
}

// DecodeMessage deserializes one message from r. Any malformed input is
// an I/O error, fatal for the link that produced it.
func DecodeMessage(r *ReadBuffer) (*Message, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	m := &Message{Kind: MsgKind(kind)}
	switch m.Kind {
	case MsgInit, MsgInitAck:
		if m.Version, err = r.ReadByte(); err != nil {
			return nil, err
		}
		if m.WhatAmI, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		pid, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		m.PeerID = PeerID(pid)
		if m.SNResolution, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if flags&flagProps != 0 {
			if m.Properties, err = decodeProperties(r); err != nil {
				return nil, err
			}
		}
		return m, nil

	case MsgOpen:
		if m.Lease, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if m.InitialSN, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if flags&flagProps != 0 {
			if m.Properties, err = decodeProperties(r); err != nil {
				return nil, err
			}
		}
		return m, nil

	case MsgOpenAck:
		if m.Lease, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if m.InitialSN, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		return m, nil

	case MsgClose:
		if flags&flagPeerID != 0 {
			pid, err := r.ReadBytes()
			if err != nil {
				return nil, err
			}
			m.PeerID = PeerID(pid)
		}
		if m.Reason, err = r.ReadByte(); err != nil {
			return nil, err
		}
		m.LinkOnly = flags&flagLinkOnly != 0
		return m, nil

	case MsgKeepAlive:
		if flags&flagPeerID != 0 {
			pid, err := r.ReadBytes()
			if err != nil {
				return nil, err
			}
			m.PeerID = PeerID(pid)
		}
		return m, nil

	case MsgDeclare:
		n, err := r.ReadZInt()
		if err != nil {
			return nil, err
		}
		m.Declarations = make([]Declaration, 0, n)
		for i := ZInt(0); i < n; i++ {
			d, err := decodeDeclaration(r)
			if err != nil {
				return nil, err
			}
			m.Declarations = append(m.Declarations, d)
		}
		return m, nil

	case MsgData:
		if m.Channel, err = decodeChannel(r); err != nil {
			return nil, err
		}
		if m.Key, err = decodeResKey(r); err != nil {
			return nil, err
		}
		if flags&flagInfo != 0 {
			info := &DataInfo{}
			if info.Kind, err = r.ReadZInt(); err != nil {
				return nil, err
			}
			if info.Encoding, err = r.ReadZInt(); err != nil {
				return nil, err
			}
			m.Info = info
		}
		if flags&flagReply != 0 {
			if m.Reply, err = decodeReplyContext(r); err != nil {
				return nil, err
			}
		}
		if flags&flagDrop != 0 {
			m.Congestion = CongestionDrop
		}
		if flags&flagSHM != 0 {
			info, err := decodeSHMInfo(r)
			if err != nil {
				return nil, err
			}
			m.Payload.SHM = info
		} else {
			if m.Payload.Data, err = r.ReadBytes(); err != nil {
				return nil, err
			}
		}
		return m, nil

	case MsgUnit:
		if m.Channel, err = decodeChannel(r); err != nil {
			return nil, err
		}
		if flags&flagReply != 0 {
			if m.Reply, err = decodeReplyContext(r); err != nil {
				return nil, err
			}
		}
		if flags&flagDrop != 0 {
			m.Congestion = CongestionDrop
		}
		return m, nil

	case MsgQuery:
		if m.Key, err = decodeResKey(r); err != nil {
			return nil, err
		}
		if m.Predicate, err = r.ReadString(); err != nil {
			return nil, err
		}
		if m.QID, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if flags&flagTarget != 0 {
			if m.Target, err = r.ReadZInt(); err != nil {
				return nil, err
			}
		}
		if m.Consolidation, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		m.Channel = Channel{Priority: PriorityData, Reliability: Reliable}
		return m, nil

	case MsgPull:
		if m.Key, err = decodeResKey(r); err != nil {
			return nil, err
		}
		if m.PullID, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		if flags&flagMax != 0 {
			max, err := r.ReadZInt()
			if err != nil {
				return nil, err
			}
			m.MaxSamples = &max
		}
		m.IsFinal = flags&flagFinal != 0
		return m, nil
	}
	return nil, zerror.Newf(zerror.KindIO, "decoding error: unknown message kind %d", kind)
}

func encodeChannel(w *WriteBuffer, ch Channel) error {
	return w.WriteByte(byte(ch.Priority)<<1 | byte(ch.Reliability))
}

func decodeChannel(r *ReadBuffer) (Channel, error) {
	b, err := r.ReadByte()
	if err != nil {
		return Channel{}, err
	}
	ch := Channel{Priority: Priority(b >> 1), Reliability: Reliability(b & 0x01)}
	if ch.Priority >= NumPriorities {
		return Channel{}, zerror.Newf(zerror.KindIO, "decoding error: invalid priority %d", ch.Priority)
	}
	return ch, nil
}

func encodeResKey(w *WriteBuffer, k ResKey) error {
	if err := w.WriteZInt(k.RID); err != nil {
		return err
	}
	return w.WriteString(k.Suffix)
}

func decodeResKey(r *ReadBuffer) (ResKey, error) {
	var k ResKey
	var err error
	if k.RID, err = r.ReadZInt(); err != nil {
		return k, err
	}
	if k.Suffix, err = r.ReadString(); err != nil {
		return k, err
	}
	return k, nil
}

func encodeReplyContext(w *WriteBuffer, rc *ReplyContext) error {
	var flags byte
	if rc.Replier != nil {
		flags |= flagReplier
	}
	if err := w.WriteByte(flags); err != nil {
		return err
	}
	if err := w.WriteZInt(rc.QID); err != nil {
		return err
	}
	if rc.Replier != nil {
		if err := w.WriteZInt(rc.Replier.Kind); err != nil {
			return err
		}
		return w.WriteBytes(rc.Replier.ID)
	}
	return nil
}

func decodeReplyContext(r *ReadBuffer) (*ReplyContext, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	rc := &ReplyContext{}
	if rc.QID, err = r.ReadZInt(); err != nil {
		return nil, err
	}
	if flags&flagReplier != 0 {
		replier := &ReplierInfo{}
		if replier.Kind, err = r.ReadZInt(); err != nil {
			return nil, err
		}
		id, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		replier.ID = PeerID(id)
		rc.Replier = replier
	}
	return rc, nil
}

func encodeDeclaration(w *WriteBuffer, d *Declaration) error {
	if err := w.WriteByte(byte(d.Kind)); err != nil {
		return err
	}
	switch d.Kind {
	case DeclResource:
		if err := w.WriteZInt(d.RID); err != nil {
			return err
		}
		return encodeResKey(w, d.Key)
	case DeclForgetResource:
		return w.WriteZInt(d.RID)
	case DeclSubscriber:
		if err := encodeResKey(w, d.Key); err != nil {
			return err
		}
		return w.WriteByte(byte(d.Sub.Reliability)<<1 | byte(d.Sub.Mode))
	case DeclQueryable:
		if err := encodeResKey(w, d.Key); err != nil {
			return err
		}
		return w.WriteZInt(d.QKind)
	case DeclPublisher, DeclForgetPublisher, DeclForgetSubscriber, DeclForgetQueryable:
		return encodeResKey(w, d.Key)
	}
	return zerror.Newf(zerror.KindOther, "unknown declaration kind %d", d.Kind)
}

func decodeDeclaration(r *ReadBuffer) (Declaration, error) {
	var d Declaration
	kind, err := r.ReadByte()
	if err != nil {
		return d, err
	}
	d.Kind = DeclKind(kind)
	switch d.Kind {
	case DeclResource:
		if d.RID, err = r.ReadZInt(); err != nil {
			return d, err
		}
		d.Key, err = decodeResKey(r)
		return d, err
	case DeclForgetResource:
		d.RID, err = r.ReadZInt()
		return d, err
	case DeclSubscriber:
		if d.Key, err = decodeResKey(r); err != nil {
			return d, err
		}
		b, err := r.ReadByte()
		if err != nil {
			return d, err
		}
		d.Sub = SubInfo{Reliability: Reliability(b >> 1), Mode: SubMode(b & 0x01)}
		return d, nil
	case DeclQueryable:
		if d.Key, err = decodeResKey(r); err != nil {
			return d, err
		}
		d.QKind, err = r.ReadZInt()
		return d, err
	case DeclPublisher, DeclForgetPublisher, DeclForgetSubscriber, DeclForgetQueryable:
		d.Key, err = decodeResKey(r)
		return d, err
	}
	return d, zerror.Newf(zerror.KindIO, "decoding error: unknown declaration kind %d", kind)
}

func encodeProperties(w *WriteBuffer, props Properties) error {
	if err := w.WriteZInt(ZInt(len(props))); err != nil {
		return err
	}
	for k, v := range props {
		if err := w.WriteString(k); err != nil {
			return err
		}
		if err := w.WriteBytes(v); err != nil {
			return err
		}
	}
	return nil
}

func decodeProperties(r *ReadBuffer) (Properties, error) {
	n, err := r.ReadZInt()
	if err != nil {
		return nil, err
	}
	props := make(Properties, n)
	for i := ZInt(0); i < n; i++ {
		k, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		props[k] = v
	}
	return props, nil
}

func encodeSHMInfo(w *WriteBuffer, info *shm.BufferInfo) error {
	if err := w.WriteString(info.SegmentID); err != nil {
		return err
	}
	if err := w.WriteZInt(ZInt(info.Offset)); err != nil {
		return err
	}
	if err := w.WriteZInt(ZInt(info.Length)); err != nil {
		return err
	}
	return w.WriteByte(info.Kind)
}

func decodeSHMInfo(r *ReadBuffer) (*shm.BufferInfo, error) {
	info := &shm.BufferInfo{}
	var err error
	if info.SegmentID, err = r.ReadString(); err != nil {
		return nil, err
	}
	off, err := r.ReadZInt()
	if err != nil {
		return nil, err
	}
	length, err := r.ReadZInt()
	if err != nil {
		return nil, err
	}
	info.Offset = int(off)
	info.Length = int(length)
	if info.Kind, err = r.ReadByte(); err != nil {
		return nil, err
	}
	return info, nil
}
