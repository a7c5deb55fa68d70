// Package storage provides the example in-memory storage: a queryable
// subscribed to a selector, remembering the latest payload of every
// resource it sees and answering queries over them.
package storage

import (
	"sync"

	"github.com/fossabot/zenoh"
	"github.com/fossabot/zenoh/internal/logging"
)

// DefaultSelector is the resources the storage subscribes to when no
// selector is configured.
const DefaultSelector = "/demo/example/**"

type entry struct {
	payload []byte
	info    *zenoh.DataInfo
}

// Storage observes one transport: it stores every published sample
// matching the selector and replies to matching queries.
type Storage struct {
	selector  string
	prims     zenoh.Primitives
	replierID zenoh.PeerID
	log       *logging.Logger

	mu     sync.RWMutex
	stored map[string]entry
}

// New creates a storage over the given selector.
func New(selector string) *Storage {
	if selector == "" {
		selector = DefaultSelector
	}
	return &Storage{
		selector: selector,
		log:      logging.Default(),
		stored:   make(map[string]entry),
	}
}

// Attach declares the storage's subscriber and queryable through the
// given primitives, replying on behalf of replierID.
func (s *Storage) Attach(prims zenoh.Primitives, replierID zenoh.PeerID) {
	s.prims = prims
	s.replierID = replierID
	key := zenoh.ResKey{Suffix: s.selector}
	prims.DeclSubscriber(key, zenoh.SubInfo{Reliability: zenoh.Reliable, Mode: zenoh.SubModePush})
	prims.DeclQueryable(key, zenoh.QueryableStorage)
	s.log.Debug("storage attached", "selector", s.selector)
}

// Len returns the number of stored resources.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stored)
}

// HandleMessage implements zenoh.TransportPeerEventHandler.
func (s *Storage) HandleMessage(msg *zenoh.Message) error {
	switch {
	case msg.Kind == zenoh.MsgData && msg.Reply == nil:
		s.put(msg)
	case msg.Kind == zenoh.MsgQuery:
		s.query(msg)
	}
	return nil
}

func (s *Storage) put(msg *zenoh.Message) {
	name := msg.Key.Suffix
	if !Intersect(s.selector, name) {
		return
	}
	// The payload aliases the receive path's buffer; keep our own copy.
	payload := make([]byte, len(msg.Payload.Data))
	copy(payload, msg.Payload.Data)
	s.mu.Lock()
	s.stored[name] = entry{payload: payload, info: msg.Info}
	s.mu.Unlock()
	s.log.Info("stored sample", "resource", name, "bytes", len(payload))
}

func (s *Storage) query(msg *zenoh.Message) {
	if s.prims == nil {
		return
	}
	s.log.Info("handling query", "resource", msg.Key.Suffix, "predicate", msg.Predicate)
	s.mu.RLock()
	for name, e := range s.stored {
		if Intersect(msg.Key.Suffix, name) {
			s.prims.SendReplyData(msg.QID, zenoh.QueryableStorage, s.replierID,
				zenoh.ResKey{Suffix: name}, e.info, zenoh.Payload{Data: e.payload})
		}
	}
	s.mu.RUnlock()
	s.prims.SendReplyFinal(msg.QID)
}

// NewLink implements zenoh.TransportPeerEventHandler.
func (s *Storage) NewLink(zenoh.Link) {}

// DelLink implements zenoh.TransportPeerEventHandler.
func (s *Storage) DelLink(zenoh.Link) {}

// Closing implements zenoh.TransportPeerEventHandler.
func (s *Storage) Closing() {}

// Closed implements zenoh.TransportPeerEventHandler.
func (s *Storage) Closed() {}
