package zenoh

// TransportPeer describes the remote end of an admitted transport.
type TransportPeer struct {
	PeerID  PeerID
	WhatAmI ZInt
	IsSHM   bool
}

// TransportEventHandler is notified of every transport admitted by a
// manager. The returned peer handler observes that transport's life.
type TransportEventHandler interface {
	NewUnicast(peer TransportPeer, transport *TransportUnicast) (TransportPeerEventHandler, error)
}

// TransportPeerEventHandler observes one established transport.
// HandleMessage receives every data-plane message; the lifecycle
// callbacks report link churn and teardown.
type TransportPeerEventHandler interface {
	HandleMessage(msg *Message) error
	NewLink(l Link)
	DelLink(l Link)
	Closing()
	Closed()
}

// DummyHandler accepts every transport and discards every event. Useful
// as a default and in tests.
type DummyHandler struct{}

// NewUnicast implements TransportEventHandler.
func (DummyHandler) NewUnicast(TransportPeer, *TransportUnicast) (TransportPeerEventHandler, error) {
	return DummyPeerHandler{}, nil
}

// DummyPeerHandler discards every event of one transport.
type DummyPeerHandler struct{}

func (DummyPeerHandler) HandleMessage(*Message) error { return nil }
func (DummyPeerHandler) NewLink(Link)                 {}
func (DummyPeerHandler) DelLink(Link)                 {}
func (DummyPeerHandler) Closing()                     {}
func (DummyPeerHandler) Closed()                      {}
