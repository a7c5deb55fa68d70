package zenoh

import (
	"sync"
	"time"

	"github.com/fossabot/zenoh/internal/auth"
	"github.com/fossabot/zenoh/internal/link"
	"github.com/fossabot/zenoh/internal/logging"
	"github.com/fossabot/zenoh/internal/proto"
	"github.com/fossabot/zenoh/internal/shm"
	"github.com/fossabot/zenoh/internal/zerror"
)

// ManagerConfig parameterizes a transport manager.
type ManagerConfig struct {
	// WhatAmI is this node's role: WhatAmIRouter, WhatAmIPeer or
	// WhatAmIClient. Defaults to peer.
	WhatAmI ZInt
	// PeerID identifies this node, 1 to 16 bytes. Defaults to a random
	// 16-byte id.
	PeerID PeerID
	// Lease is the silence this node promises never to exceed; it is
	// announced to peers during the handshake.
	Lease time.Duration
	// KeepAlive is the idle period after which a link emits a keep-alive.
	// It must be shorter than the lease.
	KeepAlive time.Duration
	// SNResolution is the sequence number resolution announced during
	// the handshake.
	SNResolution ZInt
	// BatchSize caps the payload bytes of one transmission unit. Capped
	// by each link's MTU.
	BatchSize uint16
	// RxBufferSize sizes each link's receive buffer pool.
	RxBufferSize int
	// BatchesPerLane bounds each priority lane's batch pool.
	BatchesPerLane int
	// Handler is notified of every admitted transport.
	Handler TransportEventHandler
	// Authenticators gate every new link. All must accept.
	Authenticators []Authenticator
	// Logger overrides the default logger.
	Logger *logging.Logger
}

func (c *ManagerConfig) withDefaults() {
	if c.WhatAmI == 0 {
		c.WhatAmI = WhatAmIPeer
	}
	if len(c.PeerID) == 0 {
		c.PeerID = proto.RandomPeerID()
	}
	if c.Lease <= 0 {
		c.Lease = 10 * time.Second
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = c.Lease / 4
	}
	if c.SNResolution == 0 {
		c.SNResolution = proto.SeqNumResolution
	}
	if c.BatchSize == 0 {
		c.BatchSize = proto.BatchSize
	}
	if c.RxBufferSize <= 0 {
		c.RxBufferSize = 2 * int(proto.BatchSize)
	}
	if c.Handler == nil {
		c.Handler = DummyHandler{}
	}
	if c.Logger == nil {
		c.Logger = logging.Default()
	}
}

type managerListener struct {
	ln   link.Listener
	done chan struct{}
}

// Manager is the process-wide registry of listeners and open transports.
type Manager struct {
	cfg ManagerConfig
	log *logging.Logger

	// shmReader resolves shared-memory payloads received on any
	// transport of this manager.
	shmReader *shm.Reader

	mu         sync.Mutex
	listeners  map[string]*managerListener
	transports map[string]*TransportUnicast
	closed     bool
	wg         sync.WaitGroup
}

// NewManager creates a transport manager.
func NewManager(cfg ManagerConfig) *Manager {
	cfg.withDefaults()
	return &Manager{
		cfg:        cfg,
		log:        cfg.Logger,
		shmReader:  shm.NewReader(),
		listeners:  make(map[string]*managerListener),
		transports: make(map[string]*TransportUnicast),
	}
}

// PeerID returns this node's peer id.
func (m *Manager) PeerID() PeerID { return m.cfg.PeerID }

// AddListener binds a listener on the endpoint and starts accepting
// connections on it. Returns the bound endpoint, with the effective
// address when the requested one carried a wildcard port.
func (m *Manager) AddListener(locator string) (Endpoint, error) {
	ep, err := link.ParseEndpoint(locator)
	if err != nil {
		return Endpoint{}, err
	}
	ln, err := link.Listen(ep)
	if err != nil {
		return Endpoint{}, err
	}
	bound := ln.Endpoint()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ln.Close()
		return Endpoint{}, zerror.New(zerror.KindOther, "manager closed")
	}
	if _, ok := m.listeners[bound.String()]; ok {
		m.mu.Unlock()
		ln.Close()
		return Endpoint{}, zerror.Newf(zerror.KindOther, "listener %s already exists", bound)
	}
	ml := &managerListener{ln: ln, done: make(chan struct{})}
	m.listeners[bound.String()] = ml
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info("listening", "endpoint", bound.String())
	go m.acceptLoop(ml)
	return bound, nil
}

// DelListener closes the listener bound to the endpoint.
func (m *Manager) DelListener(locator string) error {
	ep, err := link.ParseEndpoint(locator)
	if err != nil {
		return err
	}
	m.mu.Lock()
	ml, ok := m.listeners[ep.String()]
	if ok {
		delete(m.listeners, ep.String())
	}
	m.mu.Unlock()
	if !ok {
		return zerror.Newf(zerror.KindOther, "no listener on %s", ep)
	}
	close(ml.done)
	return ml.ln.Close()
}

// Listeners returns the bound endpoints.
func (m *Manager) Listeners() []Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Endpoint, 0, len(m.listeners))
	for _, ml := range m.listeners {
		out = append(out, ml.ln.Endpoint())
	}
	return out
}

// acceptLoop admits inbound connections of one listener, throttling on
// accept errors.
func (m *Manager) acceptLoop(ml *managerListener) {
	defer m.wg.Done()
	for {
		lk, err := ml.ln.Accept()
		if err != nil {
			select {
			case <-ml.done:
				return
			default:
			}
			m.mu.Lock()
			closed := m.closed
			m.mu.Unlock()
			if closed {
				return
			}
			m.log.Debug("accept failed", "endpoint", ml.ln.Endpoint().String(), "err", err)
			time.Sleep(link.AcceptThrottleTime)
			continue
		}
		go func() {
			if _, err := m.acceptHandshake(lk); err != nil {
				m.log.Debug("handshake failed", "remote", lk.RemoteEndpoint(), "err", err)
				lk.Close()
			}
		}()
	}
}

// OpenTransport dials the endpoint, runs the opener-side handshake and
// returns the established transport. When a transport to the same peer
// already exists the fresh link is dropped and the existing transport is
// returned.
func (m *Manager) OpenTransport(locator string) (*TransportUnicast, error) {
	ep, err := link.ParseEndpoint(locator)
	if err != nil {
		return nil, err
	}
	lk, err := link.Dial(ep)
	if err != nil {
		return nil, err
	}
	t, err := m.openHandshake(lk)
	if err != nil {
		lk.Close()
		return nil, err
	}
	return t, nil
}

// GetTransport returns the open transport to the given peer, if any.
func (m *Manager) GetTransport(pid PeerID) *TransportUnicast {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transports[pid.String()]
}

// Transports returns every open transport.
func (m *Manager) Transports() []*TransportUnicast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*TransportUnicast, 0, len(m.transports))
	for _, t := range m.transports {
		out = append(out, t)
	}
	return out
}

// registerTransport installs a freshly admitted transport. A transport to
// the same peer id is a duplicate and is refused.
func (m *Manager) registerTransport(t *TransportUnicast) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return zerror.New(zerror.KindOther, "manager closed")
	}
	if _, ok := m.transports[t.pid.String()]; ok {
		return zerror.Newf(zerror.KindOther, "transport to peer %s already exists", t.pid)
	}
	m.transports[t.pid.String()] = t
	return nil
}

// delTransport removes a transport from the registry; the transport
// itself is already torn down.
func (m *Manager) delTransport(t *TransportUnicast) {
	m.mu.Lock()
	if cur, ok := m.transports[t.pid.String()]; ok && cur == t {
		delete(m.transports, t.pid.String())
	}
	m.mu.Unlock()
}

// Close tears down every listener and transport.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	listeners := make([]*managerListener, 0, len(m.listeners))
	for _, ml := range m.listeners {
		listeners = append(listeners, ml)
	}
	m.listeners = make(map[string]*managerListener)
	transports := make([]*TransportUnicast, 0, len(m.transports))
	for _, t := range m.transports {
		transports = append(transports, t)
	}
	m.mu.Unlock()

	for _, ml := range listeners {
		close(ml.done)
		ml.ln.Close()
	}
	for _, t := range transports {
		t.Close()
	}
	m.wg.Wait()
	m.shmReader.Close()
	return nil
}

// authSessionsOpen starts the opener-side sessions of every
// authenticator.
func (m *Manager) authSessionsOpen() map[string]auth.OpenSession {
	sessions := make(map[string]auth.OpenSession, len(m.cfg.Authenticators))
	for _, a := range m.cfg.Authenticators {
		sessions[a.ID()] = a.StartOpen()
	}
	return sessions
}

// authSessionsAccept starts the listener-side sessions of every
// authenticator.
func (m *Manager) authSessionsAccept() map[string]auth.AcceptSession {
	sessions := make(map[string]auth.AcceptSession, len(m.cfg.Authenticators))
	for _, a := range m.cfg.Authenticators {
		sessions[a.ID()] = a.StartAccept()
	}
	return sessions
}
