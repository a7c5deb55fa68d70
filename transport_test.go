package zenoh

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossabot/zenoh/internal/proto"
)

// capturePeer collects every data-plane message of one transport.
type capturePeer struct {
	msgs chan *Message
}

func (p *capturePeer) HandleMessage(msg *Message) error {
	// The payload aliases the rx buffer; copy before handing it over.
	if len(msg.Payload.Data) > 0 {
		data := make([]byte, len(msg.Payload.Data))
		copy(data, msg.Payload.Data)
		msg.Payload.Data = data
	}
	select {
	case p.msgs <- msg:
	default:
	}
	return nil
}
func (p *capturePeer) NewLink(Link) {}
func (p *capturePeer) DelLink(Link) {}
func (p *capturePeer) Closing()     {}
func (p *capturePeer) Closed()      {}

// captureHandler hands every admitted transport a shared capture channel.
type captureHandler struct {
	msgs chan *Message
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{msgs: make(chan *Message, 64)}
}

func (h *captureHandler) NewUnicast(TransportPeer, *TransportUnicast) (TransportPeerEventHandler, error) {
	return &capturePeer{msgs: h.msgs}, nil
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestUserPasswordScenario(t *testing.T) {
	const endpoint = "tcp/127.0.0.1:11447"

	routerAuth := NewUserPasswordAuthenticator(map[string]string{
		"user01": "password01",
		"user03": "password03",
	}, "", "")
	router := NewManager(ManagerConfig{
		WhatAmI:        WhatAmIRouter,
		Authenticators: []Authenticator{routerAuth},
	})
	defer router.Close()
	_, err := router.AddListener(endpoint)
	require.NoError(t, err)

	newClient := func(pid PeerID, user, password string) *Manager {
		return NewManager(ManagerConfig{
			WhatAmI: WhatAmIClient,
			PeerID:  pid,
			Authenticators: []Authenticator{
				NewUserPasswordAuthenticator(nil, user, password),
			},
		})
	}

	pidA := RandomPeerID()

	// Valid credentials are admitted.
	clientA := newClient(pidA, "user01", "password01")
	tA, err := clientA.OpenTransport(endpoint)
	require.NoError(t, err)
	require.NotNil(t, tA)

	// Invalid credentials are rejected.
	clientB := newClient(RandomPeerID(), "invalid", "invalid")
	_, err = clientB.OpenTransport(endpoint)
	require.Error(t, err)

	// After a dynamic update the same credentials are admitted.
	routerAuth.AddUser("invalid", "invalid")
	tB, err := clientB.OpenTransport(endpoint)
	require.NoError(t, err)
	require.NotNil(t, tB)

	// Valid credentials but a duplicate peer id: refused.
	clientC := newClient(pidA, "user03", "password03")
	_, err = clientC.OpenTransport(endpoint)
	require.Error(t, err)

	// Once A is gone its peer id is free again.
	require.NoError(t, tA.Close())
	waitFor(t, func() bool { return router.GetTransport(pidA) == nil },
		"router kept the closed transport")
	tC, err := clientC.OpenTransport(endpoint)
	require.NoError(t, err)
	require.NotNil(t, tC)

	clientA.Close()
	clientB.Close()
	clientC.Close()
}

func TestSharedMemoryScenario(t *testing.T) {
	routerAuth, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer routerAuth.Close()
	clientAuth, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer clientAuth.Close()

	router := NewManager(ManagerConfig{
		WhatAmI:        WhatAmIRouter,
		Authenticators: []Authenticator{routerAuth},
	})
	defer router.Close()
	ep, err := router.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)

	client := NewManager(ManagerConfig{
		WhatAmI:        WhatAmIClient,
		Authenticators: []Authenticator{clientAuth},
	})
	defer client.Close()

	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)
	assert.True(t, tr.IsSHM(), "the opener must observe the shm flag")

	waitFor(t, func() bool { return router.GetTransport(client.PeerID()) != nil },
		"router did not register the transport")
	assert.True(t, router.GetTransport(client.PeerID()).IsSHM(),
		"the listener must observe the shm flag")
}

func TestDataRoundTrip(t *testing.T) {
	routerCapture := newCaptureHandler()
	router := NewManager(ManagerConfig{WhatAmI: WhatAmIRouter, Handler: routerCapture})
	defer router.Close()
	ep, err := router.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)

	client := NewManager(ManagerConfig{WhatAmI: WhatAmIClient})
	defer client.Close()
	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)

	mux := NewMux(tr)
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	mux.SendData(ResKey{Suffix: "/demo/example/roundtrip"}, Payload{Data: payload},
		Channel{Priority: PriorityData, Reliability: Reliable}, CongestionBlock,
		&DataInfo{Kind: proto.KindPut, Encoding: proto.EncAppOctetStream})

	select {
	case msg := <-routerCapture.msgs:
		require.Equal(t, MsgData, msg.Kind)
		assert.Equal(t, "/demo/example/roundtrip", msg.Key.Suffix)
		assert.Equal(t, payload, msg.Payload.Data)
		require.NotNil(t, msg.Info)
		assert.Equal(t, proto.KindPut, msg.Info.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("data message never arrived")
	}

	stats := tr.Stats().Snapshot()
	assert.NotZero(t, stats.TxMsgs)
	assert.NotZero(t, stats.TxBytes)
}

func TestKeepAliveUnderIdle(t *testing.T) {
	const keepAlive = 50 * time.Millisecond

	router := NewManager(ManagerConfig{
		WhatAmI:   WhatAmIRouter,
		KeepAlive: keepAlive,
		Lease:     20 * keepAlive,
	})
	defer router.Close()
	ep, err := router.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)

	client := NewManager(ManagerConfig{
		WhatAmI:   WhatAmIClient,
		KeepAlive: keepAlive,
		Lease:     20 * keepAlive,
	})
	defer client.Close()
	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)

	// Quiesce application traffic for several keep-alive periods.
	time.Sleep(4 * keepAlive)

	stats := tr.Stats().Snapshot()
	assert.NotZero(t, stats.TxKeepAlives, "an idle link must emit keep-alives")

	waitFor(t, func() bool {
		rt := router.GetTransport(client.PeerID())
		return rt != nil && rt.Stats().Snapshot().RxKeepAlives > 0
	}, "router never observed a keep-alive")

	// The lease must not trip while keep-alives flow.
	assert.NotNil(t, router.GetTransport(client.PeerID()), "lease tripped under keep-alives")
	assert.Len(t, tr.Links(), 1)
}

func TestRemoteCloseObserved(t *testing.T) {
	router := NewManager(ManagerConfig{WhatAmI: WhatAmIRouter})
	defer router.Close()
	ep, err := router.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)

	client := NewManager(ManagerConfig{WhatAmI: WhatAmIClient})
	defer client.Close()
	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)

	waitFor(t, func() bool { return router.GetTransport(client.PeerID()) != nil },
		"router did not register the transport")
	require.NoError(t, tr.Close())

	waitFor(t, func() bool { return router.GetTransport(client.PeerID()) == nil },
		"peer close never propagated")
	waitFor(t, func() bool { return client.GetTransport(router.PeerID()) == nil },
		"closing side kept the transport")
}

func TestUDPTransport(t *testing.T) {
	routerCapture := newCaptureHandler()
	router := NewManager(ManagerConfig{WhatAmI: WhatAmIRouter, Handler: routerCapture})
	defer router.Close()
	ep, err := router.AddListener("udp/127.0.0.1:0")
	require.NoError(t, err)

	client := NewManager(ManagerConfig{WhatAmI: WhatAmIClient})
	defer client.Close()
	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)
	require.False(t, tr.Links()[0].IsStreamed())

	mux := NewMux(tr)
	mux.SendData(ResKey{Suffix: "/demo/udp"}, Payload{Data: []byte("datagram")},
		Channel{Priority: PriorityData, Reliability: BestEffort}, CongestionBlock, nil)

	select {
	case msg := <-routerCapture.msgs:
		assert.Equal(t, []byte("datagram"), msg.Payload.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("datagram never arrived")
	}
}

func TestManagerListenerLifecycle(t *testing.T) {
	m := NewManager(ManagerConfig{})
	defer m.Close()

	ep, err := m.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)
	require.Len(t, m.Listeners(), 1)

	require.NoError(t, m.DelListener(ep.String()))
	require.Empty(t, m.Listeners())
	require.Error(t, m.DelListener(ep.String()))

	_, err = m.AddListener(fmt.Sprintf("carrier-pigeon/%s", ep.Address))
	require.Error(t, err)
}
