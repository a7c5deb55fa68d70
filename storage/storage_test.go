package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fossabot/zenoh"
)

// storageHandler hosts one storage per admitted transport, the way the
// daemon does.
type storageHandler struct {
	selector string
	attached chan *Storage
}

func (h *storageHandler) NewUnicast(peer zenoh.TransportPeer, t *zenoh.TransportUnicast) (zenoh.TransportPeerEventHandler, error) {
	s := New(h.selector)
	s.Attach(zenoh.NewMux(t), peer.PeerID)
	select {
	case h.attached <- s:
	default:
	}
	return s, nil
}

// clientPeer collects replies on the querying side.
type clientPeer struct {
	msgs chan *zenoh.Message
}

func (p *clientPeer) HandleMessage(msg *zenoh.Message) error {
	if len(msg.Payload.Data) > 0 {
		data := make([]byte, len(msg.Payload.Data))
		copy(data, msg.Payload.Data)
		msg.Payload.Data = data
	}
	p.msgs <- msg
	return nil
}
func (p *clientPeer) NewLink(zenoh.Link) {}
func (p *clientPeer) DelLink(zenoh.Link) {}
func (p *clientPeer) Closing()           {}
func (p *clientPeer) Closed()            {}

type clientHandler struct {
	msgs chan *zenoh.Message
}

func (h *clientHandler) NewUnicast(zenoh.TransportPeer, *zenoh.TransportUnicast) (zenoh.TransportPeerEventHandler, error) {
	return &clientPeer{msgs: h.msgs}, nil
}

func TestStorageStoresAndReplies(t *testing.T) {
	sh := &storageHandler{selector: "/demo/example/**", attached: make(chan *Storage, 1)}
	router := zenoh.NewManager(zenoh.ManagerConfig{
		WhatAmI: zenoh.WhatAmIRouter,
		Handler: sh,
	})
	defer router.Close()
	ep, err := router.AddListener("tcp/127.0.0.1:0")
	require.NoError(t, err)

	ch := &clientHandler{msgs: make(chan *zenoh.Message, 16)}
	client := zenoh.NewManager(zenoh.ManagerConfig{
		WhatAmI: zenoh.WhatAmIClient,
		Handler: ch,
	})
	defer client.Close()

	tr, err := client.OpenTransport(ep.String())
	require.NoError(t, err)
	mux := zenoh.NewMux(tr)

	var storage *Storage
	select {
	case storage = <-sh.attached:
	case <-time.After(5 * time.Second):
		t.Fatal("storage never attached")
	}

	// Publish two samples, one outside the selector.
	mux.SendData(zenoh.ResKey{Suffix: "/demo/example/one"}, zenoh.Payload{Data: []byte("value-one")},
		zenoh.Channel{Priority: zenoh.PriorityData, Reliability: zenoh.Reliable}, zenoh.CongestionBlock, nil)
	mux.SendData(zenoh.ResKey{Suffix: "/elsewhere/two"}, zenoh.Payload{Data: []byte("value-two")},
		zenoh.Channel{Priority: zenoh.PriorityData, Reliability: zenoh.Reliable}, zenoh.CongestionBlock, nil)

	deadline := time.Now().Add(5 * time.Second)
	for storage.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, 1, storage.Len(), "only the matching sample must be stored")

	// Query the stored resources.
	mux.SendQuery(zenoh.ResKey{Suffix: "/demo/example/**"}, "", 42, 0, 0)

	var replies [][]byte
	for {
		select {
		case msg := <-ch.msgs:
			if msg.Reply == nil || msg.Reply.QID != 42 {
				continue
			}
			if msg.Reply.Replier == nil {
				// The terminator carries no replier info.
				assert.Equal(t, zenoh.MsgUnit, msg.Kind)
				require.Len(t, replies, 1)
				assert.Equal(t, []byte("value-one"), replies[0])
				return
			}
			assert.Equal(t, zenoh.MsgData, msg.Kind)
			assert.Equal(t, "/demo/example/one", msg.Key.Suffix)
			replies = append(replies, msg.Payload.Data)
		case <-time.After(5 * time.Second):
			t.Fatal("query replies never arrived")
		}
	}
}
