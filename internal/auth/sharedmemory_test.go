package auth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedMemoryExchange(t *testing.T) {
	router, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer router.Close()
	client, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer client.Close()

	open := client.StartOpen()
	accept := router.StartAccept()

	att, err := open.InitAttachment()
	require.NoError(t, err)
	require.NotEmpty(t, att)

	challenge, err := accept.Challenge(att, true)
	require.NoError(t, err)
	require.NotEmpty(t, challenge)

	resp, attrs, err := open.Respond(challenge, true)
	require.NoError(t, err)
	require.NotNil(t, attrs)
	require.True(t, attrs.SHM, "the responder must flag shm after reading the segment")

	got, err := accept.Verify(resp, true)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.True(t, got.SHM, "the challenger must flag shm after a valid echo")
}

func TestSharedMemorySkipsNonCapablePeer(t *testing.T) {
	router, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer router.Close()

	accept := router.StartAccept()
	challenge, err := accept.Challenge(nil, false)
	require.NoError(t, err)
	require.Nil(t, challenge, "a peer without the capability must not be challenged")

	attrs, err := accept.Verify(nil, false)
	require.NoError(t, err)
	require.Nil(t, attrs)
}

func TestSharedMemoryRejectsBadEcho(t *testing.T) {
	router, err := NewSharedMemoryAuthenticator()
	require.NoError(t, err)
	defer router.Close()

	accept := router.StartAccept()
	_, err = accept.Challenge([]byte{1}, true)
	require.NoError(t, err)

	bogus := make([]byte, 8)
	binary.LittleEndian.PutUint64(bogus, 0xdeadbeef)
	_, err = accept.Verify(bogus, true)
	require.Error(t, err)
}
