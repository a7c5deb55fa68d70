package link

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

// loopback opens a tcp listener and returns both ends of one connection.
func loopback(t *testing.T) (Link, Link) {
	t.Helper()
	ln, err := Listen(Endpoint{Scheme: "tcp", Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	accepted := make(chan Link, 1)
	go func() {
		lk, err := ln.Accept()
		if err == nil {
			accepted <- lk
		}
	}()

	client, err := Dial(ln.Endpoint())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	select {
	case server := <-accepted:
		t.Cleanup(func() { client.Close(); server.Close() })
		return client, server
	case <-time.After(time.Second):
		t.Fatal("accept timed out")
		return nil, nil
	}
}

func TestStreamFramingRoundTrip(t *testing.T) {
	client, server := loopback(t)
	if !client.IsStreamed() || client.MTU() != StreamMTU {
		t.Fatalf("tcp link properties wrong: streamed=%v mtu=%d", client.IsStreamed(), client.MTU())
	}

	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	frame := make([]byte, 2+len(payload))
	binary.LittleEndian.PutUint16(frame[:2], uint16(len(payload)))
	copy(frame[2:], payload)

	if err := client.WriteAll(frame); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var hdr [2]byte
	if err := server.ReadExact(hdr[:]); err != nil {
		t.Fatalf("header read failed: %v", err)
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	if n != 300 {
		t.Fatalf("length prefix = %d, want 300", n)
	}
	got := make([]byte, n)
	if err := server.ReadExact(got); err != nil {
		t.Fatalf("body read failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("payload corrupted in transit")
	}
}

func TestReadDeadline(t *testing.T) {
	client, _ := loopback(t)
	if err := client.SetReadDeadline(time.Now().Add(20 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline failed: %v", err)
	}
	var b [1]byte
	err := client.ReadExact(b[:])
	if err == nil {
		t.Fatal("read returned without data")
	}
	if !IsTimeout(err) {
		t.Errorf("expected a timeout error, got %v", err)
	}
}

func TestUDPLoopback(t *testing.T) {
	ln, err := Listen(Endpoint{Scheme: "udp", Address: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()

	client, err := Dial(ln.Endpoint())
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()
	if client.IsStreamed() {
		t.Fatal("udp link must not be streamed")
	}

	// The server side materializes a link on first contact.
	if err := client.WriteAll([]byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	server, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	buf := make([]byte, 64)
	if err := server.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("deadline failed: %v", err)
	}
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server read failed: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Fatalf("server got %q", buf[:n])
	}

	if err := server.WriteAll([]byte("pong")); err != nil {
		t.Fatalf("server write failed: %v", err)
	}
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, err = client.Read(buf)
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	if string(buf[:n]) != "pong" {
		t.Fatalf("client got %q", buf[:n])
	}
}
