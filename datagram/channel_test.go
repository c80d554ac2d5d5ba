package datagram

import (
	"bytes"
	"testing"
	"time"
)

func TestSendRecvRoundTrip(t *testing.T) {
	server, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open server: %v", err)
	}
	defer server.Close()

	client, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open client: %v", err)
	}
	defer client.Close()

	payload := []byte("ping")
	if err := client.SendTo(payload, server.LocalAddr()); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	got, src, err := server.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q, want %q", got, payload)
	}

	if err := server.SendTo([]byte("pong"), src); err != nil {
		t.Fatalf("reply SendTo: %v", err)
	}

	reply, _, err := client.Recv()
	if err != nil {
		t.Fatalf("client Recv: %v", err)
	}
	if string(reply) != "pong" {
		t.Errorf("got %q, want pong", reply)
	}
}

func TestReadDeadlineUnblocksRecv(t *testing.T) {
	ch, err := Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	ch.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, _, err = ch.Recv()
	if err == nil {
		t.Fatal("expected a deadline-exceeded error, got nil")
	}
}
