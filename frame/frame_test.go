package frame

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	id := uuid.New().String()
	payload := []byte("hello world")

	encoded, err := Encode(id, payload)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	gotID, gotPayload, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if gotID != id {
		t.Errorf("correlation id mismatch: got %s, want %s", gotID, id)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload mismatch: got %q, want %q", gotPayload, payload)
	}
}

func TestEncodeDecodeEmptyPayload(t *testing.T) {
	id := uuid.New().String()
	encoded, err := Encode(id, nil)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) != MinFrameSize {
		t.Errorf("encoded length = %d, want %d", len(encoded), MinFrameSize)
	}

	gotID, gotPayload, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if gotID != id || len(gotPayload) != 0 {
		t.Errorf("got (%s, %q), want (%s, empty)", gotID, gotPayload, id)
	}
}

func TestEncodeMaxSizePayload(t *testing.T) {
	id := uuid.New().String()
	payload := bytes.Repeat([]byte{0xAB}, MaxPayloadSize)

	encoded, err := Encode(id, payload)
	if err != nil {
		t.Fatalf("Encode failed for max-size payload: %v", err)
	}
	if len(encoded) != MTU {
		t.Errorf("encoded length = %d, want MTU (%d)", len(encoded), MTU)
	}

	_, gotPayload, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload mismatch on max-size round trip")
	}
}

func TestEncodeOversizePayloadRejected(t *testing.T) {
	id := uuid.New().String()
	payload := bytes.Repeat([]byte{0x00}, MaxPayloadSize+1)

	if _, err := Encode(id, payload); err != ErrPayloadTooLarge {
		t.Errorf("Encode oversize payload: got err %v, want ErrPayloadTooLarge", err)
	}
}

func TestEncodeRejectsBadCorrelationIDLength(t *testing.T) {
	if _, err := Encode("too-short", []byte("x")); err != ErrInvalidCorrelationID {
		t.Errorf("got err %v, want ErrInvalidCorrelationID", err)
	}
}

func TestDecodeRejectsShortInput(t *testing.T) {
	_, _, err := Decode([]byte("short"))
	if err == nil || !strings.Contains(err.Error(), "malformed frame") {
		t.Errorf("got err %v, want malformed frame error", err)
	}
}

func TestDecodeRejectsBitFlip(t *testing.T) {
	id := uuid.New().String()
	encoded, err := Encode(id, []byte("payload-data"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	// Flip a single bit in the payload region — the checksum no longer matches.
	corrupted := make([]byte, len(encoded))
	copy(corrupted, encoded)
	corrupted[len(corrupted)-1] ^= 0x01

	if _, _, err := Decode(corrupted); err != ErrMalformedFrame {
		t.Errorf("got err %v, want ErrMalformedFrame", err)
	}
}

func TestDecodeNeverPartiallyDecodesOnMismatch(t *testing.T) {
	id := uuid.New().String()
	encoded, _ := Encode(id, []byte("x"))
	encoded[0] ^= 0xFF // corrupt the checksum itself

	gotID, gotPayload, err := Decode(encoded)
	if err != ErrMalformedFrame {
		t.Fatalf("got err %v, want ErrMalformedFrame", err)
	}
	if gotID != "" || gotPayload != nil {
		t.Errorf("malformed decode must not yield partial output, got (%q, %v)", gotID, gotPayload)
	}
}
