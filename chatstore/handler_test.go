package chatstore

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestLoginThenDuplicateLogin(t *testing.T) {
	h := NewHandler(NewStore())

	resp, err := h.Handle([]byte("Method: LOGIN\nData: {\"username\": \"alice\"}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: SUCCESS\nStatus-message: Successfully authorized\nData: {\"username\":\"alice\"}") {
		t.Fatalf("unexpected response: %q", resp)
	}

	resp, err = h.Handle([]byte("Method: LOGIN\nData: {\"username\": \"alice\"}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: AUTHORIZATION-ERROR") {
		t.Fatalf("expected authorization error, got %q", resp)
	}
}

func TestMessageRequiresLogin(t *testing.T) {
	h := NewHandler(NewStore())

	resp, err := h.Handle([]byte("Method: MESSAGE\nData: {\"username\": \"bob\", \"message\": \"hi\"}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: AUTHORIZATION-ERROR") {
		t.Fatalf("expected authorization error, got %q", resp)
	}
}

func TestMessageThenFetch(t *testing.T) {
	h := NewHandler(NewStore())

	if _, err := h.Handle([]byte("Method: LOGIN\nData: {\"username\": \"carol\"}\n")); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := h.Handle([]byte("Method: MESSAGE\nData: {\"username\": \"carol\", \"message\": \"hello\"}\n")); err != nil {
		t.Fatalf("message failed: %v", err)
	}

	resp, err := h.Handle([]byte("Method: FETCH\nData: {\"username\": \"carol\", \"timestamp\": 0}\n"))
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !strings.Contains(string(resp), "hello") {
		t.Fatalf("expected fetched message, got %q", resp)
	}
}

func TestExitRemovesUser(t *testing.T) {
	h := NewHandler(NewStore())

	if _, err := h.Handle([]byte("Method: LOGIN\nData: {\"username\": \"dave\"}\n")); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	resp, err := h.Handle([]byte("Method: EXIT\nData: {\"username\": \"dave\"}\n"))
	if err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: SUCCESS\nStatus-message: Successfully removed user") {
		t.Fatalf("unexpected response: %q", resp)
	}

	if h.store.IsActive("dave") {
		t.Fatal("expected dave to no longer be active")
	}
}

func TestUnsupportedMethod(t *testing.T) {
	h := NewHandler(NewStore())

	resp, err := h.Handle([]byte("Method: DANCE\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: UNSUPPORTED-METHOD") {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestMissingMethod(t *testing.T) {
	h := NewHandler(NewStore())

	resp, err := h.Handle([]byte("Data: {}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: UNSUPPORTED-METHOD") {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestFormatError(t *testing.T) {
	h := NewHandler(NewStore())

	resp, err := h.Handle([]byte("not parsable at all"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: FORMAT-ERROR") {
		t.Fatalf("unexpected response: %q", resp)
	}
}

func TestCleanupSweepsFetchedMessages(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore()
	h := NewHandler(store, WithClock(clock), WithCleanupInterval(time.Second))

	mustHandle(t, h, "Method: LOGIN\nData: {\"username\": \"erin\"}\n")
	mustHandle(t, h, "Method: MESSAGE\nData: {\"username\": \"erin\", \"message\": \"m1\"}\n")
	// Fetch a moment after the message was stored, so erin's last-fetch
	// timestamp lands strictly after the message's timestamp.
	clock.Advance(time.Millisecond)
	mustHandle(t, h, "Method: FETCH\nData: {\"username\": \"erin\", \"timestamp\": 0}\n")

	clock.Advance(2 * time.Second)
	// Triggers the cleanup sweep on this call, dropping the
	// already-fetched message since it now precedes erin's last-fetch
	// timestamp.
	mustHandle(t, h, "Method: FETCH\nData: {\"username\": \"erin\", \"timestamp\": 0}\n")

	store.mu.Lock()
	n := len(store.messages)
	store.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected cleanup to remove fetched messages, got %d remaining", n)
	}
}

// panickingStore implements chatStore and panics on every call, so
// Handle's recover path can be exercised without corrupting a real
// Store.
type panickingStore struct{}

func (panickingStore) Login(string, time.Time) bool                  { panic("store unavailable") }
func (panickingStore) IsActive(string) bool                          { panic("store unavailable") }
func (panickingStore) Exit(string) bool                              { panic("store unavailable") }
func (panickingStore) StoreMessage(string, string, time.Time)        { panic("store unavailable") }
func (panickingStore) Fetch(string, time.Time, time.Time) []Message  { panic("store unavailable") }
func (panickingStore) CleanupMessages(time.Time)                     {}

func TestHandlerPanicReturnsInternalError(t *testing.T) {
	h := newHandler(panickingStore{})

	resp, err := h.Handle([]byte("Method: LOGIN\nData: {\"username\": \"alice\"}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(string(resp), "Status-name: INTERNAL-ERROR") {
		t.Fatalf("expected INTERNAL-ERROR response, got %q", resp)
	}
}

func mustHandle(t *testing.T, h *Handler, payload string) []byte {
	t.Helper()
	resp, err := h.Handle([]byte(payload))
	if err != nil {
		t.Fatalf("unexpected error handling %q: %v", payload, err)
	}
	return resp
}
