package chatclient

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"chatter/chatstore"
	"chatter/datagram"
	"chatter/rdpclient"
	"chatter/rdpserver"
)

func TestLoginAndMessageRoundTrip(t *testing.T) {
	serverChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open server channel: %v", err)
	}
	srv := rdpserver.New(serverChannel)
	handler := chatstore.NewHandler(chatstore.NewStore())
	srv.OnMessage(handler.Handle)

	go func() {
		if err := srv.Listen(); err != nil {
			t.Logf("server listen returned: %v", err)
		}
	}()
	defer srv.Close()

	clientChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open client channel: %v", err)
	}
	engine := rdpclient.New(clientChannel, rdpclient.WithResponseTimeout(2*time.Second))
	defer engine.Close()

	serverAddr := serverChannel.LocalAddr()
	client := New(engine, serverAddr.IP.String(), serverAddr.Port)

	if err := client.Login("alice"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if err := client.SendMessage("alice", "hello"); err != nil {
		t.Fatalf("send message failed: %v", err)
	}

	resp, err := client.FetchMessages("alice", 0)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if resp.Status != "SUCCESS" {
		t.Fatalf("unexpected status: %v", resp.Status)
	}
}

func TestDuplicateLoginFails(t *testing.T) {
	serverChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open server channel: %v", err)
	}
	srv := rdpserver.New(serverChannel)
	handler := chatstore.NewHandler(chatstore.NewStore())
	srv.OnMessage(handler.Handle)
	go srv.Listen()
	defer srv.Close()

	clientChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open client channel: %v", err)
	}
	engine := rdpclient.New(clientChannel, rdpclient.WithResponseTimeout(2*time.Second))
	defer engine.Close()

	serverAddr := serverChannel.LocalAddr()
	client := New(engine, serverAddr.IP.String(), serverAddr.Port)

	if err := client.Login("bob"); err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	err = client.Login("bob")
	if err == nil {
		t.Fatal("expected second login to fail")
	}
	if _, ok := err.(*ErrRequestFailed); !ok {
		t.Fatalf("expected *ErrRequestFailed, got %T: %v", err, err)
	}
}

// TestConcurrentLoginsAllSucceed covers scenario S6: 100 distinct
// usernames logging in concurrently through one shared Client must all
// succeed — the engine's outstanding/pending tables and the server's
// dedup cache are keyed by correlation id, so concurrent callers must
// never cross-deliver or clobber each other's replies.
func TestConcurrentLoginsAllSucceed(t *testing.T) {
	serverChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open server channel: %v", err)
	}
	srv := rdpserver.New(serverChannel)
	handler := chatstore.NewHandler(chatstore.NewStore())
	srv.OnMessage(handler.Handle)
	go srv.Listen()
	defer srv.Close()

	clientChannel, err := datagram.Open("127.0.0.1:0")
	if err != nil {
		t.Fatalf("open client channel: %v", err)
	}
	engine := rdpclient.New(clientChannel, rdpclient.WithResponseTimeout(6*time.Second))
	defer engine.Close()

	serverAddr := serverChannel.LocalAddr()
	client := New(engine, serverAddr.IP.String(), serverAddr.Port)

	const n = 100
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = client.Login(fmt.Sprintf("user-%d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("login for user-%d failed: %v", i, err)
		}
	}
}
