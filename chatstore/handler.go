package chatstore

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"chatter/chatproto"
)

// DefaultCleanupInterval mirrors original_source/server/server.py's
// INTERVAL_TIME (5 seconds): how often a request triggers a message
// cleanup sweep.
const DefaultCleanupInterval = 5 * time.Second

// chatStore is the slice of Store's methods Handler depends on. The
// seam exists so a test can substitute a fake that panics, to exercise
// Handle's recovery path without corrupting a real Store.
type chatStore interface {
	Login(username string, now time.Time) bool
	IsActive(username string) bool
	Exit(username string) bool
	StoreMessage(username, text string, now time.Time)
	Fetch(username string, since, now time.Time) []Message
	CleanupMessages(now time.Time)
}

// Handler adapts a Store to the rdpserver.Handler signature (request
// payload in, response payload out) by speaking chatproto on both
// ends. It runs the cleanup sweep inline, checked against a clock on
// every invocation — same structure as the original's CURRENT_TIME /
// INTERVAL_TIME check in handleRequest, just without a second asyncio
// task, since the server this handler is installed into is
// single-threaded by contract.
type Handler struct {
	store chatStore
	clock clockwork.Clock

	cleanupInterval time.Duration

	mu            sync.Mutex
	lastCleanupAt time.Time
}

// NewHandler builds a Handler over store. The clock defaults to the
// real clock; tests inject a clockwork.FakeClock to exercise cleanup
// timing deterministically.
func NewHandler(store *Store, opts ...HandlerOption) *Handler {
	return newHandler(store, opts...)
}

// newHandler builds a Handler over any chatStore implementation —
// unexported so only this package (notably its tests, which inject a
// panicking fake to exercise Handle's recover path) can bypass the
// *Store-only NewHandler constructor.
func newHandler(store chatStore, opts ...HandlerOption) *Handler {
	h := &Handler{
		store:           store,
		clock:           clockwork.NewRealClock(),
		cleanupInterval: DefaultCleanupInterval,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastCleanupAt = h.clock.Now()
	return h
}

// HandlerOption configures a Handler at construction time.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for timestamps and the cleanup
// interval check.
func WithClock(c clockwork.Clock) HandlerOption {
	return func(h *Handler) { h.clock = c }
}

// WithCleanupInterval overrides DefaultCleanupInterval.
func WithCleanupInterval(d time.Duration) HandlerOption {
	return func(h *Handler) { h.cleanupInterval = d }
}

// Handle implements rdpserver.Handler. A panic anywhere below (a
// backing store gone bad, a bug in a future handler branch) is
// recovered here and reported as INTERNAL-ERROR instead of taking the
// whole server down or going through the HandlerError
// reply-suppression path — the request was understood, it just
// couldn't be completed.
func (h *Handler) Handle(requestPayload []byte) (resp []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = chatproto.Encode(chatproto.Response{
				Status:  chatproto.StatusInternalError,
				Message: fmt.Sprintf("internal error: %v", r),
			})
		}
	}()

	now := h.clock.Now()
	h.maybeCleanup(now)

	req, err := chatproto.ParseRequest(requestPayload)
	if err != nil {
		return chatproto.Encode(chatproto.Response{
			Status:  chatproto.StatusFormatError,
			Message: "Format of request is not parsable",
		})
	}

	switch req.Method {
	case chatproto.MethodLogin:
		return h.handleLogin(req, now)
	case chatproto.MethodMessage:
		return h.handleMessage(req, now)
	case chatproto.MethodFetch:
		return h.handleFetch(req, now)
	case chatproto.MethodExit:
		return h.handleExit(req)
	case "":
		return chatproto.Encode(chatproto.Response{
			Status:  chatproto.StatusUnsupportedMethod,
			Message: "Ensure that the method is specified in the request",
		})
	default:
		return chatproto.Encode(chatproto.Response{
			Status:  chatproto.StatusUnsupportedMethod,
			Message: "Provided method is unsupported",
		})
	}
}

func (h *Handler) maybeCleanup(now time.Time) {
	h.mu.Lock()
	due := now.Sub(h.lastCleanupAt) > h.cleanupInterval
	if due {
		h.lastCleanupAt = now
	}
	h.mu.Unlock()

	if due {
		h.store.CleanupMessages(now)
	}
}

func (h *Handler) handleLogin(req chatproto.Request, now time.Time) ([]byte, error) {
	var data struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(req.Data, &data); err != nil || data.Username == "" {
		return dataRequired("Ensure that username exists within the data body line")
	}

	if !h.store.Login(data.Username, now) {
		return chatproto.Encode(chatproto.Response{
			Status:  chatproto.StatusAuthorizationError,
			Message: "Username is already taken",
		})
	}

	return chatproto.Encode(chatproto.Response{
		Status:  chatproto.StatusSuccess,
		Message: "Successfully authorized",
		Data:    map[string]string{"username": data.Username},
	})
}

func (h *Handler) handleMessage(req chatproto.Request, now time.Time) ([]byte, error) {
	var data struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(req.Data, &data); err != nil || data.Username == "" || data.Message == "" {
		return dataRequired("Ensure that message exists within the data body line")
	}

	if !h.store.IsActive(data.Username) {
		return notAuthorized()
	}

	h.store.StoreMessage(data.Username, data.Message, now)
	return chatproto.Encode(chatproto.Response{
		Status:  chatproto.StatusSuccess,
		Message: "Successfully stored message",
		Data:    map[string]string{"username": data.Username},
	})
}

func (h *Handler) handleFetch(req chatproto.Request, now time.Time) ([]byte, error) {
	var data struct {
		Username  string  `json:"username"`
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(req.Data, &data); err != nil || data.Username == "" {
		return dataRequired("Ensure that timestamp exists within the data body line")
	}

	if !h.store.IsActive(data.Username) {
		return notAuthorized()
	}

	since := time.Unix(0, int64(data.Timestamp*float64(time.Second)))
	messages := h.store.Fetch(data.Username, since, now)

	payload := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, map[string]any{
			"username":  m.Username,
			"message":   m.Text,
			"timestamp": float64(m.Timestamp.UnixNano()) / float64(time.Second),
		})
	}

	return chatproto.Encode(chatproto.Response{
		Status:  chatproto.StatusSuccess,
		Message: "Successfully fetched messages",
		Data:    payload,
	})
}

func (h *Handler) handleExit(req chatproto.Request) ([]byte, error) {
	var data struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(req.Data, &data); err != nil || data.Username == "" {
		return dataRequired("Ensure that username exists within the data body line")
	}

	if !h.store.Exit(data.Username) {
		return notAuthorized()
	}

	return chatproto.Encode(chatproto.Response{
		Status:  chatproto.StatusSuccess,
		Message: "Successfully removed user",
		Data:    map[string]string{"username": data.Username},
	})
}

func dataRequired(message string) ([]byte, error) {
	return chatproto.Encode(chatproto.Response{Status: chatproto.StatusDataRequired, Message: message})
}

func notAuthorized() ([]byte, error) {
	return chatproto.Encode(chatproto.Response{
		Status:  chatproto.StatusAuthorizationError,
		Message: "Please perform LOGIN request to be authorized",
	})
}
