// Package rdpserver implements the server side of the Reliable
// Datagram Protocol: receive one datagram at a time, de-duplicate by
// correlation id, invoke the installed handler for novel requests, and
// send the reply back over the same channel.
//
// Per-datagram algorithm (spec.md §4.5):
//
//  1. Recv one datagram.
//  2. Garbage-collect dedup entries older than 30s — swept every
//     iteration, not on a timer, so a quiescent server holds no
//     unbounded state between bursts.
//  3. Decode; malformed frames are dropped silently.
//  4. Dedup hit → reuse the stored reply frame. Miss → invoke the
//     handler, build a reply reusing the same correlation id, and
//     insert it into the dedup cache.
//  5. Send the reply to the sender.
package rdpserver

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"chatter/datagram"
	"chatter/frame"
	"chatter/metrics"
	"chatter/middleware"
)

// Handler maps a request payload to a response payload. It runs
// synchronously on the server's single receive loop — spec.md §4.5
// treats this as an accepted simplification, not a bug: a slow handler
// stalls the whole server, and handlers must not suspend.
type Handler func(requestPayload []byte) (responsePayload []byte, err error)

// DefaultDedupTTL is the 30s window spec.md §6 fixes for the dedup
// cache: all accepted replies for a given correlation id within this
// window are bitwise identical, because the stored reply frame is
// reused rather than recomputed.
const DefaultDedupTTL = 30 * time.Second

// pollInterval bounds how often Listen's accept loop wakes up to check
// the shutdown flag when no datagrams are arriving.
const pollInterval = 200 * time.Millisecond

// Server is the RDP server engine.
type Server struct {
	channel *datagram.Channel
	log     *slog.Logger
	metrics *metrics.ServerMetrics

	handler     Handler
	chain       middleware.HandlerFunc
	middlewares []middleware.Middleware

	dedup *ttlcache.Cache[string, []byte]

	mu      sync.Mutex
	closing bool
	done    chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger installs a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics installs a ServerMetrics recorder.
func WithMetrics(m *metrics.ServerMetrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDedupTTL overrides the default 30s dedup window.
func WithDedupTTL(d time.Duration) Option {
	return func(s *Server) {
		s.dedup = ttlcache.New(
			ttlcache.WithTTL[string, []byte](d),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		)
	}
}

// New creates a server bound to an already-open datagram channel. The
// caller must call OnMessage before Listen.
func New(channel *datagram.Channel, opts ...Option) *Server {
	s := &Server{
		channel: channel,
		log:     slog.Default(),
		// Touch-on-hit is disabled so a replayed request does not extend
		// its entry: each entry expires DefaultDedupTTL after insertion.
		dedup: ttlcache.New(
			ttlcache.WithTTL[string, []byte](DefaultDedupTTL),
			ttlcache.WithDisableTouchOnHit[string, []byte](),
		),
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnMessage installs the handler mapping request payloads to response
// payloads. Must be called once, before Listen.
func (s *Server) OnMessage(h Handler) {
	s.handler = h
}

// Use registers a middleware. Middlewares wrap the handler in the
// order they're added (onion model), built once when Listen starts —
// see the middleware package for the logging/rate-limit/timeout
// implementations used by the chat server.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Listen blocks serving requests until Close is observed.
func (s *Server) Listen() error {
	defer close(s.done)

	businessHandler := func(_ context.Context, payload []byte) ([]byte, error) {
		return s.handler(payload)
	}
	s.chain = middleware.Chain(s.middlewares...)(businessHandler)

	for {
		if s.isClosing() {
			return nil
		}

		s.channel.SetReadDeadline(time.Now().Add(pollInterval))
		data, src, err := s.channel.Recv()
		if err != nil {
			if isTimeout(err) {
				continue // no datagram within pollInterval; re-check shutdown flag
			}
			if s.isClosing() {
				return nil
			}
			return err
		}

		s.dedup.DeleteExpired()

		correlationID, payload, err := frame.Decode(data)
		if err != nil {
			if s.metrics != nil {
				s.metrics.MalformedDropped.Inc()
			}
			continue
		}

		s.handleRequest(correlationID, payload, src)
	}
}

func (s *Server) handleRequest(correlationID string, payload []byte, src *net.UDPAddr) {
	var replyFrame []byte

	if item := s.dedup.Get(correlationID); item != nil {
		replyFrame = item.Value()
		if s.metrics != nil {
			s.metrics.DedupHits.Inc()
		}
	} else {
		respPayload, err := s.chain(context.Background(), payload)
		if err != nil {
			// Recommended policy (spec.md §7): suppress the reply and
			// skip the dedup insert. The client will retransmit until
			// its own 6s timeout.
			s.log.Warn("rdpserver: handler failed, suppressing reply", "correlation_id", correlationID, "error", err)
			if s.metrics != nil {
				s.metrics.HandlerErrors.Inc()
			}
			return
		}

		encoded, err := frame.Encode(correlationID, respPayload)
		if err != nil {
			s.log.Warn("rdpserver: failed to encode reply, suppressing", "correlation_id", correlationID, "error", err)
			return
		}
		replyFrame = encoded
		s.dedup.Set(correlationID, replyFrame, ttlcache.DefaultTTL)
		if s.metrics != nil {
			s.metrics.RequestsHandled.Inc()
		}
	}

	if err := s.channel.SendTo(replyFrame, src); err != nil {
		s.log.Warn("rdpserver: failed to send reply", "correlation_id", correlationID, "error", err)
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Close requests termination. It is observed at the next iteration of
// the receive loop (bounded by pollInterval) and blocks until Listen
// has returned.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	<-s.done
	return s.channel.Close()
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
