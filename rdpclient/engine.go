// Package rdpclient implements the client side of the Reliable
// Datagram Protocol: submit payloads, track outstanding requests,
// retransmit on a 500ms tick while any are outstanding, and
// demultiplex replies back to their caller by correlation id.
//
// Call flow:
//
//	Send(payload, host, port)  → frame.Encode → channel.SendTo → returns id immediately
//	  (background) retransmit loop resends every outstanding frame every 500ms
//	  (background) recvLoop        → channel.Recv → frame.Decode → match outstanding → fill pending slot
//	Response(id)               → block on pending slot or a 6s timeout
package rdpclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"chatter/datagram"
	"chatter/frame"
	"chatter/metrics"
)

// ErrTimeout is returned by Response when no matching reply arrives
// within the response budget (6s by default) counted from that call.
var ErrTimeout = errors.New("rdpclient: timed out waiting for response")

// ErrClosed is returned by Send and Response once the engine has been
// closed.
var ErrClosed = errors.New("rdpclient: engine is closed")

const (
	// DefaultRetransmitInterval is the fixed 500ms tick mandated by the
	// protocol (spec.md §6). There is no backoff and no retry cap —
	// retransmission is bounded only by the caller's response budget.
	DefaultRetransmitInterval = 500 * time.Millisecond

	// DefaultResponseTimeout is the 6s budget a caller gets from the
	// moment it first calls Response for a given id.
	DefaultResponseTimeout = 6 * time.Second
)

// outstandingRequest is a request whose reply has not yet arrived.
type outstandingRequest struct {
	correlationID string
	encodedFrame  []byte
	dest          *net.UDPAddr
}

// Engine is the client-side RDP engine. It owns the outstanding-request
// table, the pending-response table, and the channel's send path; the
// receive path runs on its own goroutine.
type Engine struct {
	channel *datagram.Channel
	log     *slog.Logger
	metrics *metrics.ClientMetrics
	clock   clockwork.Clock

	retransmitInterval time.Duration
	responseTimeout    time.Duration

	outstanding sync.Map // correlationID -> *outstandingRequest
	pending     sync.Map // correlationID -> chan []byte, buffered 1, single-assignment

	outstandingCount  atomic.Int64
	retransmitMu      sync.Mutex
	retransmitRunning bool

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger installs a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics installs a ClientMetrics recorder. Defaults to nil (no
// metrics recorded).
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock used for the retransmit ticker and the
// response timeout — tests inject a clockwork.FakeClock to exercise
// timing behavior without sleeping in real time.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRetransmitInterval overrides the default 500ms retransmit tick.
func WithRetransmitInterval(d time.Duration) Option {
	return func(e *Engine) { e.retransmitInterval = d }
}

// WithResponseTimeout overrides the default 6s response budget.
func WithResponseTimeout(d time.Duration) Option {
	return func(e *Engine) { e.responseTimeout = d }
}

// New creates a client engine bound to an already-open datagram
// channel and starts its receive loop. The caller owns the channel's
// lifetime via Close.
func New(channel *datagram.Channel, opts ...Option) *Engine {
	e := &Engine{
		channel:            channel,
		log:                slog.Default(),
		clock:              clockwork.NewRealClock(),
		retransmitInterval: DefaultRetransmitInterval,
		responseTimeout:    DefaultResponseTimeout,
		stopCh:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.wg.Add(1)
	go e.recvLoop()
	return e
}

// Send frames payload, records it as outstanding, sends it once
// immediately, and returns its correlation id. It does not block on
// network I/O beyond the local socket send.
func (e *Engine) Send(payload []byte, host string, port int) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}

	id := uuid.New().String()
	encoded, err := frame.Encode(id, payload)
	if err != nil {
		return "", fmt.Errorf("rdpclient: encode request: %w", err)
	}

	dest := &net.UDPAddr{IP: net.ParseIP(host), Port: port}
	if dest.IP == nil {
		resolved, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
		if err != nil {
			return "", fmt.Errorf("rdpclient: resolve destination: %w", err)
		}
		dest = resolved
	}

	req := &outstandingRequest{correlationID: id, encodedFrame: encoded, dest: dest}
	e.outstanding.Store(id, req)
	e.pending.Store(id, make(chan []byte, 1))
	e.outstandingCount.Add(1)

	if e.metrics != nil {
		e.metrics.RequestsSent.Inc()
	}

	if err := e.channel.SendTo(encoded, dest); err != nil {
		e.log.Warn("rdpclient: initial send failed, relying on retransmit", "correlation_id", id, "error", err)
	}

	e.ensureRetransmitLoop()
	return id, nil
}

// Response blocks until a reply for correlationID arrives, or fails
// with ErrTimeout after the response budget (default 6s) measured from
// this call.
func (e *Engine) Response(correlationID string) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	chAny, ok := e.pending.Load(correlationID)
	if !ok {
		return nil, fmt.Errorf("rdpclient: unknown correlation id %q", correlationID)
	}
	ch := chAny.(chan []byte)

	timer := e.clock.NewTimer(e.responseTimeout)
	defer timer.Stop()

	select {
	case payload := <-ch:
		e.cleanup(correlationID)
		return payload, nil
	case <-timer.Chan():
		e.cleanup(correlationID)
		if e.metrics != nil {
			e.metrics.Timeouts.Inc()
		}
		return nil, ErrTimeout
	}
}

// cleanup removes both table entries for an id, whether the request
// completed or was abandoned. Removing the outstanding entry is what
// stops further retransmission and what makes a late, duplicate reply
// get silently discarded by recvLoop.
func (e *Engine) cleanup(correlationID string) {
	if _, loaded := e.outstanding.LoadAndDelete(correlationID); loaded {
		e.outstandingCount.Add(-1)
	}
	e.pending.Delete(correlationID)
}

// recvLoop reads replies off the channel, discards malformed or
// unrecognised frames, and fills the matching pending slot exactly
// once.
func (e *Engine) recvLoop() {
	defer e.wg.Done()
	for {
		data, _, err := e.channel.Recv()
		if err != nil {
			if e.closed.Load() {
				return
			}
			e.log.Debug("rdpclient: recv error", "error", err)
			continue
		}

		id, payload, err := frame.Decode(data)
		if err != nil {
			if e.metrics != nil {
				e.metrics.MalformedDropped.Inc()
			}
			continue // malformed frame: drop silently, never log as a successful receive
		}

		reqAny, ok := e.outstanding.LoadAndDelete(id)
		if !ok {
			// Unknown id: either a late reply after the caller abandoned
			// (timeout) or a duplicate of a reply already matched once.
			continue
		}
		e.outstandingCount.Add(-1)
		_ = reqAny

		if chAny, ok := e.pending.Load(id); ok {
			ch := chAny.(chan []byte)
			select {
			case ch <- payload:
				if e.metrics != nil {
					e.metrics.ResponsesMatched.Inc()
				}
			default:
				// Slot already filled (shouldn't happen: outstanding was
				// just removed above, so only one delivery can win the race).
			}
		}
	}
}

// ensureRetransmitLoop starts the periodic retransmit goroutine if it
// isn't already running. Its lifetime is tied to the non-emptiness of
// the outstanding-request table: it exits on the first tick that finds
// the table empty, and is restarted lazily by the next Send.
func (e *Engine) ensureRetransmitLoop() {
	e.retransmitMu.Lock()
	defer e.retransmitMu.Unlock()
	if e.retransmitRunning {
		return
	}
	e.retransmitRunning = true
	e.wg.Add(1)
	go e.retransmitLoop()
}

func (e *Engine) retransmitLoop() {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(e.retransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.Chan():
		}

		e.retransmitMu.Lock()
		if e.outstandingCount.Load() == 0 {
			e.retransmitRunning = false
			e.retransmitMu.Unlock()
			return
		}
		e.retransmitMu.Unlock()

		e.outstanding.Range(func(_, value any) bool {
			req := value.(*outstandingRequest)
			if err := e.channel.SendTo(req.encodedFrame, req.dest); err != nil {
				e.log.Debug("rdpclient: retransmit failed", "correlation_id", req.correlationID, "error", err)
				return true
			}
			if e.metrics != nil {
				e.metrics.Retransmits.Inc()
			}
			return true
		})
	}
}

// Close stops retransmission and closes the underlying channel. The
// receive goroutine exits once the channel's Recv call returns an
// error.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(e.stopCh)
	err := e.channel.Close()
	e.wg.Wait()
	return err
}
