// Package signal is the request/notification channel to the media relay,
// speaking protoo over a websocket.
package signal

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/eventq"
	"github.com/dkeye/VoiceClient/internal/metrics"
	"github.com/dkeye/VoiceClient/internal/protocol"
)

const Subprotocol = "protoo"

var (
	ErrClosed             = errors.New("signal: channel closed")
	ErrDisconnected       = fmt.Errorf("signal: %w", core.ErrDisconnected)
	ErrRequestTimeout     = errors.New("signal: request timeout")
	ErrReconnectExhausted = errors.New("signal: reconnect attempts exhausted")
	ErrAlreadyOpen        = errors.New("signal: already opened")
	ErrAlreadyAnswered    = errors.New("signal: request already answered")
)

type Options struct {
	URL               string
	HandshakeTimeout  time.Duration
	RequestTimeout    time.Duration
	PingPeriod        time.Duration
	ReadLimit         int64
	ReconnectAttempts int
	ReconnectWindow   time.Duration
	ReconnectDelay    time.Duration
	// Dialer overrides the default websocket dialer.
	Dialer  *websocket.Dialer
	Metrics *metrics.Metrics
}

type pendingRequest struct {
	method string
	ch     chan result
}

type result struct {
	data json.RawMessage
	err  error
}

// Channel implements core.Signaling.
type Channel struct {
	opts    Options
	dialer  *websocket.Dialer
	limiter *ReconnectLimiter
	log     zerolog.Logger
	events  *eventq.Queue[core.ConnectionEvent]

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	link          *wsLink
	pending       map[uint32]*pendingRequest
	notifications map[string]core.NotificationHandler
	requests      map[string]core.RequestHandler
	listeners     []func(core.ConnectionEvent)
	opened        bool
	closed        bool
}

var _ core.Signaling = (*Channel)(nil)

func New(opts Options) *Channel {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		opts:          opts,
		dialer:        dialer,
		limiter:       NewReconnectLimiter(opts.ReconnectAttempts, opts.ReconnectWindow),
		log:           log.With().Str("module", "signal").Logger(),
		ctx:           ctx,
		cancel:        cancel,
		pending:       make(map[uint32]*pendingRequest),
		notifications: make(map[string]core.NotificationHandler),
		requests:      make(map[string]core.RequestHandler),
	}
	c.events = eventq.New("signal", c.dispatch)
	return c
}

func (c *Channel) HandleNotification(method string, fn core.NotificationHandler) {
	c.mu.Lock()
	c.notifications[method] = fn
	c.mu.Unlock()
}

func (c *Channel) HandleRequest(method string, fn core.RequestHandler) {
	c.mu.Lock()
	c.requests[method] = fn
	c.mu.Unlock()
}

func (c *Channel) OnConnectionEvent(fn func(core.ConnectionEvent)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Channel) dispatch(ev core.ConnectionEvent) {
	c.mu.Lock()
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (c *Channel) emit(kind core.ConnectionEventKind, err error) {
	c.log.Debug().Stringer("event", kind).Err(err).Msg("connection event")
	c.events.Push(core.ConnectionEvent{Kind: kind, Err: err})
}

// Open dials the relay once. A failed first dial emits failed and is not retried.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opened = true
	c.mu.Unlock()

	l, err := c.dial(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("url", c.opts.URL).Msg("dial failed")
		c.emit(core.ConnFailed, err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		l.close()
		return ErrClosed
	}
	c.link = l
	c.mu.Unlock()

	c.log.Info().Str("url", c.opts.URL).Msg("connected")
	c.emit(core.ConnOpen, nil)
	go c.run(l)
	return nil
}

func (c *Channel) dial(ctx context.Context) (*wsLink, error) {
	ws, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	return newLink(c.ctx, ws), nil
}

// run serves a link until it dies, then reconnects while the budget allows.
func (c *Channel) run(l *wsLink) {
	for l != nil {
		err := c.serve(l)
		if c.isClosed() {
			return
		}
		c.log.Warn().Err(err).Msg("link lost")
		c.dropLink(l)
		c.emit(core.ConnDisconnected, err)
		l = c.reconnect()
	}
}

func (c *Channel) reconnect() *wsLink {
	for {
		if c.isClosed() {
			return nil
		}
		if !c.limiter.Allow() {
			c.log.Error().Int("attempts", c.opts.ReconnectAttempts).Dur("window", c.opts.ReconnectWindow).Msg("reconnect budget exhausted")
			c.emit(core.ConnFailed, ErrReconnectExhausted)
			c.Close()
			return nil
		}

		select {
		case <-time.After(c.opts.ReconnectDelay):
		case <-c.ctx.Done():
			return nil
		}

		ctx, cancel := context.WithTimeout(c.ctx, c.handshakeTimeout())
		l, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Msg("reconnect attempt failed")
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			l.close()
			return nil
		}
		c.link = l
		c.mu.Unlock()

		c.opts.Metrics.Reconnect()
		c.log.Info().Msg("reconnected")
		c.emit(core.ConnOpen, nil)
		return l
	}
}

func (c *Channel) handshakeTimeout() time.Duration {
	if c.opts.HandshakeTimeout > 0 {
		return c.opts.HandshakeTimeout
	}
	return 10 * time.Second
}

func (c *Channel) dropLink(l *wsLink) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	c.mu.Unlock()

	l.close()
	failPending(pending, ErrDisconnected)
}

func failPending(pending map[uint32]*pendingRequest, err error) {
	for _, p := range pending {
		p.ch <- result{err: err}
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Request sends a correlated request and waits for the relay's answer.
func (c *Channel) Request(ctx context.Context, method string, data, out any) error {
	err := c.request(ctx, method, data, out)
	switch {
	case err == nil:
		c.opts.Metrics.Request(method, metrics.ResultOK)
	case isRejection(err):
		c.opts.Metrics.Request(method, metrics.ResultRejected)
	default:
		c.opts.Metrics.Request(method, metrics.ResultError)
	}
	return err
}

func isRejection(err error) bool {
	var re *protocol.RequestError
	return errors.As(err, &re)
}

func (c *Channel) request(ctx context.Context, method string, data, out any) error {
	p := &pendingRequest{method: method, ch: make(chan result, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	l := c.link
	if l == nil {
		c.mu.Unlock()
		return ErrDisconnected
	}
	id := c.nextIDLocked()
	c.pending[id] = p
	c.mu.Unlock()

	frame, err := newRequest(id, method, data)
	if err != nil {
		c.forget(id)
		return fmt.Errorf("encode %s: %w", method, err)
	}

	c.log.Debug().Str("method", method).Uint32("id", id).Msg("request")
	if err := l.send(ctx, frame); err != nil {
		c.forget(id)
		return err
	}

	var timeout <-chan time.Time
	if c.opts.RequestTimeout > 0 {
		t := time.NewTimer(c.opts.RequestTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case r := <-p.ch:
		if r.err != nil {
			return r.err
		}
		if out != nil && len(r.data) > 0 {
			if err := json.Unmarshal(r.data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case <-timeout:
		c.forget(id)
		c.log.Warn().Str("method", method).Uint32("id", id).Msg("request timeout")
		return ErrRequestTimeout
	}
}

func (c *Channel) nextIDLocked() uint32 {
	for {
		id := rand.Uint32N(10_000_000) + 1
		if _, taken := c.pending[id]; !taken {
			return id
		}
	}
}

func (c *Channel) forget(id uint32) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Channel) resolve(id uint32, r result) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		c.log.Warn().Uint32("id", id).Msg("response for unknown request")
		return
	}
	if r.err != nil {
		var re *protocol.RequestError
		if errors.As(r.err, &re) {
			re.Method = p.method
		}
	}
	p.ch <- r
}

// Close is idempotent. It fails pending requests and stops reconnecting.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	l := c.link
	c.link = nil
	pending := c.pending
	c.pending = make(map[uint32]*pendingRequest)
	c.mu.Unlock()

	c.cancel()
	if l != nil {
		l.close()
	}
	failPending(pending, ErrClosed)
	c.log.Info().Msg("closed")
	c.emit(core.ConnClosed, nil)
	c.events.Close()
}

// Done is closed after the closed event has been delivered.
func (c *Channel) Done() <-chan struct{} { return c.events.Done() }

type responder struct {
	ch     *Channel
	link   *wsLink
	id     uint32
	method string

	mu       sync.Mutex
	answered bool
}

var _ core.Responder = (*responder)(nil)

func (r *responder) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.answered {
		return false
	}
	r.answered = true
	return true
}

func (r *responder) Accept(data any) error {
	if !r.claim() {
		return ErrAlreadyAnswered
	}
	frame, err := newSuccessResponse(r.id, data)
	if err != nil {
		return err
	}
	return r.link.send(r.ch.ctx, frame)
}

func (r *responder) Reject(code int, reason string) error {
	if !r.claim() {
		return ErrAlreadyAnswered
	}
	r.ch.log.Debug().Str("method", r.method).Int("code", code).Str("reason", reason).Msg("reject relay request")
	frame, err := newErrorResponse(r.id, code, reason)
	if err != nil {
		return err
	}
	return r.link.send(r.ch.ctx, frame)
}
