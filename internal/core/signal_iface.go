package core

import (
	"context"
	"errors"

	json "github.com/goccy/go-json"
)

// ErrDisconnected is wrapped by Signaling errors for requests lost because
// the link dropped. The channel may still reconnect.
var ErrDisconnected = errors.New("disconnected")

type ConnectionEventKind int

const (
	// ConnOpen fires on every successful (re)connection.
	ConnOpen ConnectionEventKind = iota
	// ConnFailed fires when the first dial fails or the reconnect budget is spent.
	ConnFailed
	// ConnDisconnected fires when an open link drops unexpectedly.
	ConnDisconnected
	// ConnClosed fires once, after which the channel is unusable.
	ConnClosed
)

func (k ConnectionEventKind) String() string {
	switch k {
	case ConnOpen:
		return "open"
	case ConnFailed:
		return "failed"
	case ConnDisconnected:
		return "disconnected"
	case ConnClosed:
		return "closed"
	}
	return "unknown"
}

type ConnectionEvent struct {
	Kind ConnectionEventKind
	Err  error
}

// Responder answers a relay-initiated request. Exactly one of Accept or
// Reject takes effect; later calls return an error.
type Responder interface {
	Accept(data any) error
	Reject(code int, reason string) error
}

type NotificationHandler func(data json.RawMessage)

type RequestHandler func(ctx context.Context, data json.RawMessage, res Responder)

// Signaling is the request/notification channel to the media relay.
// Owned by the Room; the Room must Close() it.
type Signaling interface {
	// Open dials the relay and blocks until the first connection is up or failed.
	Open(ctx context.Context) error
	// Request sends method with data and decodes the relay's answer into out
	// (out may be nil).
	Request(ctx context.Context, method string, data, out any) error
	// HandleNotification handlers run in arrival order on the read loop and
	// must not wait on Request.
	HandleNotification(method string, fn NotificationHandler)
	// HandleRequest handlers run on their own goroutine. Unhandled methods
	// are rejected as not implemented.
	HandleRequest(method string, fn RequestHandler)
	OnConnectionEvent(fn func(ConnectionEvent))
	Close()
}
