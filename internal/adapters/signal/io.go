package signal

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/VoiceClient/internal/protocol"
)

const (
	writeWait   = 5 * time.Second
	sendBufSize = 64
)

// wsLink is one websocket connection. The channel replaces it on reconnect.
type wsLink struct {
	ws     *websocket.Conn
	out    chan []byte
	ctx    context.Context
	cancel context.CancelFunc
}

func newLink(parent context.Context, ws *websocket.Conn) *wsLink {
	ctx, cancel := context.WithCancel(parent)
	return &wsLink{
		ws:     ws,
		out:    make(chan []byte, sendBufSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (l *wsLink) send(ctx context.Context, frame []byte) error {
	select {
	case <-l.ctx.Done():
		return ErrDisconnected
	default:
	}
	select {
	case l.out <- frame:
		return nil
	case <-l.ctx.Done():
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *wsLink) close() { l.cancel() }

func (c *Channel) serve(l *wsLink) error {
	g, ctx := errgroup.WithContext(l.ctx)
	g.Go(func() error { return c.writePump(ctx, l) })
	g.Go(func() error { return c.readPump(ctx, l) })
	return g.Wait()
}

func (c *Channel) writePump(ctx context.Context, l *wsLink) error {
	var ping <-chan time.Time
	if c.opts.PingPeriod > 0 {
		t := time.NewTicker(c.opts.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	defer func() { _ = l.ws.Close() }()

	for {
		select {
		case <-ctx.Done():
			_ = l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = l.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case data := <-l.out:
			if err := l.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := l.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error().Err(err).Msg("writePump write error")
				return err
			}
		case <-ping:
			if err := l.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return err
			}
			if err := l.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn().Err(err).Msg("writePump ping error")
				return err
			}
		}
	}
}

func (c *Channel) readPump(ctx context.Context, l *wsLink) error {
	if c.opts.ReadLimit > 0 {
		l.ws.SetReadLimit(c.opts.ReadLimit)
	}
	if c.opts.PingPeriod > 0 {
		pongWait := c.opts.PingPeriod * 10 / 9
		_ = l.ws.SetReadDeadline(time.Now().Add(pongWait))
		l.ws.SetPongHandler(func(string) error {
			return l.ws.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Msg("relay closed the connection")
			}
			return err
		}
		c.handleMessage(l, data)
	}
}

func (c *Channel) handleMessage(l *wsLink, data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Error().Err(err).Msg("bad json")
		return
	}

	switch {
	case msg.Response:
		if msg.OK {
			c.resolve(msg.ID, result{data: msg.Data})
			return
		}
		c.resolve(msg.ID, result{err: &protocol.RequestError{Code: msg.ErrorCode, Reason: msg.ErrorReason}})

	case msg.Notification:
		c.mu.Lock()
		fn := c.notifications[msg.Method]
		c.mu.Unlock()
		if fn == nil {
			c.log.Debug().Str("method", msg.Method).Msg("unhandled notification")
			return
		}
		fn(msg.Data)

	case msg.Request:
		c.mu.Lock()
		fn := c.requests[msg.Method]
		c.mu.Unlock()
		res := &responder{ch: c, link: l, id: msg.ID, method: msg.Method}
		if fn == nil {
			c.log.Warn().Str("method", msg.Method).Msg("unknown relay request")
			if err := res.Reject(protocol.CodeNotImplemented, "Method not implemented"); err != nil && !errors.Is(err, ErrDisconnected) {
				c.log.Error().Err(err).Msg("reject unknown request")
			}
			return
		}
		go fn(c.ctx, msg.Data, res)

	default:
		c.log.Warn().Msg("invalid message")
	}
}
