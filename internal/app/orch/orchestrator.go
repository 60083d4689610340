package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/app/projection"
	"github.com/dkeye/VoiceClient/internal/app/room"
	"github.com/dkeye/VoiceClient/internal/core"
)

// Session is the part of *room.Room the orchestrator drives.
type Session interface {
	Subscribe(fn func(room.Event)) (unsubscribe func())
	Join(ctx context.Context) error
	Close()
	Done() <-chan struct{}
	EnableMic(ctx context.Context) error
	DisableMic(ctx context.Context) error
	MuteMic(ctx context.Context) error
	UnmuteMic(ctx context.Context) error
	MicEnabled() bool
	MicMuted() bool
}

// Playback attaches sinks to consumers.
type Playback interface {
	Start(ctx context.Context, peerID string, consumer core.Consumer) error
	Stop(consumerID string)
	SetPeerMuted(peerID string, muted bool)
	StopAll()
}

type Orchestrator struct {
	Session  Session
	Playback Playback
	Store    *projection.Store

	mu    sync.Mutex
	ctx   context.Context
	unsub func()
}

// Start binds the session's events to playback and the store, then joins.
// A failed join leaves the session closed.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	o.ctx = ctx
	if o.Store != nil {
		o.Store.Attach(o.Session)
	}
	o.unsub = o.Session.Subscribe(o.OnEvent)
	o.mu.Unlock()

	log.Info().Str("module", "orch").Msg("joining room")
	return o.Session.Join(ctx)
}

// Stop closes the session and waits for its final events.
func (o *Orchestrator) Stop() {
	o.Session.Close()
	<-o.Session.Done()

	o.mu.Lock()
	unsub := o.unsub
	o.unsub = nil
	o.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if o.Store != nil {
		o.Store.Detach()
	}
	if o.Playback != nil {
		o.Playback.StopAll()
	}
}

func (o *Orchestrator) context() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}
