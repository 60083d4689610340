package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/VoiceClient/internal/core"
)

const (
	sampleRate = 48000
	channels   = 2
)

// Manager runs one sink per consumer. With an empty dir the sinks drain the
// tracks without writing anything.
type Manager struct {
	dir       string
	newWriter func(path string) (Writer, error)

	mu      sync.RWMutex
	players map[string]*player
	wg      conc.WaitGroup
}

func NewManager(dir string) *Manager {
	return &Manager{
		dir:       dir,
		newWriter: newOggWriter,
		players:   make(map[string]*player),
	}
}

func newOggWriter(path string) (Writer, error) {
	w, err := oggwriter.New(path, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Start creates a sink for consumer and starts its loop. An existing sink for
// the same consumer id is replaced.
func (m *Manager) Start(ctx context.Context, peerID string, consumer core.Consumer) error {
	logger := log.With().
		Str("module", "playback").
		Str("consumer_id", consumer.ID()).
		Str("peer_id", peerID).
		Logger()

	w, err := m.writerFor(peerID, consumer.ID())
	if err != nil {
		return err
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &player{src: consumer.Track(), sink: newSink(consumer.ID(), peerID, w), cancel: cancel}
	if consumer.Paused() {
		p.sink.MarkMuted()
	}

	m.mu.Lock()
	if old, ok := m.players[consumer.ID()]; ok {
		logger.Info().Msg("replacing existing sink")
		old.sink.MarkDelete()
		old.cancel()
	}
	m.players[consumer.ID()] = p
	m.mu.Unlock()

	logger.Info().Msg("starting playback loop")
	m.wg.Go(func() {
		p.loop(pctx, &logger)
		m.forget(consumer.ID(), p)
	})
	return nil
}

func (m *Manager) writerFor(peerID, consumerID string) (Writer, error) {
	if m.dir == "" {
		return discard{}, nil
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("playback dir: %w", err)
	}
	return m.newWriter(filepath.Join(m.dir, fileName(peerID, consumerID)))
}

func fileName(peerID, consumerID string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == '/' || r == '\\' || r == os.PathSeparator {
				return '_'
			}
			return r
		}, s)
	}
	return clean(peerID) + "-" + clean(consumerID) + ".ogg"
}

// forget drops p from the index unless it was already replaced.
func (m *Manager) forget(consumerID string, p *player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[consumerID] == p {
		delete(m.players, consumerID)
	}
}

// Stop marks the consumer's sink for deletion. The loop exits on its next
// packet or when the track ends.
func (m *Manager) Stop(consumerID string) {
	m.mu.Lock()
	p, ok := m.players[consumerID]
	if ok {
		delete(m.players, consumerID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	p.sink.MarkDelete()
	p.cancel()
}

// SetPeerMuted mutes or unmutes every sink fed by peerID.
func (m *Manager) SetPeerMuted(peerID string, muted bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.players {
		if p.sink.PeerID != peerID {
			continue
		}
		if muted {
			p.sink.MarkMuted()
		} else {
			p.sink.MarkOk()
		}
	}
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	players := m.players
	m.players = make(map[string]*player)
	m.mu.Unlock()
	for _, p := range players {
		p.sink.MarkDelete()
		p.cancel()
	}
}

// Sink returns the live sink for consumerID.
func (m *Manager) Sink(consumerID string) (*Sink, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[consumerID]
	if !ok {
		return nil, false
	}
	return p.sink, true
}

func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// Wait blocks until every loop has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}
