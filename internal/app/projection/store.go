// Package projection folds Room events into a read-only view of the session.
package projection

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/VoiceClient/internal/app/room"
	"github.com/dkeye/VoiceClient/internal/domain"
)

type Subscriber interface {
	Subscribe(fn func(room.Event)) (unsubscribe func())
}

type Mic struct {
	Enabled bool `json:"enabled"`
	Muted   bool `json:"muted"`
}

type Peer struct {
	ID          domain.PeerID `json:"id"`
	DisplayName string        `json:"displayName"`
	MicPaused   bool          `json:"micPaused"`
}

// Snapshot is a copy; mutating it never affects the store.
type Snapshot struct {
	RoomID        domain.RoomID `json:"roomId"`
	Self          domain.PeerID `json:"self"`
	State         string        `json:"state"`
	Mic           Mic           `json:"mic"`
	Peers         []Peer        `json:"peers"`
	Consumers     int           `json:"consumers"`
	ActiveSpeaker domain.PeerID `json:"activeSpeaker,omitempty"`
	LastError     string        `json:"lastError,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

type Store struct {
	mu        sync.RWMutex
	roomID    domain.RoomID
	self      domain.PeerID
	state     string
	mic       Mic
	peers     map[domain.PeerID]*Peer
	order     []domain.PeerID
	consumers map[string]domain.PeerID
	speaker   domain.PeerID
	lastErr   string
	updated   time.Time

	unsubscribe func()
}

func NewStore(roomID domain.RoomID, self domain.PeerID) *Store {
	return &Store{
		roomID:    roomID,
		self:      self,
		state:     room.StateIdle.String(),
		peers:     make(map[domain.PeerID]*Peer),
		consumers: make(map[string]domain.PeerID),
		updated:   time.Now(),
	}
}

// Attach subscribes the store to src. A second Attach replaces the first.
func (s *Store) Attach(src Subscriber) {
	unsub := src.Subscribe(s.Apply)
	s.mu.Lock()
	prev := s.unsubscribe
	s.unsubscribe = unsub
	s.mu.Unlock()
	if prev != nil {
		prev()
	}
}

func (s *Store) Detach() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// Apply folds one event into the view.
func (s *Store) Apply(ev room.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = time.Now()

	switch e := ev.(type) {
	case room.Connecting:
		s.state = room.StateConnecting.String()
	case room.Connected:
		s.state = room.StateConnected.String()
		s.lastErr = ""
	case room.ConnectionFailed:
		s.lastErr = errString(e.Err)
	case room.Disconnected:
		s.state = room.StateDisconnected.String()
	case room.Closed:
		s.state = room.StateClosed.String()
		s.mic = Mic{}
		s.resetRoster()
	case room.Error:
		s.lastErr = errString(e.Err)
	case room.NewPeer:
		if _, ok := s.peers[e.Peer.ID]; !ok {
			s.order = append(s.order, e.Peer.ID)
		}
		s.peers[e.Peer.ID] = &Peer{ID: e.Peer.ID, DisplayName: e.Peer.DisplayName}
	case room.PeerClosed:
		s.removePeer(e.PeerID)
	case room.MicEnabled:
		s.mic = Mic{Enabled: true}
	case room.MicDisabled:
		s.mic = Mic{}
	case room.MicMuted:
		s.mic.Muted = true
	case room.MicUnmuted:
		s.mic.Muted = false
	case room.NewAudioConsumer:
		s.consumers[e.Consumer.ID()] = e.PeerID
	case room.ConsumerClosed:
		delete(s.consumers, e.ConsumerID)
	case room.PeerProducerPaused:
		s.setPaused(e.PeerID, true)
	case room.PeerProducerResumed:
		s.setPaused(e.PeerID, false)
	case room.ActiveSpeaker:
		s.speaker = e.PeerID
	default:
		log.Debug().Str("module", "projection").Str("kind", string(ev.Kind())).Msg("unhandled event")
	}
}

func (s *Store) setPaused(id domain.PeerID, paused bool) {
	if p, ok := s.peers[id]; ok {
		p.MicPaused = paused
	}
}

func (s *Store) removePeer(id domain.PeerID) {
	delete(s.peers, id)
	s.order = slices.DeleteFunc(s.order, func(pid domain.PeerID) bool { return pid == id })
	for cid, pid := range s.consumers {
		if pid == id {
			delete(s.consumers, cid)
		}
	}
	if s.speaker == id {
		s.speaker = ""
	}
}

func (s *Store) resetRoster() {
	s.peers = make(map[domain.PeerID]*Peer)
	s.order = nil
	s.consumers = make(map[string]domain.PeerID)
	s.speaker = ""
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		RoomID:        s.roomID,
		Self:          s.self,
		State:         s.state,
		Mic:           s.mic,
		Peers:         make([]Peer, 0, len(s.order)),
		Consumers:     len(s.consumers),
		ActiveSpeaker: s.speaker,
		LastError:     s.lastErr,
		UpdatedAt:     s.updated,
	}
	for _, id := range s.order {
		snap.Peers = append(snap.Peers, *s.peers[id])
	}
	return snap
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
