package signal

import (
	"net"
	"net/url"
	"strconv"

	"github.com/dkeye/VoiceClient/internal/domain"
)

// RoomURL builds the relay's signaling URL for a room and peer.
func RoomURL(host string, port int, secure bool, room domain.RoomID, peer domain.PeerID) string {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	q := url.Values{}
	q.Set("roomId", string(room))
	q.Set("peerId", string(peer))
	u := url.URL{
		Scheme:   scheme,
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/",
		RawQuery: q.Encode(),
	}
	return u.String()
}
