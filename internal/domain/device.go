package domain

// DeviceInfo identifies the client software of a peer.
type DeviceInfo struct {
	Flag    string `json:"flag"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultDevice is what this client announces when nothing is configured.
func DefaultDevice() DeviceInfo {
	return DeviceInfo{Flag: "go", Name: "voice-client", Version: "1.0.0"}
}
