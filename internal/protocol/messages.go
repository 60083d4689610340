package protocol

import "github.com/dkeye/VoiceClient/internal/domain"

type JoinRequest struct {
	DisplayName      string            `json:"displayName"`
	Device           domain.DeviceInfo `json:"device"`
	RtpCapabilities  *RtpCapabilities  `json:"rtpCapabilities,omitempty"`
	SctpCapabilities *SctpCapabilities `json:"sctpCapabilities,omitempty"`
}

type JoinResponse struct {
	Peers []domain.PeerInfo `json:"peers"`
}

type CreateTransportRequest struct {
	ForceTcp         bool              `json:"forceTcp"`
	Producing        bool              `json:"producing"`
	Consuming        bool              `json:"consuming"`
	SctpCapabilities *SctpCapabilities `json:"sctpCapabilities,omitempty"`
}

type ConnectTransportRequest struct {
	TransportID    string         `json:"transportId"`
	DtlsParameters DtlsParameters `json:"dtlsParameters"`
}

type ProduceRequest struct {
	TransportID   string         `json:"transportId"`
	Kind          MediaKind      `json:"kind"`
	RtpParameters RtpParameters  `json:"rtpParameters"`
	AppData       map[string]any `json:"appData,omitempty"`
}

type ProduceResponse struct {
	ID string `json:"id"`
}

// ProducerRequest is the payload of close/pause/resumeProducer.
type ProducerRequest struct {
	ProducerID string `json:"producerId"`
}

type NewConsumerRequest struct {
	PeerID         domain.PeerID  `json:"peerId"`
	ProducerID     string         `json:"producerId"`
	ID             string         `json:"id"`
	Kind           MediaKind      `json:"kind"`
	RtpParameters  RtpParameters  `json:"rtpParameters"`
	Type           string         `json:"type,omitempty"`
	AppData        map[string]any `json:"appData,omitempty"`
	ProducerPaused bool           `json:"producerPaused"`
}

type PeerClosedNotification struct {
	PeerID domain.PeerID `json:"peerId"`
}

// PeerProducerNotification is the payload of producerPaused/producerResumed.
type PeerProducerNotification struct {
	PeerID     domain.PeerID `json:"peerId"`
	ProducerID string        `json:"producerId,omitempty"`
}

// ConsumerNotification is the payload of consumerPaused/Resumed/Closed.
type ConsumerNotification struct {
	ConsumerID string `json:"consumerId"`
}

type ActiveSpeakerNotification struct {
	PeerID domain.PeerID `json:"peerId,omitempty"`
	Volume float64       `json:"volume,omitempty"`
}
