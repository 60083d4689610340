package protocol

// Client -> relay requests.
const (
	MethodGetRouterRtpCapabilities = "getRouterRtpCapabilities"
	MethodJoin                     = "join"
	MethodCreateWebRtcTransport    = "createWebRtcTransport"
	MethodConnectWebRtcTransport   = "connectWebRtcTransport"
	MethodProduce                  = "produce"
	MethodCloseProducer            = "closeProducer"
	MethodPauseProducer            = "pauseProducer"
	MethodResumeProducer           = "resumeProducer"
)

// Relay -> client requests.
const (
	MethodNewConsumer = "newConsumer"
)

// Relay -> client notifications.
const (
	NotificationNewPeer         = "newPeer"
	NotificationPeerClosed      = "peerClosed"
	NotificationProducerPaused  = "producerPaused"
	NotificationProducerResumed = "producerResumed"
	NotificationConsumerPaused  = "consumerPaused"
	NotificationConsumerResumed = "consumerResumed"
	NotificationConsumerClosed  = "consumerClosed"
	NotificationProducerScore   = "producerScore"
	NotificationActiveSpeaker   = "activeSpeaker"
)

// Reject codes sent back to the relay.
const (
	CodeForbidden      = 403
	CodeNotImplemented = 404
	CodeInternal       = 500
)
