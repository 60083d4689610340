package protocol

import "strings"

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

type RtcpFeedback struct {
	Type      string `json:"type"`
	Parameter string `json:"parameter,omitempty"`
}

type RtpCodecCapability struct {
	Kind                 MediaKind      `json:"kind"`
	MimeType             string         `json:"mimeType"`
	PreferredPayloadType uint8          `json:"preferredPayloadType,omitempty"`
	ClockRate            uint32         `json:"clockRate"`
	Channels             uint16         `json:"channels,omitempty"`
	Parameters           map[string]any `json:"parameters,omitempty"`
	RtcpFeedback         []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type RtpHeaderExtension struct {
	Kind             MediaKind `json:"kind"`
	URI              string    `json:"uri"`
	PreferredID      int       `json:"preferredId"`
	PreferredEncrypt bool      `json:"preferredEncrypt,omitempty"`
	Direction        string    `json:"direction,omitempty"`
}

type RtpCapabilities struct {
	Codecs           []RtpCodecCapability `json:"codecs"`
	HeaderExtensions []RtpHeaderExtension `json:"headerExtensions,omitempty"`
}

// CodecsOfKind returns the codecs for kind, skipping retransmission entries.
func (c RtpCapabilities) CodecsOfKind(kind MediaKind) []RtpCodecCapability {
	var out []RtpCodecCapability
	for _, codec := range c.Codecs {
		if codec.Kind != kind || IsRtxMimeType(codec.MimeType) {
			continue
		}
		out = append(out, codec)
	}
	return out
}

func IsRtxMimeType(mime string) bool {
	return strings.HasSuffix(strings.ToLower(mime), "/rtx")
}

type RtpCodecParameters struct {
	MimeType     string         `json:"mimeType"`
	PayloadType  uint8          `json:"payloadType"`
	ClockRate    uint32         `json:"clockRate"`
	Channels     uint16         `json:"channels,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	RtcpFeedback []RtcpFeedback `json:"rtcpFeedback,omitempty"`
}

type RtpHeaderExtensionParameters struct {
	URI     string `json:"uri"`
	ID      int    `json:"id"`
	Encrypt bool   `json:"encrypt,omitempty"`
}

type RtpEncodingParameters struct {
	Ssrc uint32 `json:"ssrc,omitempty"`
	Dtx  bool   `json:"dtx,omitempty"`
}

type RtcpParameters struct {
	Cname       string `json:"cname,omitempty"`
	ReducedSize bool   `json:"reducedSize"`
}

type RtpParameters struct {
	Mid              string                         `json:"mid,omitempty"`
	Codecs           []RtpCodecParameters           `json:"codecs"`
	HeaderExtensions []RtpHeaderExtensionParameters `json:"headerExtensions,omitempty"`
	Encodings        []RtpEncodingParameters        `json:"encodings,omitempty"`
	Rtcp             RtcpParameters                 `json:"rtcp"`
}

// PrimaryCodec returns the first media codec, skipping retransmission entries.
func (p RtpParameters) PrimaryCodec() (RtpCodecParameters, bool) {
	for _, c := range p.Codecs {
		if !IsRtxMimeType(c.MimeType) {
			return c, true
		}
	}
	return RtpCodecParameters{}, false
}

// CodecOptions tune the Opus encoder parameters announced for a producer.
type CodecOptions struct {
	OpusStereo bool
	OpusDtx    bool
	OpusFec    bool
	OpusNack   bool
}

// DefaultMicCodecOptions is mono speech with DTX, in-band FEC and NACK.
func DefaultMicCodecOptions() CodecOptions {
	return CodecOptions{OpusStereo: false, OpusDtx: true, OpusFec: true, OpusNack: true}
}
