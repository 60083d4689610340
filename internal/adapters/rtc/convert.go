package rtc

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/VoiceClient/internal/protocol"
)

// fmtpLine renders codec parameters as an SDP fmtp value with sorted keys.
func fmtpLine(params map[string]any) string {
	keys := slices.Sorted(maps.Keys(params))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+fmtpValue(params[k]))
	}
	return strings.Join(parts, ";")
}

func fmtpValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

func toFeedback(fb []protocol.RtcpFeedback) []webrtc.RTCPFeedback {
	out := make([]webrtc.RTCPFeedback, 0, len(fb))
	for _, f := range fb {
		out = append(out, webrtc.RTCPFeedback{Type: f.Type, Parameter: f.Parameter})
	}
	return out
}

func toCodecParameters(c protocol.RtpCodecCapability) webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     c.MimeType,
			ClockRate:    c.ClockRate,
			Channels:     c.Channels,
			SDPFmtpLine:  fmtpLine(c.Parameters),
			RTCPFeedback: toFeedback(c.RtcpFeedback),
		},
		PayloadType: webrtc.PayloadType(c.PreferredPayloadType),
	}
}

func toCodecType(kind protocol.MediaKind) webrtc.RTPCodecType {
	if kind == protocol.MediaKindVideo {
		return webrtc.RTPCodecTypeVideo
	}
	return webrtc.RTPCodecTypeAudio
}

func fromCodecType(t webrtc.RTPCodecType) protocol.MediaKind {
	if t == webrtc.RTPCodecTypeVideo {
		return protocol.MediaKindVideo
	}
	return protocol.MediaKindAudio
}

func toICECandidates(in []protocol.IceCandidate) ([]webrtc.ICECandidate, error) {
	out := make([]webrtc.ICECandidate, 0, len(in))
	for _, c := range in {
		proto, err := webrtc.NewICEProtocol(c.Protocol)
		if err != nil {
			return nil, err
		}
		typ, err := webrtc.NewICECandidateType(c.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, webrtc.ICECandidate{
			Foundation: c.Foundation,
			Priority:   c.Priority,
			Address:    c.Host(),
			Protocol:   proto,
			Port:       c.Port,
			Typ:        typ,
			Component:  1,
			TCPType:    c.TCPType,
		})
	}
	return out, nil
}

func toICEParameters(p protocol.IceParameters) webrtc.ICEParameters {
	return webrtc.ICEParameters{
		UsernameFragment: p.UsernameFragment,
		Password:         p.Password,
		ICELite:          p.IceLite,
	}
}

func toDTLSFingerprints(in []protocol.DtlsFingerprint) []webrtc.DTLSFingerprint {
	out := make([]webrtc.DTLSFingerprint, 0, len(in))
	for _, f := range in {
		out = append(out, webrtc.DTLSFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

func fromDTLSParameters(p webrtc.DTLSParameters, role webrtc.DTLSRole) protocol.DtlsParameters {
	out := protocol.DtlsParameters{Role: role.String()}
	for _, f := range p.Fingerprints {
		out.Fingerprints = append(out.Fingerprints, protocol.DtlsFingerprint{Algorithm: f.Algorithm, Value: f.Value})
	}
	return out
}

func toICEServers(urls []string) []webrtc.ICEServer {
	if len(urls) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: slices.Clone(urls)}}
}

// opusParameters merges the encoder options into the relay's Opus parameters.
func opusParameters(base map[string]any, o protocol.CodecOptions) map[string]any {
	out := make(map[string]any, len(base)+4)
	maps.Copy(out, base)
	out["stereo"] = boolFlag(o.OpusStereo)
	out["sprop-stereo"] = boolFlag(o.OpusStereo)
	out["usedtx"] = boolFlag(o.OpusDtx)
	out["useinbandfec"] = boolFlag(o.OpusFec)
	return out
}

func opusFeedback(base []protocol.RtcpFeedback, o protocol.CodecOptions) []protocol.RtcpFeedback {
	out := make([]protocol.RtcpFeedback, 0, len(base))
	for _, fb := range base {
		if fb.Type == "nack" && !o.OpusNack {
			continue
		}
		out = append(out, fb)
	}
	return out
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}
