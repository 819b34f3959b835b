package webrtc

import (
	"strings"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

// LinkStats summarizes one batch of RTCP feedback.
type LinkStats struct {
	Reports      int
	FractionLost float64 // 0..1, averaged over reports
	Jitter       uint32  // averaged, in RTP timestamp units
	ReportDelay  time.Duration
	NACKs        int
	PLIs         int
}

func SummarizeRTCP(packets []rtcp.Packet) LinkStats {
	var (
		stats      LinkStats
		totalLost  int
		totalJit   uint64
		totalDelay time.Duration
		delays     int
	)
	for _, packet := range packets {
		switch p := packet.(type) {
		case *rtcp.ReceiverReport:
			for _, report := range p.Reports {
				stats.Reports++
				totalLost += int(report.FractionLost)
				totalJit += uint64(report.Jitter)
				if report.LastSenderReport != 0 && report.Delay != 0 {
					totalDelay += time.Duration(report.Delay) * time.Second / 65536
					delays++
				}
			}
		case *rtcp.TransportLayerNack:
			for _, pair := range p.Nacks {
				stats.NACKs += len(pair.PacketList())
			}
		case *rtcp.PictureLossIndication:
			stats.PLIs++
		}
	}
	if stats.Reports > 0 {
		stats.FractionLost = float64(totalLost) / float64(stats.Reports) / 256.0
		stats.Jitter = uint32(totalJit / uint64(stats.Reports))
	}
	if delays > 0 {
		stats.ReportDelay = totalDelay / time.Duration(delays)
	}
	return stats
}

// IsKeyframe reports whether pkt starts a keyframe for the given codec.
func IsKeyframe(mimeType string, pkt *rtp.Packet) bool {
	if pkt == nil || len(pkt.Payload) == 0 {
		return false
	}
	switch {
	case strings.EqualFold(mimeType, webrtc.MimeTypeVP8):
		return isVP8Keyframe(pkt.Payload)
	case strings.EqualFold(mimeType, webrtc.MimeTypeH264):
		return isH264Keyframe(pkt.Payload)
	default:
		return false
	}
}

// isVP8Keyframe parses the VP8 payload descriptor (RFC 7741) and checks the
// inverse key frame flag of the first partition's header.
func isVP8Keyframe(payload []byte) bool {
	b := payload[0]
	start := b&0x10 != 0
	partition := b & 0x07
	if !start || partition != 0 {
		return false
	}
	i := 1
	if b&0x80 != 0 {
		if len(payload) <= i {
			return false
		}
		ext := payload[i]
		i++
		if ext&0x80 != 0 { // picture id
			if len(payload) <= i {
				return false
			}
			if payload[i]&0x80 != 0 {
				i += 2
			} else {
				i++
			}
		}
		if ext&0x40 != 0 { // tl0picidx
			i++
		}
		if ext&0x30 != 0 { // tid/keyidx
			i++
		}
	}
	if len(payload) <= i {
		return false
	}
	return payload[i]&0x01 == 0
}

// isH264Keyframe detects IDR slices and SPS, directly or inside STAP-A and
// the first FU-A fragment.
func isH264Keyframe(payload []byte) bool {
	const (
		naluIDR  = 5
		naluSPS  = 7
		naluSTAP = 24
		naluFU   = 28
	)
	nalType := payload[0] & 0x1F
	switch nalType {
	case naluIDR, naluSPS:
		return true
	case naluSTAP:
		for i := 1; i+2 < len(payload); {
			size := int(payload[i])<<8 | int(payload[i+1])
			i += 2
			if i >= len(payload) {
				return false
			}
			if t := payload[i] & 0x1F; t == naluIDR || t == naluSPS {
				return true
			}
			i += size
		}
	case naluFU:
		if len(payload) < 2 {
			return false
		}
		startBit := payload[1]&0x80 != 0
		return startBit && payload[1]&0x1F == naluIDR
	}
	return false
}
