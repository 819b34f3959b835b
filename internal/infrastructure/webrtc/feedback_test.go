package webrtc

import (
	"testing"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeRTCP(t *testing.T) {
	packets := []rtcp.Packet{
		&rtcp.ReceiverReport{Reports: []rtcp.ReceptionReport{
			{FractionLost: 64, Jitter: 100, LastSenderReport: 1, Delay: 65536},
			{FractionLost: 0, Jitter: 300},
		}},
		&rtcp.TransportLayerNack{Nacks: []rtcp.NackPair{{PacketID: 10, LostPackets: 0x3}}},
		&rtcp.PictureLossIndication{MediaSSRC: 1},
		&rtcp.PictureLossIndication{MediaSSRC: 1},
	}

	stats := SummarizeRTCP(packets)
	assert.Equal(t, 2, stats.Reports)
	assert.InDelta(t, 0.125, stats.FractionLost, 0.0001)
	assert.Equal(t, uint32(200), stats.Jitter)
	assert.Equal(t, time.Second, stats.ReportDelay)
	assert.Equal(t, 3, stats.NACKs)
	assert.Equal(t, 2, stats.PLIs)
}

func TestSummarizeRTCP_Empty(t *testing.T) {
	assert.Equal(t, LinkStats{}, SummarizeRTCP(nil))
}

func TestIsKeyframe_VP8(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"keyframe without extensions", []byte{0x10, 0x00}, true},
		{"interframe", []byte{0x10, 0x01}, false},
		{"not partition start", []byte{0x00, 0x00}, false},
		{"keyframe with 15-bit picture id", []byte{0x90, 0x80, 0x81, 0x23, 0x00}, true},
		{"keyframe with 7-bit picture id and tl0", []byte{0x90, 0xC0, 0x05, 0x01, 0x00}, true},
		{"truncated extension", []byte{0x90, 0x80}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKeyframe(webrtc.MimeTypeVP8, &rtp.Packet{Payload: tt.payload}))
		})
	}
}

func TestIsKeyframe_H264(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    bool
	}{
		{"idr", []byte{0x65, 0x88}, true},
		{"sps", []byte{0x67, 0x42}, true},
		{"non-idr slice", []byte{0x41, 0x9a}, false},
		{"stap-a with sps", []byte{0x78, 0x00, 0x02, 0x67, 0x42}, true},
		{"fu-a idr start", []byte{0x7c, 0x85}, true},
		{"fu-a idr continuation", []byte{0x7c, 0x05}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKeyframe(webrtc.MimeTypeH264, &rtp.Packet{Payload: tt.payload}))
		})
	}
}

func TestIsKeyframe_UnknownCodecOrEmpty(t *testing.T) {
	assert.False(t, IsKeyframe(webrtc.MimeTypeOpus, &rtp.Packet{Payload: []byte{0x10}}))
	assert.False(t, IsKeyframe(webrtc.MimeTypeVP8, &rtp.Packet{}))
	assert.False(t, IsKeyframe(webrtc.MimeTypeVP8, nil))
}
