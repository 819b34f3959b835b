package webrtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	rolePublisher  = "publisher"
	roleSubscriber = "subscriber"

	kindAudio = "audio"
	kindVideo = "video"

	directionInbound = "inbound"
)

// Peer is one negotiated connection. Candidates are gathered before the offer
// is returned, so no trickle ICE exchange is needed.
type Peer struct {
	role   string
	pc     *webrtc.PeerConnection
	logger *zap.SugaredLogger

	done      chan struct{}
	closeOnce sync.Once
	keyframes atomic.Int64
}

func newPeer(pc *webrtc.PeerConnection, role string, logger *zap.SugaredLogger) *Peer {
	p := &Peer{
		role:   role,
		pc:     pc,
		logger: logger,
		done:   make(chan struct{}),
	}
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Infow("Media connection state changed", "role", role, "state", state.String())
	})
	return p
}

func (p *Peer) Offer(ctx context.Context) (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return "", fmt.Errorf("ice gathering: %w", ctx.Err())
	}
	return p.pc.LocalDescription().SDP, nil
}

func (p *Peer) Answer(sdp string) error {
	err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
	if err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	return nil
}

func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.pc.Close()
	})
	return err
}

func (p *Peer) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

// Keyframes is the number of keyframe packets received.
func (p *Peer) Keyframes() int64 {
	return p.keyframes.Load()
}
