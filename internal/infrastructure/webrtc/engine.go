// Package webrtc negotiates the media peer connections behind published and
// subscribed streams.
package webrtc

import (
	"fmt"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/infrastructure/signal"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

type Config struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	// PLIInterval is how often subscribers request a video keyframe.
	PLIInterval time.Duration
}

// PacketObserver receives media packet counts.
type PacketObserver interface {
	RecordMediaPackets(direction, kind string, n int)
}

// Engine implements signal.MediaEngine with pion peer connections.
type Engine struct {
	cfg      Config
	api      *webrtc.API
	observer PacketObserver
	logger   *zap.SugaredLogger
}

func NewEngine(cfg Config, observer PacketObserver, logger *zap.SugaredLogger) (*Engine, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	settings := webrtc.SettingEngine{}
	if cfg.PortRange.Min > 0 && cfg.PortRange.Max > 0 {
		if err := settings.SetEphemeralUDPPortRange(cfg.PortRange.Min, cfg.PortRange.Max); err != nil {
			return nil, fmt.Errorf("invalid port range: %w", err)
		}
	}
	if cfg.PLIInterval <= 0 {
		cfg.PLIInterval = 3 * time.Second
	}

	return &Engine{
		cfg:      cfg,
		api:      webrtc.NewAPI(webrtc.WithMediaEngine(media), webrtc.WithSettingEngine(settings)),
		observer: observer,
		logger:   logger,
	}, nil
}

func (e *Engine) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{
		ICEServers:   e.cfg.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlan,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return pc, nil
}

// NewPublisherPeer creates a send-only connection with one local track per
// enabled media kind.
func (e *Engine) NewPublisherPeer(opts domain.PublisherOptions) (signal.MediaPeer, error) {
	pc, err := e.newPeerConnection()
	if err != nil {
		return nil, err
	}
	peer := newPeer(pc, rolePublisher, e.logger)

	tracks := []struct {
		enabled bool
		kind    string
		mime    string
	}{
		{opts.PublishAudio, kindAudio, webrtc.MimeTypeOpus},
		{opts.PublishVideo, kindVideo, webrtc.MimeTypeVP8},
	}
	for _, t := range tracks {
		if !t.enabled {
			continue
		}
		track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: t.mime}, t.kind, "callbridge")
		if err != nil {
			_ = peer.Close()
			return nil, fmt.Errorf("failed to create %s track: %w", t.kind, err)
		}
		transceiver, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		})
		if err != nil {
			_ = peer.Close()
			return nil, fmt.Errorf("failed to add %s track: %w", t.kind, err)
		}
		go e.readSenderRTCP(peer, t.kind, transceiver.Sender())
	}
	return peer, nil
}

// NewSubscriberPeer creates a receive-only connection for the stream's media
// kinds, or for both kinds when the stream advertises neither.
func (e *Engine) NewSubscriberPeer(stream *domain.Stream) (signal.MediaPeer, error) {
	pc, err := e.newPeerConnection()
	if err != nil {
		return nil, err
	}
	peer := newPeer(pc, roleSubscriber, e.logger)

	kinds := []webrtc.RTPCodecType{}
	if stream == nil || stream.HasAudio || !stream.HasVideo {
		kinds = append(kinds, webrtc.RTPCodecTypeAudio)
	}
	if stream == nil || stream.HasVideo || !stream.HasAudio {
		kinds = append(kinds, webrtc.RTPCodecTypeVideo)
	}
	for _, kind := range kinds {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			_ = peer.Close()
			return nil, fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		e.logger.Infow("Subscriber track started",
			"track_id", track.ID(),
			"codec", track.Codec().MimeType,
		)
		go e.readTrack(peer, track)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go e.requestKeyframes(peer, track)
		}
	})
	return peer, nil
}

// readTrack drains a remote track, counting packets and keyframes.
func (e *Engine) readTrack(peer *Peer, track *webrtc.TrackRemote) {
	kind := track.Kind().String()
	mime := track.Codec().MimeType
	const batch = 100
	count := 0
	flush := func() {
		if count > 0 && e.observer != nil {
			e.observer.RecordMediaPackets(directionInbound, kind, count)
		}
		count = 0
	}
	defer flush()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			e.logger.Debugw("Remote track ended", "track_id", track.ID(), "error", err)
			return
		}
		if IsKeyframe(mime, pkt) {
			peer.keyframes.Add(1)
		}
		count++
		if count == batch {
			flush()
		}
	}
}

func (e *Engine) requestKeyframes(peer *Peer, track *webrtc.TrackRemote) {
	ticker := time.NewTicker(e.cfg.PLIInterval)
	defer ticker.Stop()

	for {
		select {
		case <-peer.done:
			return
		case <-ticker.C:
			pli := &rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())}
			if err := peer.pc.WriteRTCP([]rtcp.Packet{pli}); err != nil {
				e.logger.Debugw("Keyframe request failed", "track_id", track.ID(), "error", err)
				return
			}
		}
	}
}

// readSenderRTCP drains receiver feedback for a published track.
func (e *Engine) readSenderRTCP(peer *Peer, kind string, sender *webrtc.RTPSender) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		stats := SummarizeRTCP(packets)
		if stats.PLIs > 0 {
			e.logger.Debugw("Keyframe requested by receiver", "kind", kind, "plis", stats.PLIs)
		}
		if stats.Reports > 0 {
			e.logger.Debugw("Receiver report",
				"kind", kind,
				"role", peer.role,
				"fraction_lost", stats.FractionLost,
				"jitter", stats.Jitter,
				"report_delay", stats.ReportDelay,
				"nacks", stats.NACKs,
			)
		}
	}
}
