// Package signal implements the video SDK on top of a websocket signaling
// server, with optional WebRTC media negotiated through the same socket.
package signal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"
	"callbridge/pkg/retry"
	"callbridge/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Config struct {
	URL            string
	PingInterval   time.Duration
	PongTimeout    time.Duration
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	Reconnect      retry.Config
}

func DefaultConfig() Config {
	return Config{
		URL:            "ws://localhost:8081/ws",
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		RequestTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
		Reconnect:      retry.DefaultConfig(),
	}
}

// MediaEngine creates the peer connections that carry published and
// subscribed media.
type MediaEngine interface {
	NewPublisherPeer(opts domain.PublisherOptions) (MediaPeer, error)
	NewSubscriberPeer(stream *domain.Stream) (MediaPeer, error)
}

// MediaPeer is one negotiated peer connection.
type MediaPeer interface {
	// Offer returns the local description once candidate gathering is done.
	Offer(ctx context.Context) (string, error)
	Answer(sdp string) error
	Close() error
}

// Observer receives signaling measurements.
type Observer interface {
	RecordSignalRequest(messageType string, duration time.Duration)
	RecordReconnect(outcome string)
}

type nopObserver struct{}

func (nopObserver) RecordSignalRequest(string, time.Duration) {}
func (nopObserver) RecordReconnect(string)                    {}

// SDK implements ports.VideoSDK. Completion callbacks and session events of
// every session it creates are delivered on one dispatch goroutine.
type SDK struct {
	cfg      Config
	dialer   *websocket.Dialer
	media    MediaEngine
	observer Observer
	logger   *zap.SugaredLogger
	events   *dispatcher
}

// NewSDK builds an SDK. media may be nil, in which case publish and subscribe
// requests carry no SDP.
func NewSDK(cfg Config, media MediaEngine, observer Observer, logger *zap.SugaredLogger) *SDK {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &SDK{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.RequestTimeout,
		},
		media:    media,
		observer: observer,
		logger:   logger,
		events:   newDispatcher(logger),
	}
}

// Close delivers pending callbacks and stops the dispatch goroutine.
func (s *SDK) Close() {
	s.events.close()
}

func (s *SDK) InitSession(apiKey, sessionID string) (ports.VideoSession, error) {
	if apiKey == "" || sessionID == "" {
		return nil, fmt.Errorf("%w: api key and session id are required", domain.ErrInvalidParameters)
	}
	return newSession(s, apiKey, sessionID), nil
}

func (s *SDK) InitPublisher(target string, opts domain.PublisherOptions, done func(error)) ports.Publisher {
	pub := &Publisher{
		id:     utils.GeneratePublisherID(),
		target: target,
		opts:   opts,
		sdk:    s,
	}

	go func() {
		var (
			media MediaPeer
			err   error
		)
		if s.media != nil {
			media, err = s.media.NewPublisherPeer(opts)
		}
		if err == nil {
			err = pub.attachMedia(media)
		}
		if err != nil {
			s.logger.Warnw("Publisher initialization failed", "publisher_id", pub.id, "error", err)
		}
		s.complete(done, err)
	}()
	return pub
}

func (s *SDK) complete(done func(error), err error) {
	if done == nil {
		return
	}
	s.events.post(func() { done(err) })
}

func (s *SDK) dial(ctx context.Context, sessionID string) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid signal url: %w", err)
	}
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()

	conn, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	return conn, nil
}

// Publisher implements ports.Publisher.
type Publisher struct {
	id     string
	target string
	opts   domain.PublisherOptions
	sdk    *SDK

	mu        sync.Mutex
	media     MediaPeer
	destroyed bool
	session   *Session
	streamID  domain.StreamID
}

func (p *Publisher) ID() string                       { return p.id }
func (p *Publisher) Target() string                   { return p.target }
func (p *Publisher) Options() domain.PublisherOptions { return p.opts }

func (p *Publisher) StreamID() domain.StreamID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamID
}

func (p *Publisher) attachMedia(media MediaPeer) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		if media != nil {
			_ = media.Close()
		}
		return domain.ErrPublisherDestroyed
	}
	p.media = media
	p.mu.Unlock()
	return nil
}

func (p *Publisher) offer(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return "", domain.ErrPublisherDestroyed
	}
	media := p.media
	p.mu.Unlock()
	if media == nil {
		return "", nil
	}
	return media.Offer(ctx)
}

func (p *Publisher) published(session *Session, streamID domain.StreamID, answer string) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return domain.ErrPublisherDestroyed
	}
	p.session = session
	p.streamID = streamID
	media := p.media
	p.mu.Unlock()

	if media != nil && answer != "" {
		return media.Answer(answer)
	}
	return nil
}

// Destroy stops media and unpublishes the stream. Repeated calls are no-ops.
func (p *Publisher) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	media, session, streamID := p.media, p.session, p.streamID
	p.mu.Unlock()

	if media != nil {
		if err := media.Close(); err != nil {
			p.sdk.logger.Debugw("Closing publisher media failed", "publisher_id", p.id, "error", err)
		}
	}
	if session == nil || streamID == "" {
		return
	}
	session.removeStream(streamID)
	if session.IsConnected() {
		session.send(msgUnpublish, unpublishPayload{StreamID: streamID}, nil)
	}
}
