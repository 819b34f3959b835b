package services

import (
	"context"
	"fmt"
	"sync"

	"callbridge/internal/core/domain"
	"callbridge/internal/core/ports"

	"go.uber.org/zap"
)

// Targets, filters and texts used by the controller.
const (
	PublisherTarget  = "publisher-video"
	SubscriberTarget = "subscriber-video"

	BlurStrengthHigh = "high"
	ThemeImageURL    = "../images/theme.jpg"

	EndCallSignalType = "callEnd"
	EndCallSignalData = "End call signal"

	AlertUnavailableTitle    = "Error"
	AlertUnavailableMessage  = "Video call features are currently unavailable."
	AlertReconnectingTitle   = "Reconnecting"
	AlertReconnectingMessage = "Reconnecting to the video session. Please wait."
)

// CallControllerDeps groups the collaborators of a CallController.
// SDK may be nil, in which case Mount reports the call as unavailable.
type CallControllerDeps struct {
	SDK         ports.VideoSDK
	Bridge      *PlatformBridge
	Notifier    *AlertNotifier
	Connections *ConnectionLogger
	Listeners   *ListenerBundle
	EndCallHook ports.EndCallHook
	Metrics     ports.CallMetrics
	Logger      *zap.SugaredLogger
}

// CallController owns one video session and its publisher for the lifetime of
// a mounted call.
//
// SDK calls are never made while mu is held; completion callbacks re-acquire it
// and drop their work unless the session they were issued for is still current.
type CallController struct {
	props       domain.CallProps
	sdk         ports.VideoSDK
	bridge      *PlatformBridge
	notifier    *AlertNotifier
	connections *ConnectionLogger
	listeners   *ListenerBundle
	hook        ports.EndCallHook
	metrics     ports.CallMetrics
	logger      *zap.SugaredLogger

	mu        sync.Mutex
	state     domain.CallState
	session   ports.VideoSession
	publisher ports.Publisher
	monitor   *ConnectionMonitor
	teardown  func()
	hooked    bool
}

func NewCallController(props domain.CallProps, deps CallControllerDeps) *CallController {
	logger := deps.Logger.With("session_id", props.SessionID, "call_id", props.EntityGUID)
	return &CallController{
		props:       props,
		sdk:         deps.SDK,
		bridge:      deps.Bridge,
		notifier:    deps.Notifier,
		connections: deps.Connections,
		listeners:   deps.Listeners,
		hook:        deps.EndCallHook,
		metrics:     metricsOrNoop(deps.Metrics),
		logger:      logger,
		state:       domain.StateUninitialized,
	}
}

// State returns the current call state.
func (c *CallController) State() domain.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the live session handle, nil before Mount or after teardown.
func (c *CallController) Session() ports.VideoSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Monitor returns the connection monitor of the connected session, if any.
func (c *CallController) Monitor() *ConnectionMonitor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.monitor
}

// Mount creates the session, registers its handlers, starts connecting and
// installs the listener bundle and the end-call trigger. It returns once the
// connect request is issued; publishing follows from the SDK callbacks.
func (c *CallController) Mount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.sdk == nil {
		c.logger.Errorw("Video SDK is not available")
		c.notifier.ShowStatus(AlertUnavailableTitle, AlertUnavailableMessage)
		return domain.ErrVideoSDKUnavailable
	}

	c.mu.Lock()
	if c.session != nil || c.publisher != nil {
		c.mu.Unlock()
		return domain.ErrAlreadyMounted
	}
	// Listeners left from an ended call are bound to the old session.
	staleTeardown, staleHook := c.teardown, c.hooked
	c.teardown, c.hooked = nil, false
	c.setStateLocked(domain.StateInitializing)
	c.mu.Unlock()

	if staleTeardown != nil {
		staleTeardown()
	}
	if staleHook {
		c.hook.UninstallEndCall()
	}

	session, err := c.sdk.InitSession(c.props.APIKey, c.props.SessionID)
	if err != nil {
		c.logger.Errorw("Failed to initialize session", "error", err)
		return fmt.Errorf("init session: %w", err)
	}
	c.logger.Infow("Video session initialized", "offline_attribute", c.props.OfflineAttribute)

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.registerSessionHandlers(session)

	session.Connect(c.props.Token, func(err error) {
		c.onConnected(session, err)
	})

	teardown := c.listeners.Install(ListenerOptions{
		EnableInterruption:  c.props.EnableInterruption,
		FlowInterrupt:       c.FlowInterrupt,
		Session:             session,
		NotifyDisconnection: func() { c.connections.NotifyConnections(session, true) },
		SessionGUID:         c.props.EntityGUID,
		OfflineAttribute:    c.props.OfflineAttribute,
		Offline:             func() { c.notifier.ShowStatus(AlertReconnectingTitle, AlertReconnectingMessage) },
		Online:              c.notifier.HideStatus,
	})

	c.mu.Lock()
	c.teardown = teardown
	c.mu.Unlock()

	if c.hook != nil {
		c.hook.InstallEndCall(c.EndCall)
		c.mu.Lock()
		c.hooked = true
		c.mu.Unlock()
	}

	return nil
}

func (c *CallController) registerSessionHandlers(session ports.VideoSession) {
	session.On(domain.EventConnectionCreated, func(domain.SessionEvent) {
		c.logger.Infow("Connection created")
	})
	session.On(domain.EventConnectionDestroyed, func(domain.SessionEvent) {
		c.logger.Infow("Connection destroyed")
	})
	session.On(domain.EventStreamCreated, func(ev domain.SessionEvent) {
		c.handleStreamCreated(session, ev)
	})
	session.On(domain.EventStreamDestroyed, func(ev domain.SessionEvent) {
		if ev.Stream != nil {
			c.logger.Infow("Stream destroyed", "stream_id", ev.Stream.StreamID)
		}
	})
	session.On(domain.EventSessionDisconnected, func(ev domain.SessionEvent) {
		c.handleSessionDisconnected(session, ev)
	})
}

func (c *CallController) onConnected(session ports.VideoSession, err error) {
	if err != nil {
		c.logger.Errorw("Error connecting to the session", "error", err)
		return
	}

	c.mu.Lock()
	if !c.isLiveLocked(session) {
		c.mu.Unlock()
		c.logger.Warnw("Connect completed after teardown, ignoring")
		return
	}
	c.setStateLocked(domain.StateConnected)
	monitor := NewConnectionMonitor(session, c.logger)
	c.monitor = monitor
	c.mu.Unlock()

	c.logger.Infow("Session connected successfully")
	c.connections.NotifyConnections(session, false)
	// Participants already in the session never raise connectionCreated.
	c.listeners.CheckParticipantStatus(session)
	if err := monitor.Attach(); err != nil {
		c.logger.Errorw("Failed to attach connection monitor", "error", err)
	}

	c.startPublishing(session)
}

func (c *CallController) startPublishing(session ports.VideoSession) {
	opts := PublisherOptionsForTheme(c.props.Theme)

	// The SDK may complete before InitPublisher returns the handle; such a
	// completion is parked and replayed once the handle is known.
	var (
		initMu    sync.Mutex
		publisher ports.Publisher
		parked    bool
		parkedErr error
	)
	pub := c.sdk.InitPublisher(PublisherTarget, opts, func(err error) {
		initMu.Lock()
		if publisher == nil {
			parked, parkedErr = true, err
			initMu.Unlock()
			return
		}
		p := publisher
		initMu.Unlock()
		c.onPublisherReady(session, p, err)
	})
	if pub == nil {
		c.logger.Errorw("Video SDK returned no publisher")
		return
	}

	c.mu.Lock()
	live := c.isLiveLocked(session)
	if live {
		c.publisher = pub
	}
	c.mu.Unlock()

	if !live {
		c.logger.Warnw("Publisher created after teardown, destroying")
		pub.Destroy()
		return
	}

	initMu.Lock()
	publisher = pub
	replay, replayErr := parked, parkedErr
	initMu.Unlock()
	if replay {
		c.onPublisherReady(session, pub, replayErr)
	}
}

func (c *CallController) onPublisherReady(session ports.VideoSession, publisher ports.Publisher, err error) {
	if err != nil {
		c.logger.Errorw("Error initializing publisher", "error", err)
		return
	}

	c.mu.Lock()
	if !c.isLiveLocked(session) || c.publisher != publisher {
		c.mu.Unlock()
		c.logger.Warnw("Publisher ready after teardown, ignoring")
		return
	}
	c.setStateLocked(domain.StatePublishing)
	c.mu.Unlock()

	c.logger.Infow("Video publisher initialized", "publisher_id", publisher.ID())
	session.Publish(publisher, func(err error) {
		if err != nil {
			c.logger.Errorw("Error publishing stream", "error", err)
			return
		}
		c.logger.Infow("Publishing to session", "publisher_id", publisher.ID())

		c.mu.Lock()
		var monitor *ConnectionMonitor
		if c.isLiveLocked(session) {
			monitor = c.monitor
		}
		c.mu.Unlock()
		// The own stream is not announced through streamCreated.
		if monitor != nil {
			monitor.Check()
		}
	})
}

func (c *CallController) handleStreamCreated(session ports.VideoSession, ev domain.SessionEvent) {
	if ev.Stream == nil {
		return
	}
	c.mu.Lock()
	live := c.isLiveLocked(session)
	c.mu.Unlock()
	if !live {
		return
	}

	stream := ev.Stream
	c.logger.Infow("Stream created", "stream_id", stream.StreamID)
	opts := domain.SubscriberOptions{InsertMode: domain.InsertAppend, Width: "100%", Height: "100%"}
	session.Subscribe(stream, SubscriberTarget, opts, func(err error) {
		if err != nil {
			c.logger.Errorw("Error subscribing to stream", "stream_id", stream.StreamID, "error", err)
			return
		}
		c.logger.Infow("Subscribed to stream", "stream_id", stream.StreamID)
		c.connections.LogSubscribers(session.SubscribersForStream(stream), session)
	})
}

func (c *CallController) handleSessionDisconnected(session ports.VideoSession, ev domain.SessionEvent) {
	c.mu.Lock()
	if !c.isLiveLocked(session) {
		c.mu.Unlock()
		return
	}
	publisher := c.publisher
	c.publisher = nil
	c.mu.Unlock()

	if publisher != nil {
		publisher.Destroy()
	}
	c.logger.Infow("Session disconnected", "reason", ev.Reason)
}

// EndCall signals the end of the call, releases every subscriber, the session
// and the publisher, then triggers the end-call workflow action. Steps are
// issued back to back without waiting for earlier completions.
func (c *CallController) EndCall() {
	// Handles are detached up front so completions dispatched while the
	// teardown steps run no longer see the session as live.
	c.mu.Lock()
	session := c.session
	publisher := c.publisher
	monitor := c.monitor
	c.session = nil
	c.publisher = nil
	c.monitor = nil
	c.setStateLocked(domain.StateDisconnecting)
	c.mu.Unlock()

	if session != nil {
		session.Signal(domain.Signal{Type: EndCallSignalType, Data: EndCallSignalData}, func(err error) {
			if err != nil {
				c.logger.Errorw("Error sending end call signal", "error", err)
				return
			}
			c.logger.Infow("End call signal sent")
		})

		for _, stream := range session.Streams() {
			subs := session.SubscribersForStream(stream)
			if len(subs) == 0 || subs[0] == nil {
				continue
			}
			session.Unsubscribe(subs[0])
			c.logger.Infow("Unsubscribed from stream", "stream_id", stream.StreamID)
		}

		session.OffAll()
		session.Disconnect()
		c.logger.Infow("Session disconnected")
	}

	if publisher != nil {
		publisher.Destroy()
		c.logger.Infow("Video publisher destroyed")
	}

	if c.props.EntityGUID != "" {
		c.bridge.TriggerWorkflowAction(c.props.EndCallAction, c.props.EntityGUID, c.props.Origin)
		c.logger.Infow("End call action triggered", "action", c.props.EndCallAction)
	}

	c.mu.Lock()
	c.setStateLocked(domain.StateDisconnected)
	c.mu.Unlock()

	if monitor != nil {
		monitor.Detach()
	}
}

// Unmount releases the publisher and session if present, removes the host
// listeners and uninstalls the end-call trigger. Safe to call repeatedly.
func (c *CallController) Unmount() {
	c.mu.Lock()
	session := c.session
	publisher := c.publisher
	monitor := c.monitor
	teardown := c.teardown
	hooked := c.hooked
	c.session = nil
	c.publisher = nil
	c.monitor = nil
	c.teardown = nil
	c.hooked = false
	if session != nil || publisher != nil {
		c.setStateLocked(domain.StateDisconnected)
	}
	c.mu.Unlock()

	if publisher != nil {
		publisher.Destroy()
	}
	if monitor != nil {
		monitor.Detach()
	}
	if session != nil {
		session.OffAll()
		session.Disconnect()
	}
	c.logger.Infow("Resources cleaned up")

	if teardown != nil {
		teardown()
	}
	if hooked {
		c.hook.UninstallEndCall()
	}
}

// FlowInterrupt triggers the interrupt workflow action for the call entity.
func (c *CallController) FlowInterrupt() {
	c.bridge.TriggerWorkflowAction(c.props.InterruptAction, c.props.EntityGUID, c.props.Origin)
}

// OfflineFlow triggers the offline workflow action for the call entity. The
// offline listener only raises the reconnecting alert, so this runs only when
// the host asks for it.
func (c *CallController) OfflineFlow() {
	c.bridge.TriggerWorkflowAction(c.props.OfflineAction, c.props.EntityGUID, c.props.Origin)
}

// PublisherOptionsForTheme returns the publisher options with the video filter
// selected by theme.
func PublisherOptionsForTheme(theme string) domain.PublisherOptions {
	opts := domain.PublisherOptions{
		InsertMode:   domain.InsertAppend,
		Width:        "100%",
		Height:       "100%",
		PublishAudio: true,
		PublishVideo: true,
	}
	switch theme {
	case domain.ThemeBlur:
		opts.VideoFilter = &domain.VideoFilter{Type: domain.FilterBackgroundBlur, BlurStrength: BlurStrengthHigh}
	case domain.ThemeImage:
		opts.VideoFilter = &domain.VideoFilter{Type: domain.FilterBackgroundReplacement, BackgroundImgURL: ThemeImageURL}
	}
	return opts
}

func (c *CallController) isLiveLocked(session ports.VideoSession) bool {
	return session != nil && c.session == session
}

func (c *CallController) setStateLocked(next domain.CallState) {
	if c.state == next {
		return
	}
	prev := c.state
	c.state = next
	c.metrics.CallStateChanged(prev, next)
	c.logger.Debugw("Call state changed", "from", prev.String(), "to", next.String())
}
